package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type objectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
	KeyFor(objectURL string) (string, error)
}

// UploadHandler stores user images (avatars, diary pictures) and hands back
// a public URL. Objects live under uploads/{user}/ so ownership is checked
// from the key alone.
type UploadHandler struct {
	store objectStore
}

func NewUploadHandler(store objectStore) *UploadHandler {
	return &UploadHandler{store: store}
}

func uploadPrefix(userID uuid.UUID) string {
	return fmt.Sprintf("uploads/%s/", userID)
}

// POST /api/v1/uploads/images
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if h.store == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Image storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Form field 'image' is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondWithError(w, http.StatusBadRequest, "Only image uploads are accepted")
		return
	}

	url, err := h.store.Upload(ctx, uploadPrefix(userID)+uuid.NewString(), file, contentType)
	if err != nil {
		respondWithAppError(w, "UploadImage", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]string{"url": url})
}

// DELETE /api/v1/uploads/images?url=
func (h *UploadHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if h.store == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Image storage is not configured")
		return
	}

	objectURL := r.URL.Query().Get("url")
	if objectURL == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'url' is required")
		return
	}

	key, err := h.store.KeyFor(objectURL)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "URL does not belong to this bucket")
		return
	}
	if !strings.HasPrefix(key, uploadPrefix(userID)) {
		respondWithError(w, http.StatusForbidden, "You can only delete your own uploads")
		return
	}

	if err := h.store.Delete(ctx, objectURL); err != nil {
		respondWithAppError(w, "DeleteImage", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Image deleted"})
}
