package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/types/capsule"
)

const maxImageBytes = 10 << 20

type capsuleService interface {
	CreateCapsule(ctx context.Context, ownerID uuid.UUID, req *capsule.CreateCapsuleRequest) (*capsule.Capsule, error)
	ListCapsules(ctx context.Context, userID uuid.UUID) ([]capsule.View, error)
	GetCapsule(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.View, error)
	Countdown(ctx context.Context, capsuleID, userID uuid.UUID) (capsule.Countdown, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]capsule.View, error)
	ListUnlockable(ctx context.Context, userID uuid.UUID) ([]capsule.View, error)
	Unlock(ctx context.Context, capsuleID, userID uuid.UUID) (*capsule.Capsule, error)
	RecordContent(ctx context.Context, capsuleID, authorID uuid.UUID, req *capsule.RecordContentRequest) (*capsule.Content, error)
	RecordContentWithMedia(ctx context.Context, capsuleID, authorID uuid.UUID, text *string, image io.Reader, contentType string) (*capsule.Content, error)
	ListContents(ctx context.Context, capsuleID, userID uuid.UUID) ([]capsule.Content, error)
	SetPinned(ctx context.Context, capsuleID, userID uuid.UUID, pinned bool) error
	Delete(ctx context.Context, capsuleID, userID uuid.UUID) error
}

type CapsuleHandler struct {
	capsuleService capsuleService
}

func NewCapsuleHandler(capsuleService capsuleService) *CapsuleHandler {
	return &CapsuleHandler{capsuleService: capsuleService}
}

// POST /api/v1/capsules
func (h *CapsuleHandler) CreateCapsule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req capsule.CreateCapsuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.capsuleService.CreateCapsule(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, "CreateCapsule", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

// GET /api/v1/capsules
func (h *CapsuleHandler) ListCapsules(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListCapsules", h.capsuleService.ListCapsules)
}

// GET /api/v1/capsules/pending
func (h *CapsuleHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListPending", h.capsuleService.ListPending)
}

// GET /api/v1/capsules/unlockable
func (h *CapsuleHandler) ListUnlockable(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "ListUnlockable", h.capsuleService.ListUnlockable)
}

func (h *CapsuleHandler) list(w http.ResponseWriter, r *http.Request, op string, fetch func(context.Context, uuid.UUID) ([]capsule.View, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	views, err := fetch(ctx, userID)
	if err != nil {
		respondWithAppError(w, op, err)
		return
	}

	respondWithJSON(w, http.StatusOK, views)
}

// GET /api/v1/capsules/{id}
func (h *CapsuleHandler) GetCapsule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.capsuleService.GetCapsule(ctx, capsuleID, userID)
	if err != nil {
		respondWithAppError(w, "GetCapsule", err)
		return
	}

	respondWithJSON(w, http.StatusOK, view)
}

// GET /api/v1/capsules/{id}/countdown
func (h *CapsuleHandler) Countdown(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	cd, err := h.capsuleService.Countdown(ctx, capsuleID, userID)
	if err != nil {
		respondWithAppError(w, "Countdown", err)
		return
	}

	respondWithJSON(w, http.StatusOK, cd)
}

// POST /api/v1/capsules/{id}/unlock
func (h *CapsuleHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.capsuleService.Unlock(ctx, capsuleID, userID)
	if err != nil {
		respondWithAppError(w, "Unlock", err)
		return
	}

	respondWithJSON(w, http.StatusOK, c)
}

// POST /api/v1/capsules/{id}/contents
//
// Accepts either JSON ({"text_content", "media_url"}) or multipart form data
// with an "image" file and an optional "text_content" field.
func (h *CapsuleHandler) RecordContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		h.recordMedia(w, r, capsuleID, userID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req capsule.RecordContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	content, err := h.capsuleService.RecordContent(ctx, capsuleID, userID, &req)
	if err != nil {
		respondWithAppError(w, "RecordContent", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, content)
}

func (h *CapsuleHandler) recordMedia(w http.ResponseWriter, r *http.Request, capsuleID, userID uuid.UUID) {
	// Uploads get longer than plain JSON writes.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

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

	var text *string
	if v := r.FormValue("text_content"); v != "" {
		text = &v
	}

	content, err := h.capsuleService.RecordContentWithMedia(ctx, capsuleID, userID, text, file, header.Header.Get("Content-Type"))
	if err != nil {
		respondWithAppError(w, "RecordContentWithMedia", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, content)
}

// GET /api/v1/capsules/{id}/contents
func (h *CapsuleHandler) ListContents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	contents, err := h.capsuleService.ListContents(ctx, capsuleID, userID)
	if err != nil {
		respondWithAppError(w, "ListContents", err)
		return
	}

	respondWithJSON(w, http.StatusOK, contents)
}

// PUT /api/v1/capsules/{id}/pin
func (h *CapsuleHandler) SetPinned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req capsule.PinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.capsuleService.SetPinned(ctx, capsuleID, userID, req.Pinned); err != nil {
		respondWithAppError(w, "SetPinned", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"pinned": req.Pinned})
}

// DELETE /api/v1/capsules/{id}
func (h *CapsuleHandler) DeleteCapsule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	capsuleID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.capsuleService.Delete(ctx, capsuleID, userID); err != nil {
		respondWithAppError(w, "DeleteCapsule", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Capsule deleted"})
}
