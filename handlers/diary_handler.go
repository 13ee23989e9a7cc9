package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"timinkAPI/internal/realtime"
	"timinkAPI/internal/types/diary"
	"timinkAPI/middleware"
)

type diaryService interface {
	CreateDiary(ctx context.Context, ownerID uuid.UUID, req *diary.CreateDiaryRequest) (*diary.Diary, error)
	ListDiaries(ctx context.Context, userID uuid.UUID) ([]diary.Diary, error)
	GetDiary(ctx context.Context, diaryID, userID uuid.UUID) (*diary.Diary, error)
	Gate(ctx context.Context, diaryID, authorID uuid.UUID, loc *time.Location) (*diary.Gate, error)
	CreateEntry(ctx context.Context, diaryID, authorID uuid.UUID, req *diary.CreateEntryRequest, loc *time.Location) (*diary.Entry, error)
	ListEntries(ctx context.Context, diaryID, userID uuid.UUID, limit int) ([]diary.Entry, error)
	SetPinned(ctx context.Context, diaryID, userID uuid.UUID, pinned bool) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients send no Origin; the route is behind bearer auth.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type DiaryHandler struct {
	diaryService diaryService
	hub          *realtime.Hub
}

func NewDiaryHandler(diaryService diaryService, hub *realtime.Hub) *DiaryHandler {
	return &DiaryHandler{diaryService: diaryService, hub: hub}
}

// POST /api/v1/diaries
func (h *DiaryHandler) CreateDiary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req diary.CreateDiaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.diaryService.CreateDiary(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, "CreateDiary", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, d)
}

// GET /api/v1/diaries
func (h *DiaryHandler) ListDiaries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	diaries, err := h.diaryService.ListDiaries(ctx, userID)
	if err != nil {
		respondWithAppError(w, "ListDiaries", err)
		return
	}

	respondWithJSON(w, http.StatusOK, diaries)
}

// GET /api/v1/diaries/{id}
func (h *DiaryHandler) GetDiary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	diaryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.diaryService.GetDiary(ctx, diaryID, userID)
	if err != nil {
		respondWithAppError(w, "GetDiary", err)
		return
	}

	respondWithJSON(w, http.StatusOK, d)
}

// GET /api/v1/diaries/{id}/gate
func (h *DiaryHandler) Gate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	diaryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	gate, err := h.diaryService.Gate(ctx, diaryID, userID, middleware.GetLocation(ctx))
	if err != nil {
		respondWithAppError(w, "Gate", err)
		return
	}

	respondWithJSON(w, http.StatusOK, gate)
}

// POST /api/v1/diaries/{id}/entries
func (h *DiaryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	diaryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req diary.CreateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.diaryService.CreateEntry(ctx, diaryID, userID, &req, middleware.GetLocation(ctx))
	if err != nil {
		respondWithAppError(w, "CreateEntry", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

// GET /api/v1/diaries/{id}/entries?limit=
func (h *DiaryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	diaryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.diaryService.ListEntries(ctx, diaryID, userID, limit)
	if err != nil {
		respondWithAppError(w, "ListEntries", err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// PUT /api/v1/diaries/{id}/pin
func (h *DiaryHandler) SetPinned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	diaryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Pinned bool `json:"pinned"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.diaryService.SetPinned(ctx, diaryID, userID, req.Pinned); err != nil {
		respondWithAppError(w, "SetDiaryPinned", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"pinned": req.Pinned})
}

// GET /api/v1/diaries/{id}/ws
//
// Streams entry changes for one diary. Membership is checked before the
// upgrade; after that the connection lives until either side closes it.
func (h *DiaryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	diaryID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	_, err := h.diaryService.GetDiary(ctx, diaryID, userID)
	cancel()
	if err != nil {
		respondWithAppError(w, "StreamDiary", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("StreamDiary: Could not upgrade connection: %v", err)
		return
	}

	realtime.Serve(h.hub, conn, diaryID)
}
