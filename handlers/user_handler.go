package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"timinkAPI/internal/types/friendship"
	"timinkAPI/internal/types/user"
)

type userService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error)
}

type userSearcher interface {
	Search(ctx context.Context, searcherID, targetID uuid.UUID) ([]friendship.SearchResult, error)
	FriendCode(userID uuid.UUID) (*friendship.FriendCode, error)
}

type UserHandler struct {
	userService userService
	friends     userSearcher
}

func NewUserHandler(userService userService, friends userSearcher) *UserHandler {
	return &UserHandler{
		userService: userService,
		friends:     friends,
	}
}

// GET /api/v1/user
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	u, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		respondWithAppError(w, "GetProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// PUT /api/v1/user
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.userService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		respondWithAppError(w, "UpdateProfile", err)
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// GET /api/v1/user/search?id=
//
// Exact-id lookup. An unparseable id is answered with an empty list, the
// same as an unknown one.
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("id")
	if raw == "" {
		respondWithError(w, http.StatusBadRequest, "Search query parameter 'id' is required")
		return
	}
	targetID, err := uuid.Parse(raw)
	if err != nil {
		respondWithJSON(w, http.StatusOK, []friendship.SearchResult{})
		return
	}

	results, err := h.friends.Search(ctx, userID, targetID)
	if err != nil {
		respondWithAppError(w, "SearchUser", err)
		return
	}

	respondWithJSON(w, http.StatusOK, results)
}

// GET /api/v1/user/friend-code
func (h *UserHandler) FriendCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	code, err := h.friends.FriendCode(userID)
	if err != nil {
		respondWithAppError(w, "FriendCode", err)
		return
	}

	respondWithJSON(w, http.StatusOK, code)
}
