package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"timinkAPI/internal/types/friendship"
)

type friendshipService interface {
	SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*friendship.Friendship, error)
	Accept(ctx context.Context, friendshipID, callerID uuid.UUID) (*friendship.Friendship, error)
	Reject(ctx context.Context, friendshipID, callerID uuid.UUID) (*friendship.Friendship, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]friendship.Friend, error)
	ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error)
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
}

type FriendHandler struct {
	friendshipService friendshipService
}

func NewFriendHandler(friendshipService friendshipService) *FriendHandler {
	return &FriendHandler{friendshipService: friendshipService}
}

// GET /api/v1/friends
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	friends, err := h.friendshipService.ListFriends(ctx, userID)
	if err != nil {
		respondWithAppError(w, "ListFriends", err)
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}

// GET /api/v1/friends/requests
func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	requests, err := h.friendshipService.ListPendingRequests(ctx, userID)
	if err != nil {
		respondWithAppError(w, "ListFriendRequests", err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}

// POST /api/v1/friends/requests
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req friendship.SendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.friendshipService.SendRequest(ctx, userID, req.AddresseeID)
	if err != nil {
		respondWithAppError(w, "SendFriendRequest", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, f)
}

// PUT /api/v1/friends/requests/{id}/accept
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "AcceptFriendRequest", h.friendshipService.Accept)
}

// PUT /api/v1/friends/requests/{id}/reject
func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "RejectFriendRequest", h.friendshipService.Reject)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, op string, transition func(context.Context, uuid.UUID, uuid.UUID) (*friendship.Friendship, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	f, err := transition(ctx, requestID, userID)
	if err != nil {
		respondWithAppError(w, op, err)
		return
	}

	respondWithJSON(w, http.StatusOK, f)
}

// DELETE /api/v1/friends/{userId}
func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	friendID, ok := pathUUID(w, r, "userId")
	if !ok {
		return
	}

	if err := h.friendshipService.RemoveFriend(ctx, userID, friendID); err != nil {
		respondWithAppError(w, "RemoveFriend", err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend removed"})
}
