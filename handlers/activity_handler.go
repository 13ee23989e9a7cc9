package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"timinkAPI/internal/types/activity"
	"timinkAPI/middleware"
)

type activityService interface {
	GetFeed(ctx context.Context, userID uuid.UUID, loc *time.Location) (*activity.Feed, error)
}

type ActivityHandler struct {
	activityService activityService
}

func NewActivityHandler(activityService activityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

// GET /api/v1/activity
func (h *ActivityHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	feed, err := h.activityService.GetFeed(ctx, userID, middleware.GetLocation(ctx))
	if err != nil {
		respondWithAppError(w, "GetFeed", err)
		return
	}

	respondWithJSON(w, http.StatusOK, feed)
}
