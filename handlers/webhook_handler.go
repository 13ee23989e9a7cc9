package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"timinkAPI/internal/types/clerk"
	"timinkAPI/internal/types/user"
)

const maxWebhookBody = 1 << 20

type userSyncer interface {
	SyncUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error)
	DeleteUser(ctx context.Context, clerkID string) error
}

type WebhookHandler struct {
	userService userSyncer
	webhook     *svix.Webhook
}

// NewWebhookHandler takes the Clerk signing secret as shown in the
// dashboard ("whsec_..."). An empty secret disables verification, which is
// only acceptable in local development.
func NewWebhookHandler(userService userSyncer, signingSecret string) (*WebhookHandler, error) {
	h := &WebhookHandler{userService: userService}
	if signingSecret == "" {
		log.Println("CLERK_WEBHOOK_SECRET not set, skipping signature verification")
		return h, nil
	}

	wh, err := svix.NewWebhook(signingSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	h.webhook = wh
	return h, nil
}

// POST /webhooks/clerk
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verifySignature(r.Header, body); err != nil {
		log.Printf("Invalid webhook signature: %v", err)
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerk.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	switch event.Type {
	case "user.created", "user.updated":
		err = h.handleUserUpsert(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}
	if err != nil {
		log.Printf("Error handling %s: %v", event.Type, err)
		respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserUpsert(ctx context.Context, data json.RawMessage) error {
	var userData clerk.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	req := &user.UpsertUserRequest{
		ClerkID:   userData.ID,
		Username:  userData.Username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  userData.ImageURL,
	}
	if email, ok := userData.PrimaryEmail(); ok {
		req.Email = email.EmailAddress
		req.EmailVerified = email.Verification.Status == "verified"
	}

	u, err := h.userService.SyncUser(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to sync user: %w", err)
	}

	log.Printf("Synced user %s (Clerk ID: %s)", u.ID, u.ClerkID)
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData clerk.UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if userData.ID == "" {
		return errors.New("deleted event without user id")
	}

	if err := h.userService.DeleteUser(ctx, userData.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	log.Printf("Deleted user (Clerk ID: %s)", userData.ID)
	return nil
}

// verifySignature checks the svix-id, svix-timestamp and svix-signature
// headers Clerk sends, including the five minute replay window.
func (h *WebhookHandler) verifySignature(header http.Header, body []byte) error {
	if h.webhook == nil {
		return nil
	}
	return h.webhook.Verify(body, header)
}
