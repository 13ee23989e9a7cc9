package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/clock"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/types/friendship"
)

const friendDeeplinkFormat = "timink://friends/add/%s"

type FriendshipService struct {
	repo     FriendshipRepository
	users    UserRepository
	notifier Notifier
	bus      *eventbus.Bus
	clock    clock.Clock
	async    runAsync
}

func NewFriendshipService(repo FriendshipRepository, users UserRepository, notifier Notifier, bus *eventbus.Bus, clk clock.Clock) *FriendshipService {
	return &FriendshipService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		bus:      bus,
		clock:    clk,
		async:    goAsync,
	}
}

// Search looks a user up by exact id. The searcher never finds themselves;
// an unknown id yields an empty result rather than an error.
func (s *FriendshipService) Search(ctx context.Context, searcherID, targetID uuid.UUID) ([]friendship.SearchResult, error) {
	if targetID == searcherID {
		return []friendship.SearchResult{}, nil
	}

	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return []friendship.SearchResult{}, nil
		}
		return nil, err
	}

	result := friendship.SearchResult{
		UserID:   u.ID,
		Username: u.Username,
		ImageURL: u.ImageURL,
	}

	f, err := s.repo.FindBetween(ctx, searcherID, targetID)
	if err != nil {
		return nil, err
	}
	if f != nil {
		switch f.Status {
		case friendship.FriendshipAccepted:
			result.IsFriend = true
		case friendship.FriendshipPending:
			status := f.Status
			sentBy := f.RequesterID
			result.RequestStatus = &status
			result.RequestSentBy = &sentBy
		}
	}

	return []friendship.SearchResult{result}, nil
}

// SendRequest creates a pending request from requesterID to addresseeID. A
// pair holds at most one row: a live request or friendship in either
// direction is a conflict, a previously rejected one is reopened.
func (s *FriendshipService) SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*friendship.Friendship, error) {
	if addresseeID == uuid.Nil {
		return nil, apperr.Validation("addressee_id is required")
	}
	if requesterID == addresseeID {
		return nil, apperr.Validation("you cannot send a friend request to yourself")
	}

	if _, err := s.users.GetByID(ctx, addresseeID); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBetween(ctx, requesterID, addresseeID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var f *friendship.Friendship

	switch {
	case existing == nil:
		f = &friendship.Friendship{
			ID:          uuid.New(),
			RequesterID: requesterID,
			AddresseeID: addresseeID,
			Status:      friendship.FriendshipPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Insert(ctx, f); err != nil {
			return nil, err
		}
	case existing.Status == friendship.FriendshipRejected:
		f, err = s.repo.Reopen(ctx, existing.ID, requesterID, addresseeID, now)
		if err != nil {
			return nil, err
		}
	case existing.Status == friendship.FriendshipAccepted:
		return nil, apperr.Conflict("you are already friends")
	case existing.Status == friendship.FriendshipBlocked:
		return nil, apperr.AccessDenied("friend requests between these users are blocked")
	default:
		return nil, apperr.Conflict("a friend request between you is already pending")
	}

	notifyBestEffort(s.async, s.notifier, notification.Event{
		Type:       notification.TypeFriendRequest,
		Recipients: []uuid.UUID{addresseeID},
		ActorID:    &requesterID,
		Data:       map[string]any{"friendship_id": f.ID.String()},
	})
	publish(s.bus, eventbus.TopicFriendsChanged, f.ID, requesterID, addresseeID)

	return f, nil
}

func (s *FriendshipService) Accept(ctx context.Context, friendshipID, callerID uuid.UUID) (*friendship.Friendship, error) {
	f, err := s.transition(ctx, friendshipID, callerID, friendship.FriendshipAccepted)
	if err != nil {
		return nil, err
	}

	notifyBestEffort(s.async, s.notifier, notification.Event{
		Type:       notification.TypeFriendAccepted,
		Recipients: []uuid.UUID{f.RequesterID},
		ActorID:    &callerID,
		Data:       map[string]any{"friendship_id": f.ID.String()},
	})
	return f, nil
}

func (s *FriendshipService) Reject(ctx context.Context, friendshipID, callerID uuid.UUID) (*friendship.Friendship, error) {
	return s.transition(ctx, friendshipID, callerID, friendship.FriendshipRejected)
}

// transition moves a pending request addressed to callerID into to. The
// store update is conditional on both, so a repeated accept or reject never
// rewrites a decided row.
func (s *FriendshipService) transition(ctx context.Context, friendshipID, callerID uuid.UUID, to friendship.FriendshipStatus) (*friendship.Friendship, error) {
	f, err := s.repo.Transition(ctx, friendshipID, callerID, friendship.FriendshipPending, to, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if f == nil {
		current, err := s.repo.Get(ctx, friendshipID)
		if err != nil {
			return nil, err
		}
		if current.AddresseeID != callerID {
			if current.Involves(callerID) {
				return nil, apperr.AccessDenied("only the addressee can answer a friend request")
			}
			return nil, apperr.NotFound("friend request")
		}
		return nil, apperr.Validation(fmt.Sprintf("friend request is already %s", current.Status))
	}

	publish(s.bus, eventbus.TopicFriendsChanged, f.ID, f.RequesterID, f.AddresseeID)
	return f, nil
}

// ListFriends returns the other party of every accepted friendship of
// userID. The user never appears, and nobody appears twice.
func (s *FriendshipService) ListFriends(ctx context.Context, userID uuid.UUID) ([]friendship.Friend, error) {
	rows, err := s.repo.ListAccepted(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(rows))
	friends := make([]friendship.Friend, 0, len(rows))
	for _, f := range rows {
		if f.UserID == userID || seen[f.UserID] {
			continue
		}
		seen[f.UserID] = true
		friends = append(friends, f)
	}
	return friends, nil
}

func (s *FriendshipService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]friendship.FriendRequest, error) {
	return s.repo.ListPendingIncoming(ctx, userID)
}

func (s *FriendshipService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	removed, err := s.repo.DeleteAccepted(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound("friendship")
	}
	publish(s.bus, eventbus.TopicFriendsChanged, uuid.Nil, userID, friendID)
	return nil
}

// FriendCode renders the user's add-friend deeplink as a QR PNG.
func (s *FriendshipService) FriendCode(userID uuid.UUID) (*friendship.FriendCode, error) {
	link := fmt.Sprintf(friendDeeplinkFormat, userID)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR png: %w", err)
	}
	return &friendship.FriendCode{
		UserID:       userID,
		Deeplink:     link,
		QrCodeBase64: base64.StdEncoding.EncodeToString(png),
	}, nil
}
