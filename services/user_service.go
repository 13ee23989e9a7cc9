package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"timinkAPI/internal/apperr"
	"timinkAPI/internal/types/user"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30
)

type UserService struct {
	repo UserRepository

	// clerk id -> internal id. Ids never change once issued, so entries are
	// only removed when the user is deleted.
	mu       sync.RWMutex
	resolved map[string]uuid.UUID
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, resolved: make(map[string]uuid.UUID)}
}

// SyncUser creates or refreshes the local copy of an identity-provider user.
func (s *UserService) SyncUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	if strings.TrimSpace(req.ClerkID) == "" {
		return nil, apperr.Validation("clerk id is required")
	}
	if req.Username == "" {
		req.Username = usernameFromEmail(req.Email)
	}

	u, err := s.repo.Upsert(ctx, req)
	if err != nil {
		return nil, err
	}
	s.remember(u.ClerkID, u.ID)
	return u, nil
}

func (s *UserService) DeleteUser(ctx context.Context, clerkID string) error {
	if err := s.repo.DeleteByClerkID(ctx, clerkID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.resolved, clerkID)
	s.mu.Unlock()
	return nil
}

// ResolveUserID maps an identity-provider subject to the internal user id.
func (s *UserService) ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	s.mu.RLock()
	id, ok := s.resolved[clerkID]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	u, err := s.repo.GetByClerkID(ctx, clerkID)
	if err != nil {
		return uuid.Nil, err
	}
	s.remember(clerkID, u.ID)
	return u.ID, nil
}

func (s *UserService) remember(clerkID string, id uuid.UUID) {
	s.mu.Lock()
	s.resolved[clerkID] = id
	s.mu.Unlock()
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if n := len([]rune(name)); n < minUsernameLen || n > maxUsernameLen {
			return nil, apperr.Validation("username must be between 3 and 30 characters")
		}
		req.Username = &name
	}
	return s.repo.UpdateProfile(ctx, id, req)
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "user_" + uuid.NewString()[:8]
	}
	return local
}
