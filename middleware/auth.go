package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"timinkAPI/internal/apperr"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	ClerkIDKey  contextKey = "clerkID"
	LocationKey contextKey = "location"
)

// TokenVerifier checks a bearer token and returns the identity provider's
// subject (the Clerk user id).
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// ClerkVerifier validates Clerk session JWTs. clerk.SetKey must have been
// called.
type ClerkVerifier struct{}

func (ClerkVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims, err := clerkjwt.Verify(ctx, &clerkjwt.VerifyParams{Token: token})
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// LocalVerifier accepts HS256 tokens signed with a shared secret. It is meant
// for local development and integration environments without Clerk.
type LocalVerifier struct {
	Secret []byte
}

func (v LocalVerifier) Verify(_ context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// IssueLocalToken signs a token LocalVerifier accepts.
func IssueLocalToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

// UserResolver maps an identity provider subject to the internal user id.
type UserResolver func(ctx context.Context, clerkID string) (uuid.UUID, error)

// AuthMiddleware verifies the bearer token and stores both the Clerk id and
// the internal user id on the request context.
func AuthMiddleware(verifier TokenVerifier, resolve UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader || token == "" {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			clerkID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Printf("Token verification failed: %v", err)
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, err := resolve(r.Context(), clerkID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					respondWithError(w, http.StatusUnauthorized, "User not registered")
					return
				}
				log.Printf("AuthMiddleware: Failed to resolve user %s: %v", clerkID, err)
				respondWithError(w, apperr.HTTPStatus(err), apperr.Message(err))
				return
			}

			ctx := context.WithValue(r.Context(), ClerkIDKey, clerkID)
			ctx = context.WithValue(ctx, UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TimezoneMiddleware reads the caller's IANA zone from X-Timezone, falling
// back to def. An unknown zone is rejected rather than silently replaced.
func TimezoneMiddleware(def *time.Location) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := def
			if name := strings.TrimSpace(r.Header.Get("X-Timezone")); name != "" {
				l, err := time.LoadLocation(name)
				if err != nil {
					respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown timezone %q", name))
					return
				}
				loc = l
			}
			ctx := context.WithValue(r.Context(), LocationKey, loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClerkID extracts Clerk user ID from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

// GetUserID extracts internal user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetLocation returns the caller's timezone, UTC when none was set.
func GetLocation(ctx context.Context) *time.Location {
	if loc, ok := ctx.Value(LocationKey).(*time.Location); ok && loc != nil {
		return loc
	}
	return time.UTC
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
