// Package identity keeps the signed-in learner's bearer token and the
// claims read from it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/store"
)

// ErrInvalidToken is returned when a token cannot be read as a JWT.
var ErrInvalidToken = errors.New("invalid identity token")

// Identity is the persisted identity snapshot.
type Identity struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the token has an expiry in the past.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// Parse reads the claims of a bearer JWT. The signature is not verified:
// the client holds no key and the backend checks every request.
func Parse(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := Identity{Token: token}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		id.UserID = sub
	} else if uid, ok := claims["user_id"].(string); ok {
		id.UserID = uid
	}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time.UTC()
	}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("%w: no subject claim", ErrInvalidToken)
	}
	return id, nil
}

// Session holds the current identity and persists it in the identity slot.
// It implements api.TokenSource.
type Session struct {
	mu    sync.Mutex
	slots store.SlotRepo
	id    *Identity
	now   func() time.Time
}

var _ api.TokenSource = (*Session)(nil)

// NewSession creates a session backed by slots. Call Load to restore a
// previously persisted identity.
func NewSession(slots store.SlotRepo) *Session {
	return &Session{slots: slots, now: time.Now}
}

// Load restores the persisted identity, if any.
func (s *Session) Load(ctx context.Context) error {
	var id Identity
	found, err := s.slots.Get(ctx, store.IdentitySlot, &id)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if found && id.Token != "" {
		s.id = &id
	} else {
		s.id = nil
	}
	return nil
}

// SignIn parses token and persists the resulting identity.
func (s *Session) SignIn(ctx context.Context, token string) (Identity, error) {
	id, err := Parse(token)
	if err != nil {
		return Identity{}, err
	}
	if id.Expired(s.now()) {
		return Identity{}, fmt.Errorf("%w: token expired at %s", ErrInvalidToken, id.ExpiresAt.Format(time.RFC3339))
	}
	if err := s.slots.Put(ctx, store.IdentitySlot, id); err != nil {
		return Identity{}, fmt.Errorf("save identity: %w", err)
	}

	s.mu.Lock()
	s.id = &id
	s.mu.Unlock()
	return id, nil
}

// SignOut forgets the identity and deletes the persisted identity and
// progress slots. This is the only path that destroys persisted progress.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.id = nil
	s.mu.Unlock()

	if err := s.slots.Delete(ctx, store.IdentitySlot, store.ProgressSlot); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Current returns the signed-in identity.
func (s *Session) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil {
		return Identity{}, false
	}
	return *s.id, true
}

// Token returns the bearer token, or api.ErrUnauthenticated if there is no
// identity or it has expired.
func (s *Session) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == nil || s.id.Expired(s.now()) {
		return "", api.ErrUnauthenticated
	}
	return s.id.Token, nil
}
