package identity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/investory/internal/api"
	"github.com/abhisek/investory/internal/store"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func openSlots(t *testing.T) store.SlotRepo {
	t.Helper()
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s.SlotRepo()
}

func TestParse(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
	tok := signToken(t, jwt.MapClaims{"sub": "u-42", "email": "maya@example.com", "exp": exp.Unix()})

	id, err := Parse("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "u-42", id.UserID)
	assert.Equal(t, "maya@example.com", id.Email)
	assert.Equal(t, exp, id.ExpiresAt)
	assert.Equal(t, tok, id.Token)
}

func TestParse_UserIDClaim(t *testing.T) {
	id, err := Parse(signToken(t, jwt.MapClaims{"user_id": "legacy"}))
	require.NoError(t, err)
	assert.Equal(t, "legacy", id.UserID)
	assert.True(t, id.ExpiresAt.IsZero())
}

func TestParse_Invalid(t *testing.T) {
	for _, tok := range []string{"", "not-a-jwt", signToken(t, jwt.MapClaims{"email": "no-subject"})} {
		_, err := Parse(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestSession_SignInAndToken(t *testing.T) {
	ctx := context.Background()
	slots := openSlots(t)
	s := NewSession(slots)

	_, err := s.Token(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)

	tok := signToken(t, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()})
	_, err = s.SignIn(ctx, tok)
	require.NoError(t, err)

	got, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	// A fresh session restores the persisted identity.
	restored := NewSession(slots)
	require.NoError(t, restored.Load(ctx))
	id, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
}

func TestSession_RejectsExpiredToken(t *testing.T) {
	s := NewSession(openSlots(t))
	tok := signToken(t, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(-time.Minute).Unix()})

	_, err := s.SignIn(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSession_TokenExpiresWhileSignedIn(t *testing.T) {
	ctx := context.Background()
	s := NewSession(openSlots(t))
	tok := signToken(t, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()})
	_, err := s.SignIn(ctx, tok)
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
}

func TestSession_SignOutDeletesSlots(t *testing.T) {
	ctx := context.Background()
	slots := openSlots(t)
	s := NewSession(slots)

	_, err := s.SignIn(ctx, signToken(t, jwt.MapClaims{"sub": "u-1"}))
	require.NoError(t, err)
	require.NoError(t, slots.Put(ctx, store.ProgressSlot, map[string]int{"currentLevel": 3}))

	require.NoError(t, s.SignOut(ctx))

	_, ok := s.Current()
	assert.False(t, ok)
	var v map[string]any
	found, err := slots.Get(ctx, store.ProgressSlot, &v)
	require.NoError(t, err)
	assert.False(t, found)
	found, err = slots.Get(ctx, store.IdentitySlot, &v)
	require.NoError(t, err)
	assert.False(t, found)
}
