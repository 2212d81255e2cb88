package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttravel/checkout-backend/pkg/jwt"
)

func issue(t *testing.T, expiry time.Duration) (string, *jwt.Claims) {
	t.Helper()
	svc := jwt.NewService("session-test-secret", "smarttravel-storefront")
	token, err := svc.GenerateAccessToken(uuid.New(), "guest@example.com", "Tran Thi B", []string{"customer"}, expiry)
	require.NoError(t, err)
	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	return token, claims
}

func TestInit(t *testing.T) {
	token, claims := issue(t, time.Hour)
	registry := NewRegistry()

	s, err := Init(token, claims, registry)
	require.NoError(t, err)

	assert.Equal(t, token, s.Token)
	assert.Equal(t, claims.ID, s.TokenID)
	assert.Equal(t, claims.UserID, s.User.ID)
	assert.Equal(t, "guest@example.com", s.User.Email)
	assert.Equal(t, "Tran Thi B", s.User.Name)
	assert.Equal(t, []string{"customer"}, s.User.Roles)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 5*time.Second)
	assert.True(t, s.Valid())
}

func TestInit_NilClaims(t *testing.T) {
	_, err := Init("token", nil, NewRegistry())
	assert.ErrorIs(t, err, ErrNoClaims)
}

func TestInvalidate_RefusesTokenAfterwards(t *testing.T) {
	token, claims := issue(t, time.Hour)
	registry := NewRegistry()

	s, err := Init(token, claims, registry)
	require.NoError(t, err)

	s.Invalidate("upstream returned 401")
	assert.False(t, s.Valid())
	assert.Equal(t, "upstream returned 401", s.Reason())
	assert.True(t, registry.IsRevoked(s.TokenID))

	_, err = Init(token, claims, registry)
	assert.ErrorIs(t, err, ErrSessionInvalidated)
}

func TestInvalidate_KeepsFirstReason(t *testing.T) {
	token, claims := issue(t, time.Hour)
	s, err := Init(token, claims, NewRegistry())
	require.NoError(t, err)

	s.Invalidate("first")
	s.Invalidate("second")
	assert.Equal(t, "first", s.Reason())
}

func TestInvalidate_WithoutRegistry(t *testing.T) {
	token, claims := issue(t, time.Hour)
	s, err := Init(token, claims, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { s.Invalidate("no registry") })
	assert.False(t, s.Valid())
}

func TestInvalidate_NoExpiryUsesFallback(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	registry := NewRegistry()
	registry.now = func() time.Time { return now }

	s := &Context{TokenID: "abc", registry: registry}
	s.Invalidate("expired upstream")

	assert.True(t, registry.IsRevoked("abc"))
	assert.Equal(t, 0, registry.Sweep(now.Add(fallbackRevocation-time.Minute)))
	assert.Equal(t, 1, registry.Sweep(now.Add(fallbackRevocation)))
}

func TestRegistry(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	registry := NewRegistry()
	registry.now = func() time.Time { return now }

	registry.Revoke("a", now.Add(time.Minute))
	registry.Revoke("b", now.Add(time.Hour))
	registry.Revoke("c", now.Add(-time.Second))

	assert.True(t, registry.IsRevoked("a"))
	assert.True(t, registry.IsRevoked("b"))
	assert.False(t, registry.IsRevoked("c"), "ended revocations no longer apply")
	assert.False(t, registry.IsRevoked("unknown"))
	assert.Equal(t, 3, registry.Len())

	// a shorter revocation never shortens an existing one
	registry.Revoke("b", now.Add(time.Second))
	assert.Equal(t, 1, registry.Sweep(now))
	assert.Equal(t, 1, registry.Sweep(now.Add(2*time.Minute)))
	assert.True(t, registry.IsRevoked("b"))
	assert.Equal(t, 1, registry.Len())
}
