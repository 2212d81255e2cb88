package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smarttravel/checkout-backend/pkg/jwt"
)

var (
	// ErrSessionInvalidated is returned for a token the upstream backend has rejected
	ErrSessionInvalidated = errors.New("session has been invalidated")

	// ErrNoClaims is returned when Init is called without validated claims
	ErrNoClaims = errors.New("session requires validated token claims")
)

// fallbackRevocation bounds a revocation when the token carries no expiry
const fallbackRevocation = 24 * time.Hour

// User is the authenticated storefront customer
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Roles []string  `json:"roles"`
}

// Context is the explicit per-request session. Services receive it as an
// argument instead of reading ambient state.
type Context struct {
	Token     string
	TokenID   string
	User      User
	ExpiresAt time.Time

	registry *Registry

	mu          sync.Mutex
	invalidated bool
	reason      string
}

// Init builds a session from validated claims. Tokens that were invalidated
// earlier are refused.
func Init(token string, claims *jwt.Claims, registry *Registry) (*Context, error) {
	if claims == nil {
		return nil, ErrNoClaims
	}

	s := &Context{
		Token:   token,
		TokenID: claims.TokenID(token),
		User: User{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
			Roles: claims.Roles,
		},
		registry: registry,
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}

	if registry != nil && registry.IsRevoked(s.TokenID) {
		return nil, ErrSessionInvalidated
	}
	return s, nil
}

// Invalidate marks the session unusable and remembers the token until it
// would have expired anyway. Calling it twice keeps the first reason.
func (s *Context) Invalidate(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.invalidated {
		return
	}
	s.invalidated = true
	s.reason = reason

	if s.registry == nil {
		return
	}
	until := s.ExpiresAt
	if until.IsZero() {
		until = s.registry.now().Add(fallbackRevocation)
	}
	s.registry.Revoke(s.TokenID, until)
}

// Valid returns false once the session has been invalidated
func (s *Context) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.invalidated
}

// Reason returns why the session was invalidated
func (s *Context) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Registry remembers invalidated token ids until their expiry
type Registry struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewRegistry creates an empty revocation registry
func NewRegistry() *Registry {
	return &Registry{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke refuses the token id until the given time
func (r *Registry) Revoke(tokenID string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.revoked[tokenID]; ok && current.After(until) {
		return
	}
	r.revoked[tokenID] = until
}

// IsRevoked returns true while a revocation for the token id is in force
func (r *Registry) IsRevoked(tokenID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	until, ok := r.revoked[tokenID]
	return ok && r.now().Before(until)
}

// Sweep drops revocations that ended before now and returns how many were removed
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, until := range r.revoked {
		if !until.After(now) {
			delete(r.revoked, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked revocations
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}
