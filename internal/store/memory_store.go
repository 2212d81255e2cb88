package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smarttravel/checkout-backend/internal/models"
)

type memoryEntry struct {
	data    []byte
	savedAt time.Time
}

// MemoryDraftStore keeps drafts in process. Used when no Redis URL is
// configured and in tests.
type MemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]memoryEntry
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryDraftStore creates an empty in-process store
func NewMemoryDraftStore(ttl time.Duration) *MemoryDraftStore {
	return &MemoryDraftStore{
		drafts: make(map[uuid.UUID]memoryEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get loads a draft. Entries past their TTL are treated as missing even
// before the sweeper removes them.
func (s *MemoryDraftStore) Get(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error) {
	s.mu.RLock()
	entry, ok := s.drafts[id]
	s.mu.RUnlock()

	if !ok || s.expired(entry, s.now()) {
		return nil, models.ErrDraftNotFound
	}

	var draft models.BookingDraft
	if err := json.Unmarshal(entry.data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	return &draft, nil
}

// Save stores an encoded copy so callers cannot mutate stored state
func (s *MemoryDraftStore) Save(ctx context.Context, draft *models.BookingDraft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	s.mu.Lock()
	s.drafts[draft.ID] = memoryEntry{data: data, savedAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Delete removes a draft
func (s *MemoryDraftStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.drafts, id)
	s.mu.Unlock()
	return nil
}

// Sweep evicts expired drafts
func (s *MemoryDraftStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.drafts {
		if s.expired(entry, now) {
			delete(s.drafts, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored drafts, expired ones included
func (s *MemoryDraftStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drafts)
}

func (s *MemoryDraftStore) expired(e memoryEntry, now time.Time) bool {
	return s.ttl > 0 && !now.Before(e.savedAt.Add(s.ttl))
}
