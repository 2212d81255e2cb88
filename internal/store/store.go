package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// DraftStore persists booking drafts between requests. Get returns
// models.ErrDraftNotFound for unknown or expired ids.
type DraftStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error)
	Save(ctx context.Context, draft *models.BookingDraft) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Sweep evicts drafts idle since before now minus the TTL
	Sweep(ctx context.Context, now time.Time) (int, error)
}
