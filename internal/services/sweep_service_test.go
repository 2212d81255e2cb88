package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/internal/session"
	"github.com/smarttravel/checkout-backend/internal/store"
)

type countingDraftSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingDraftSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	c.calls.Add(1)
	return 2, c.err
}

type stubPaymentSweeper struct {
	failed, pruned int
}

func (s stubPaymentSweeper) Sweep(ctx context.Context, now time.Time) (int, int, error) {
	return s.failed, s.pruned, nil
}

func TestSweepService_RunOnce(t *testing.T) {
	drafts := store.NewMemoryDraftStore(time.Millisecond)
	require.NoError(t, drafts.Save(context.Background(), &models.BookingDraft{ID: uuid.New()}))
	time.Sleep(5 * time.Millisecond)

	registry := session.NewRegistry()
	registry.Revoke("expired-token", time.Now().Add(-time.Minute))
	registry.Revoke("live-token", time.Now().Add(time.Hour))

	svc, err := NewSweepService(time.Minute, drafts, stubPaymentSweeper{failed: 1, pruned: 3}, registry, quietLogger())
	require.NoError(t, err)

	report := svc.RunOnce(context.Background())
	assert.Equal(t, SweepReport{Drafts: 1, FailedPayments: 1, PrunedWatchers: 3, RevokedSessions: 1}, report)
	assert.Equal(t, 0, drafts.Len())
	assert.Equal(t, 1, registry.Len())
}

func TestSweepService_RunOnce_ContinuesAfterFailure(t *testing.T) {
	drafts := &countingDraftSweeper{err: errors.New("redis unavailable")}
	svc, err := NewSweepService(time.Minute, drafts, stubPaymentSweeper{failed: 2}, nil, quietLogger())
	require.NoError(t, err)

	report := svc.RunOnce(context.Background())
	assert.Equal(t, 2, report.FailedPayments)
	assert.Equal(t, int32(1), drafts.calls.Load())
}

func TestSweepService_StartStop(t *testing.T) {
	drafts := &countingDraftSweeper{}
	svc, err := NewSweepService(20*time.Millisecond, drafts, nil, nil, quietLogger())
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	require.Eventually(t, func() bool {
		return drafts.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Stop())

	stopped := drafts.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, drafts.calls.Load())
}
