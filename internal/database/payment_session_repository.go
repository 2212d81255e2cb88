package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/models"
)

const paymentSessionColumns = `
	order_code, booking_code, user_id, gateway, amount, payment_url,
	status, failure_reason, gateway_code, checks,
	started_at, finished_at, redirect_at`

// PaymentSessionRepository persists payment sessions
type PaymentSessionRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentSessionRepository creates a new payment session repository
func NewPaymentSessionRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentSessionRepository {
	return &PaymentSessionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new PENDING session
func (r *PaymentSessionRepository) Create(ctx context.Context, s *models.PaymentSession) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	if s.Status == "" {
		s.Status = models.PaymentPending
	}

	query := `
		INSERT INTO payment_sessions (` + paymentSessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		s.OrderCode, s.BookingCode, s.UserID, s.GatewayName, s.Amount, s.PaymentURL,
		s.Status, s.FailureReason, s.GatewayCode, s.Checks,
		s.StartedAt, s.FinishedAt, s.RedirectAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment session: %w", err)
	}
	return nil
}

// GetByOrderCode loads one session
func (r *PaymentSessionRepository) GetByOrderCode(ctx context.Context, orderCode string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	query := `SELECT ` + paymentSessionColumns + ` FROM payment_sessions WHERE order_code = $1`

	err := r.db.GetContext(ctx, &s, query, orderCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPaymentSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment session: %w", err)
	}
	return &s, nil
}

// GetPendingByBooking returns the open session for a booking and gateway, if any
func (r *PaymentSessionRepository) GetPendingByBooking(ctx context.Context, bookingCode, gateway string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	query := `SELECT ` + paymentSessionColumns + ` FROM payment_sessions
		WHERE booking_code = $1 AND gateway = $2 AND status = 'PENDING'
		ORDER BY started_at DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &s, query, bookingCode, gateway)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPaymentSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending payment session: %w", err)
	}
	return &s, nil
}

// UpdateChecks records the poll count of a session that is still PENDING
func (r *PaymentSessionRepository) UpdateChecks(ctx context.Context, orderCode string, checks int) error {
	query := `UPDATE payment_sessions SET checks = $2 WHERE order_code = $1 AND status = 'PENDING'`
	if _, err := r.db.ExecContext(ctx, query, orderCode, checks); err != nil {
		return fmt.Errorf("failed to update payment checks: %w", err)
	}
	return nil
}

// Finish stores a terminal state. Only PENDING rows are touched, so a
// terminal state is never overwritten. Returns false when nothing changed.
func (r *PaymentSessionRepository) Finish(ctx context.Context, s *models.PaymentSession) (bool, error) {
	if !s.Status.IsTerminal() {
		return false, fmt.Errorf("cannot finish payment session %s with status %s", s.OrderCode, s.Status)
	}

	query := `
		UPDATE payment_sessions
		SET status = $2, failure_reason = $3, gateway_code = $4, checks = $5,
			finished_at = $6, redirect_at = $7
		WHERE order_code = $1 AND status = 'PENDING'`

	result, err := r.db.ExecContext(ctx, query,
		s.OrderCode, s.Status, s.FailureReason, s.GatewayCode, s.Checks,
		s.FinishedAt, s.RedirectAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish payment session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// FailStale fails sessions still PENDING that started before the cutoff and
// returns their order codes
func (r *PaymentSessionRepository) FailStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
		UPDATE payment_sessions
		SET status = 'FAILED', failure_reason = $2, finished_at = NOW()
		WHERE status = 'PENDING' AND started_at < $1
		RETURNING order_code`

	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, cutoff, models.FailureAbandoned); err != nil {
		return nil, fmt.Errorf("failed to fail stale payment sessions: %w", err)
	}

	if len(codes) > 0 {
		r.logger.WithFields(logrus.Fields{
			"count":  len(codes),
			"cutoff": cutoff,
		}).Warn("Failed abandoned payment sessions")
	}
	return codes, nil
}
