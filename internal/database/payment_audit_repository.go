package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// PaymentAuditRepository appends to and reads the payment audit trail
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log appends an audit entry. Payment events must not be dropped silently,
// so failures are logged at error level as well as returned.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, order_code, booking_code, gateway,
			event_type, event_source,
			amount, payment_status, gateway_code, check_number,
			response_payload, raw_body, error_message,
			created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.OrderCode, audit.BookingCode, audit.Gateway,
		audit.EventType, audit.EventSource,
		audit.Amount, audit.PaymentStatus, audit.GatewayCode, audit.CheckNumber,
		audit.ResponsePayload, audit.RawBody, audit.ErrorMessage,
		audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": audit.EventType,
			"order_code": audit.OrderCode,
		}).Error("CRITICAL: Failed to log payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
		"order_code": audit.OrderCode,
	}).Debug("Payment audit logged")

	return nil
}

// GetByOrderCode returns the trail of one session, oldest first
func (r *PaymentAuditRepository) GetByOrderCode(ctx context.Context, orderCode string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `
		SELECT id, order_code, booking_code, gateway, event_type, event_source,
			amount, payment_status, gateway_code, check_number,
			response_payload, raw_body, error_message, created_at
		FROM payment_audits
		WHERE order_code = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &audits, query, orderCode); err != nil {
		return nil, fmt.Errorf("failed to get audits by order code: %w", err)
	}
	return audits, nil
}
