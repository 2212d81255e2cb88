package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the normalized state of a payment session.
// Matches PostgreSQL ENUM: payment_session_status
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// validPaymentTransitions is the whole state machine; terminal states map to nothing
var validPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentSuccess, PaymentFailed},
	PaymentSuccess: {},
	PaymentFailed:  {},
}

// IsValid returns true if the status is known
func (s PaymentStatus) IsValid() bool {
	_, ok := validPaymentTransitions[s]
	return ok
}

// CanTransitionTo returns true if moving to target is allowed
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, t := range validPaymentTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s PaymentStatus) IsTerminal() bool {
	return len(validPaymentTransitions[s]) == 0
}

// FailureReason distinguishes why a session ended in FAILED
type FailureReason string

const (
	FailureGateway   FailureReason = "gateway"   // explicit failed/cancelled code
	FailureTimeout   FailureReason = "timeout"   // no terminal status before the ceiling
	FailureAbandoned FailureReason = "abandoned" // left PENDING past the ceiling with no watcher, failed by the sweeper
)

// PaymentSession tracks one gateway checkout for a booking (payment_sessions table)
type PaymentSession struct {
	OrderCode     string         `json:"order_code" db:"order_code"`
	BookingCode   string         `json:"booking_code" db:"booking_code"`
	UserID        uuid.UUID      `json:"-" db:"user_id"`
	GatewayName   string         `json:"gateway" db:"gateway"`
	Amount        Money          `json:"amount" db:"amount"`
	PaymentURL    string         `json:"payment_url" db:"payment_url"`
	Status        PaymentStatus  `json:"status" db:"status"`
	FailureReason *FailureReason `json:"failure_reason,omitempty" db:"failure_reason"`
	GatewayCode   *string        `json:"gateway_code,omitempty" db:"gateway_code"`
	Checks        int            `json:"checks" db:"checks"`
	StartedAt     time.Time      `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
	RedirectAt    *time.Time     `json:"redirect_at,omitempty" db:"redirect_at"`
}

// Message is the user-facing text for the current state
func (p *PaymentSession) Message() string {
	switch p.Status {
	case PaymentSuccess:
		return "Payment received. Redirecting to your booking confirmation."
	case PaymentFailed:
		if p.FailureReason != nil {
			switch *p.FailureReason {
			case FailureTimeout:
				return "We did not hear back from the payment gateway in time. You can retry the payment or cancel."
			case FailureAbandoned:
				return "Payment confirmation was interrupted before the gateway answered. You can retry the payment or cancel."
			}
		}
		return "The payment was declined or cancelled at the gateway. You can retry the payment or cancel."
	}
	return "Waiting for the payment gateway to confirm your payment."
}

// Actions lists what the waiting view can offer the user
func (p *PaymentSession) Actions() []string {
	if p.Status == PaymentFailed {
		return []string{"retry", "cancel"}
	}
	return []string{}
}

// PaymentSessionResponse is the waiting-view representation of a session
type PaymentSessionResponse struct {
	*PaymentSession
	Message string   `json:"message"`
	Actions []string `json:"actions"`
	Polling bool     `json:"polling"`
}

// InitiatePaymentRequest is the body of POST /payments
type InitiatePaymentRequest struct {
	BookingCode string `json:"booking_code" binding:"required"`
	Gateway     string `json:"gateway" binding:"required"`
	DraftID     string `json:"draft_id" binding:"required,uuid"`
}

// InitiatePaymentResponse is returned once a gateway session exists
type InitiatePaymentResponse struct {
	PaymentURL string `json:"payment_url"`
	OrderCode  string `json:"order_code"`
	Amount     Money  `json:"amount"`
	Gateway    string `json:"gateway"`
}
