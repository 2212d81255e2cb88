package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventInitiated           PaymentEventType = "payment_initiated"
	PaymentEventInitiateFailed      PaymentEventType = "payment_initiate_failed"
	PaymentEventStatusCheckResponse PaymentEventType = "status_check_response"
	PaymentEventStatusCheckError    PaymentEventType = "status_check_error"
	PaymentEventSuccess             PaymentEventType = "payment_success"
	PaymentEventFailed              PaymentEventType = "payment_failed"
	PaymentEventTimeout             PaymentEventType = "payment_timeout"
	PaymentEventWatchCancelled      PaymentEventType = "watch_cancelled"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend PaymentEventSource = "backend" // upstream tour API
	PaymentSourceWatcher PaymentEventSource = "watcher" // polling loop
	PaymentSourceUser    PaymentEventSource = "user"    // waiting view
	PaymentSourceSystem  PaymentEventSource = "system"  // shutdown, sweeper
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	bytes, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// PaymentAudit is an append-only log entry for a payment session
type PaymentAudit struct {
	ID          uuid.UUID          `json:"id" db:"id"`
	OrderCode   string             `json:"order_code" db:"order_code"`
	BookingCode *string            `json:"booking_code,omitempty" db:"booking_code"`
	Gateway     *string            `json:"gateway,omitempty" db:"gateway"`
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	Amount        *int64  `json:"amount,omitempty" db:"amount"`
	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`
	GatewayCode   *string `json:"gateway_code,omitempty" db:"gateway_code"`
	CheckNumber   *int    `json:"check_number,omitempty" db:"check_number"`

	// Raw gateway payloads for debugging
	ResponsePayload JSONB   `json:"response_payload,omitempty" db:"response_payload"`
	RawBody         *string `json:"raw_body,omitempty" db:"raw_body"`

	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(orderCode string, eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		OrderCode:   orderCode,
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetSession copies the identifying fields of a payment session
func (pa *PaymentAudit) SetSession(s *PaymentSession) *PaymentAudit {
	booking := s.BookingCode
	gateway := s.GatewayName
	amount := s.Amount
	pa.BookingCode = &booking
	pa.Gateway = &gateway
	pa.Amount = &amount
	return pa
}

// SetPaymentStatus sets the normalized status and the gateway's own code
func (pa *PaymentAudit) SetPaymentStatus(status PaymentStatus, gatewayCode string) *PaymentAudit {
	s := string(status)
	pa.PaymentStatus = &s
	if gatewayCode != "" {
		pa.GatewayCode = &gatewayCode
	}
	return pa
}

// SetCheckNumber records which poll produced the event
func (pa *PaymentAudit) SetCheckNumber(n int) *PaymentAudit {
	pa.CheckNumber = &n
	return pa
}

// SetRawBody stores the raw response body before parsing
func (pa *PaymentAudit) SetRawBody(body []byte) *PaymentAudit {
	if len(body) == 0 {
		return pa
	}
	raw := string(body)
	pa.RawBody = &raw
	var payload map[string]interface{}
	if json.Unmarshal(body, &payload) == nil {
		pa.ResponsePayload = JSONB(payload)
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
	return pa
}
