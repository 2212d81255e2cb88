package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// BOOKING DRAFT (the checkout aggregate)
// ============================================================================

// DraftStatus is the lifecycle state of a booking draft
type DraftStatus string

const (
	DraftStatusOpen      DraftStatus = "open"      // editable
	DraftStatusSubmitted DraftStatus = "submitted" // consumed by create-booking, immutable
)

// ContactInfo is the person the operator contacts about the booking
type ContactInfo struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address,omitempty"`
}

// DeviceInfo is the parsed User-Agent of the browser that opened the draft
type DeviceInfo struct {
	DeviceType string `json:"device_type"`
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
	IPAddress  string `json:"ip_address,omitempty"`
}

// BookingDraft is everything the customer has entered on the checkout screen.
// All derived figures live in Quote and are rebuilt by the reducer after every
// mutation; nothing else writes them.
type BookingDraft struct {
	ID             uuid.UUID   `json:"id"`
	UserID         uuid.UUID   `json:"user_id"`
	Status         DraftStatus `json:"status"`
	IdempotencyKey string      `json:"idempotency_key"`

	Context CheckoutContext `json:"context"`

	Roster       Roster      `json:"roster"`
	Contact      ContactInfo `json:"contact"`
	CustomerNote string      `json:"customer_note,omitempty"`

	// Global coupon slot. ManualGlobalCoupon is only meaningful in manual mode.
	GlobalCouponMode   GlobalCouponMode `json:"global_coupon_mode"`
	ManualGlobalCoupon string           `json:"manual_global_coupon,omitempty"`

	// Points. UseMaxPoints pins PointsRequested to the current maximum.
	PointsRequested int64 `json:"points_requested"`
	UseMaxPoints    bool  `json:"use_max_points"`

	Quote Quote `json:"quote"`

	Booking *Booking    `json:"booking,omitempty"`
	Device  *DeviceInfo `json:"device,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSubmitted returns true once the draft has been consumed
func (d *BookingDraft) IsSubmitted() bool {
	return d.Status == DraftStatusSubmitted
}

// Clone deep-copies the draft
func (d BookingDraft) Clone() BookingDraft {
	out := d
	out.Roster = d.Roster.Clone()
	out.Context.GlobalCoupons = append([]Coupon(nil), d.Context.GlobalCoupons...)
	out.Quote.Lines = append([]PriceLine(nil), d.Quote.Lines...)
	if d.Booking != nil {
		b := *d.Booking
		out.Booking = &b
	}
	return out
}

// ============================================================================
// QUOTE (derived)
// ============================================================================

// PriceLine is one row of the subtotal breakdown
type PriceLine struct {
	Label     string `json:"label"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
	Amount    Money  `json:"amount"`
}

// AppliedCoupon is a coupon that currently contributes to the discount
type AppliedCoupon struct {
	Code         string      `json:"code"`
	Scope        CouponScope `json:"scope"`
	Contribution Money       `json:"contribution"`
	AutoSelected bool        `json:"auto_selected"`
}

// Quote is the priced view of a draft
type Quote struct {
	Lines    []PriceLine `json:"lines"`
	Subtotal Money       `json:"subtotal"`

	DepartureCoupon *AppliedCoupon `json:"departure_coupon,omitempty"`
	GlobalCoupon    *AppliedCoupon `json:"global_coupon,omitempty"`

	MaxRedeemable      Money `json:"max_redeemable"`
	MaxPointsUsable    int64 `json:"max_points_usable"`
	PointsEnabled      bool  `json:"points_enabled"`
	PointsContribution Money `json:"points_contribution"`

	TotalDiscount Money `json:"total_discount"`
	FinalTotal    Money `json:"final_total"`
}

// CouponCodes lists the contributing coupons, departure first
func (q Quote) CouponCodes() []string {
	codes := make([]string, 0, 2)
	if q.DepartureCoupon != nil {
		codes = append(codes, q.DepartureCoupon.Code)
	}
	if q.GlobalCoupon != nil {
		codes = append(codes, q.GlobalCoupon.Code)
	}
	return codes
}

// ============================================================================
// SUBMISSION / BOOKING
// ============================================================================

// SubmissionPassenger is a category-tagged passenger in the create-booking payload
type SubmissionPassenger struct {
	Category    PassengerCategory `json:"category"`
	FullName    string            `json:"full_name"`
	Gender      string            `json:"gender,omitempty"`
	DateOfBirth string            `json:"date_of_birth"`
	SingleRoom  bool              `json:"single_room"`
}

// SubmissionPayload is the body of POST create-booking
type SubmissionPayload struct {
	TourCode     string                `json:"tour_code"`
	DepartureID  string                `json:"departure_id"`
	Passengers   []SubmissionPassenger `json:"passengers"`
	CouponCodes  []string              `json:"coupon_codes"`
	PointsUsed   *int64                `json:"points_used"`
	Contact      ContactInfo           `json:"contact"`
	CustomerNote string                `json:"customer_note,omitempty"`
	// Client-side figures; the server recomputes and may disagree.
	ExpectedTotal Money `json:"expected_total"`
}

// Booking is the server-issued record that replaces a submitted draft
type Booking struct {
	BookingCode   string `json:"booking_code"`
	Status        string `json:"status"`
	Subtotal      Money  `json:"subtotal"`
	TotalDiscount Money  `json:"total_discount"`
	FinalTotal    Money  `json:"final_total"`
	Currency      string `json:"currency,omitempty"`
}

// ============================================================================
// HTTP VIEWS
// ============================================================================

// OpenCheckoutRequest is the body of POST /checkout
type OpenCheckoutRequest struct {
	TourCode    string `json:"tour_code" binding:"required"`
	DepartureID string `json:"departure_id" binding:"required"`
}

// DraftResponse is the checkout screen state. Warning is set when the last
// event was rejected and the draft left unchanged.
type DraftResponse struct {
	Draft   *BookingDraft  `json:"draft"`
	Warning *RosterWarning `json:"warning,omitempty"`
}

// SubmitResponse is returned once create-booking accepted the draft
type SubmitResponse struct {
	Booking *Booking           `json:"booking"`
	Payload *SubmissionPayload `json:"payload"`
	Draft   *BookingDraft      `json:"draft"`
}
