package models

import "errors"

var (
	// ErrDraftNotFound is returned when a draft id is unknown or expired
	ErrDraftNotFound = errors.New("booking draft not found")

	// ErrDraftSubmitted is returned for any mutation of a consumed draft
	ErrDraftSubmitted = errors.New("booking draft has already been submitted")

	// ErrDraftForbidden is returned when a user touches another user's draft
	ErrDraftForbidden = errors.New("booking draft belongs to another user")

	// ErrPaymentSessionNotFound is returned for an unknown order code
	ErrPaymentSessionNotFound = errors.New("payment session not found")
)

// ValidationRule names the submission check that failed
type ValidationRule string

const (
	RuleCapacity    ValidationRule = "capacity"
	RuleEmptyRoster ValidationRule = "empty_roster"
	RuleNotSold     ValidationRule = "category_not_sold"
	RuleContact     ValidationRule = "contact"
	RulePassenger   ValidationRule = "passenger"
	RuleInfantRatio ValidationRule = "infant_ratio"
)

// ValidationError is a local validation failure caught before any network call
type ValidationError struct {
	Rule    ValidationRule `json:"rule"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// WarningCode identifies a rejected roster edit
type WarningCode string

const (
	WarnCapacityReached  WarningCode = "CAPACITY_REACHED"
	WarnInfantRatio      WarningCode = "INFANT_RATIO"
	WarnCategoryNotSold  WarningCode = "CATEGORY_NOT_SOLD"
	WarnAdultRequired    WarningCode = "ADULT_REQUIRED"
	WarnNothingToRemove  WarningCode = "NOTHING_TO_REMOVE"
	WarnUnknownPassenger WarningCode = "UNKNOWN_PASSENGER"
	WarnSingleRoomAdults WarningCode = "SINGLE_ROOM_ADULT_ONLY"
	WarnUnknownCoupon    WarningCode = "UNKNOWN_COUPON"
	WarnCouponIneligible WarningCode = "COUPON_INELIGIBLE"
)

// RosterWarning is a user-visible rejection of an edit. The draft is left
// unchanged when one is returned.
type RosterWarning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

func (w *RosterWarning) Error() string {
	return w.Message
}

// AsWarning extracts a RosterWarning from err
func AsWarning(err error) (*RosterWarning, bool) {
	var w *RosterWarning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}

// AsValidation extracts a ValidationError from err
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
