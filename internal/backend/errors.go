package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the backend rejects the caller's token
	ErrUnauthorized = errors.New("backend rejected the session token")

	// ErrNotFound is returned for an unknown tour, departure or order
	ErrNotFound = errors.New("backend resource not found")
)

// Rejection codes the backend uses for create-booking
const (
	CodeSeatsUnavailable = "SEATS_UNAVAILABLE"
	CodeCouponInvalid    = "COUPON_INVALID"
	CodeRejected         = "REJECTED"
)

// SubmissionRejectedError is an authoritative refusal of a booking submission
type SubmissionRejectedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("booking rejected (%s): %s", e.Code, e.Message)
}

// SeatsUnavailable reports a lost capacity race
func (e *SubmissionRejectedError) SeatsUnavailable() bool {
	return e.Code == CodeSeatsUnavailable
}

// UpstreamError is a transport failure or a 5xx from the backend
type UpstreamError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AsSubmissionRejected extracts a SubmissionRejectedError from err
func AsSubmissionRejected(err error) (*SubmissionRejectedError, bool) {
	var r *SubmissionRejectedError
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// IsUpstream reports whether err is a transport or 5xx failure
func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}
