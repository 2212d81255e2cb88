package models

// DraftEventType names a mutation of the booking draft
type DraftEventType string

const (
	EventIncrement           DraftEventType = "increment"
	EventDecrement           DraftEventType = "decrement"
	EventUpdatePassenger     DraftEventType = "update_passenger"
	EventToggleSingleRoom    DraftEventType = "toggle_single_room"
	EventSetContact          DraftEventType = "set_contact"
	EventSetNote             DraftEventType = "set_note"
	EventSelectGlobalCoupon  DraftEventType = "select_global_coupon"
	EventClearGlobalCoupon   DraftEventType = "clear_global_coupon"
	EventDeclineGlobalCoupon DraftEventType = "decline_global_coupon"
	EventSetPoints           DraftEventType = "set_points"
	EventUseMaxPoints        DraftEventType = "use_max_points"
	EventReloadContext       DraftEventType = "reload_context"
)

// DraftEvent is one user action on the checkout screen. Only the fields
// relevant to Type are read.
type DraftEvent struct {
	Type DraftEventType `json:"type" binding:"required"`

	Category PassengerCategory `json:"category,omitempty"`
	Index    int               `json:"index,omitempty"`
	Patch    *PassengerPatch   `json:"patch,omitempty"`

	Contact *ContactInfo `json:"contact,omitempty"`
	Note    string       `json:"note,omitempty"`

	CouponCode string `json:"coupon_code,omitempty"`

	// Points is the raw text of the point input; non-numeric text clamps to 0.
	Points string `json:"points,omitempty"`
	// Enabled toggles "use max" on or off.
	Enabled bool `json:"enabled,omitempty"`

	// Context is only set by the service for EventReloadContext.
	Context *CheckoutContext `json:"-"`
}

// TouchesRoster returns true for events that change the priced roster
func (e DraftEvent) TouchesRoster() bool {
	switch e.Type {
	case EventIncrement, EventDecrement, EventUpdatePassenger, EventToggleSingleRoom, EventReloadContext:
		return true
	}
	return false
}
