package models

import "time"

// Money is an amount in the smallest currency unit
type Money = int64

// ============================================================================
// PRICE SCHEDULE
// ============================================================================

// PriceSchedule is owned by the selected departure. A nil unit price means
// the category is not sold on this departure.
type PriceSchedule struct {
	AdultPrice          Money  `json:"adult_price"`
	ChildPrice          *Money `json:"child_price,omitempty"`
	ToddlerPrice        *Money `json:"toddler_price,omitempty"`
	InfantPrice         *Money `json:"infant_price,omitempty"`
	SingleRoomSurcharge Money  `json:"single_room_surcharge"`
	AvailableSlots      int    `json:"available_slots"`
}

// UnitPrice returns the price for a category and whether it is sold at all
func (p PriceSchedule) UnitPrice(c PassengerCategory) (Money, bool) {
	switch c {
	case CategoryAdult:
		return p.AdultPrice, true
	case CategoryChild:
		return deref(p.ChildPrice)
	case CategoryToddler:
		return deref(p.ToddlerPrice)
	case CategoryInfant:
		return deref(p.InfantPrice)
	}
	return 0, false
}

func deref(m *Money) (Money, bool) {
	if m == nil {
		return 0, false
	}
	return *m, true
}

// ============================================================================
// LOYALTY
// ============================================================================

// LoyaltyAccount is the user's point balance and the fixed exchange rate
type LoyaltyAccount struct {
	PointsAvailable int64 `json:"points_available"`
	ExchangeRate    Money `json:"exchange_rate"` // currency per point
}

// ============================================================================
// CHECKOUT CONTEXT (GET checkout-context)
// ============================================================================

// CheckoutContext is the departure data fetched once per checkout session.
// AvailableSlots inside the schedule is a cached read, never a lock.
type CheckoutContext struct {
	TourCode        string         `json:"tour_code"`
	DepartureID     string         `json:"departure_id"`
	TourName        string         `json:"tour_name,omitempty"`
	DepartureDate   string         `json:"departure_date,omitempty"`
	Currency        string         `json:"currency"`
	PriceSchedule   PriceSchedule  `json:"price_schedule"`
	DepartureCoupon *Coupon        `json:"departure_coupon,omitempty"`
	GlobalCoupons   []Coupon       `json:"global_coupons"`
	Loyalty         LoyaltyAccount `json:"loyalty"`
	FetchedAt       time.Time      `json:"fetched_at"`
}
