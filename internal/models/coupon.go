package models

// CouponScope says where a coupon comes from
type CouponScope string

const (
	CouponScopeGlobal    CouponScope = "GLOBAL"
	CouponScopeDeparture CouponScope = "DEPARTURE"
)

// Coupon is a fixed-amount discount with an optional order threshold
type Coupon struct {
	Code           string      `json:"code"`
	DiscountAmount Money       `json:"discount_amount"`
	MinOrderValue  *Money      `json:"min_order_value,omitempty"`
	Scope          CouponScope `json:"scope"`
	Description    string      `json:"description,omitempty"`
}

// EligibleFor reports whether the subtotal meets the coupon threshold
func (c Coupon) EligibleFor(subtotal Money) bool {
	if c.MinOrderValue == nil {
		return true
	}
	return subtotal >= *c.MinOrderValue
}

// GlobalCouponMode tracks how the global coupon slot is being filled
type GlobalCouponMode string

const (
	GlobalCouponAuto   GlobalCouponMode = "auto"   // best eligible candidate is picked on every recompute
	GlobalCouponManual GlobalCouponMode = "manual" // user picked a code
	GlobalCouponNone   GlobalCouponMode = "none"   // user declined global coupons
)
