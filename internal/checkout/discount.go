package checkout

import (
	"strings"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// ResolveDepartureCoupon returns the departure coupon's contribution while
// the subtotal meets its threshold, nil otherwise.
func ResolveDepartureCoupon(c *models.Coupon, subtotal models.Money) *models.AppliedCoupon {
	if c == nil || !c.EligibleFor(subtotal) || c.DiscountAmount <= 0 {
		return nil
	}
	return &models.AppliedCoupon{
		Code:         c.Code,
		Scope:        models.CouponScopeDeparture,
		Contribution: c.DiscountAmount,
		AutoSelected: true,
	}
}

// FindCoupon looks a code up in the global catalog, ignoring case
func FindCoupon(catalog []models.Coupon, code string) (models.Coupon, bool) {
	code = strings.TrimSpace(code)
	for _, c := range catalog {
		if strings.EqualFold(c.Code, code) {
			return c, true
		}
	}
	return models.Coupon{}, false
}

// BestGlobalCoupon picks the eligible coupon with the largest discount.
// Catalog order breaks ties.
func BestGlobalCoupon(catalog []models.Coupon, subtotal models.Money) (models.Coupon, bool) {
	var best models.Coupon
	found := false
	for _, c := range catalog {
		if !c.EligibleFor(subtotal) || c.DiscountAmount <= 0 {
			continue
		}
		if !found || c.DiscountAmount > best.DiscountAmount {
			best = c
			found = true
		}
	}
	return best, found
}

// ResolveGlobalCoupon fills the global coupon slot for the given mode. A
// manual pick that is no longer eligible falls back to auto selection; the
// returned mode and code reflect that fallback.
func ResolveGlobalCoupon(catalog []models.Coupon, mode models.GlobalCouponMode, manualCode string, subtotal models.Money) (*models.AppliedCoupon, models.GlobalCouponMode, string) {
	if mode == models.GlobalCouponNone {
		return nil, mode, ""
	}

	if mode == models.GlobalCouponManual {
		if c, ok := FindCoupon(catalog, manualCode); ok && c.EligibleFor(subtotal) {
			return applied(c, false), mode, c.Code
		}
	}

	if c, ok := BestGlobalCoupon(catalog, subtotal); ok {
		return applied(c, true), models.GlobalCouponAuto, ""
	}
	return nil, models.GlobalCouponAuto, ""
}

func applied(c models.Coupon, auto bool) *models.AppliedCoupon {
	return &models.AppliedCoupon{
		Code:         c.Code,
		Scope:        models.CouponScopeGlobal,
		Contribution: c.DiscountAmount,
		AutoSelected: auto,
	}
}

// CouponContribution sums what the applied coupons take off the subtotal
func CouponContribution(coupons ...*models.AppliedCoupon) models.Money {
	var total models.Money
	for _, c := range coupons {
		if c != nil {
			total += c.Contribution
		}
	}
	return total
}

// Stack adds the discount sources without compounding and caps the result at
// the subtotal, so finalTotal stays in [0, subtotal].
func Stack(subtotal models.Money, contributions ...models.Money) (totalDiscount, finalTotal models.Money) {
	if subtotal <= 0 {
		return 0, 0
	}
	for _, c := range contributions {
		if c > 0 {
			totalDiscount += c
		}
	}
	if totalDiscount > subtotal {
		totalDiscount = subtotal
	}
	return totalDiscount, subtotal - totalDiscount
}
