package checkout

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// MaxRedeemable is the headroom left for points after coupons
func MaxRedeemable(subtotal, couponDiscount models.Money) models.Money {
	return subtotal - couponDiscount
}

// MaxPointsUsable = min(available, floor(maxRedeemable / rate)). Zero when
// there is no headroom or no usable exchange rate.
func MaxPointsUsable(available int64, maxRedeemable, rate models.Money) int64 {
	if maxRedeemable <= 0 || rate <= 0 || available <= 0 {
		return 0
	}
	byHeadroom := maxRedeemable / rate
	if available < byHeadroom {
		return available
	}
	return byHeadroom
}

// ClampPoints forces requested into [0, limit]
func ClampPoints(requested, limit int64) int64 {
	if requested < 0 || limit <= 0 {
		return 0
	}
	if requested > limit {
		return limit
	}
	return requested
}

// ParsePoints reads the raw point input. Thousands separators are ignored,
// non-numeric text becomes 0 and overflow saturates; ClampPoints does the rest.
func ParsePoints(raw string) int64 {
	s := strings.NewReplacer(",", "", "_", "", " ", "").Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-") {
			return math.MaxInt64
		}
		return 0
	}
	return n
}
