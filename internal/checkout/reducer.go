package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// ErrInvalidEvent is returned for malformed or unknown draft events
var ErrInvalidEvent = errors.New("invalid checkout event")

// NewDraft builds the initial draft for a freshly fetched checkout context.
// One blank adult is seeded when the departure has a free seat.
func NewDraft(ctx models.CheckoutContext) models.BookingDraft {
	d := models.BookingDraft{
		Status:           models.DraftStatusOpen,
		Context:          ctx,
		GlobalCouponMode: models.GlobalCouponAuto,
	}
	if r, err := Increment(d.Roster, ctx.PriceSchedule, models.CategoryAdult); err == nil {
		d.Roster = r
	}
	Recompute(&d)
	return d
}

// Apply is the draft reducer: (draft, event) -> draft'. The input is never
// modified. Roster warnings come back as *models.RosterWarning together with
// the unchanged draft.
func Apply(d models.BookingDraft, e models.DraftEvent) (models.BookingDraft, error) {
	if d.IsSubmitted() {
		return d, models.ErrDraftSubmitted
	}

	next := d.Clone()
	var err error

	switch e.Type {
	case models.EventIncrement:
		next.Roster, err = Increment(next.Roster, next.Context.PriceSchedule, e.Category)

	case models.EventDecrement:
		next.Roster, err = Decrement(next.Roster, e.Category)

	case models.EventUpdatePassenger:
		if e.Patch == nil {
			return d, fmt.Errorf("%w: patch is required", ErrInvalidEvent)
		}
		next.Roster, err = UpdatePassenger(next.Roster, e.Category, e.Index, *e.Patch)

	case models.EventToggleSingleRoom:
		next.Roster, err = ToggleSingleRoom(next.Roster, e.Category, e.Index, e.Enabled)

	case models.EventSetContact:
		if e.Contact == nil {
			return d, fmt.Errorf("%w: contact is required", ErrInvalidEvent)
		}
		next.Contact = models.ContactInfo{
			FullName: strings.TrimSpace(e.Contact.FullName),
			Phone:    strings.TrimSpace(e.Contact.Phone),
			Email:    strings.TrimSpace(e.Contact.Email),
			Address:  strings.TrimSpace(e.Contact.Address),
		}

	case models.EventSetNote:
		next.CustomerNote = strings.TrimSpace(e.Note)

	case models.EventSelectGlobalCoupon:
		err = selectGlobalCoupon(&next, e.CouponCode)

	case models.EventClearGlobalCoupon:
		next.GlobalCouponMode = models.GlobalCouponAuto
		next.ManualGlobalCoupon = ""

	case models.EventDeclineGlobalCoupon:
		next.GlobalCouponMode = models.GlobalCouponNone
		next.ManualGlobalCoupon = ""

	case models.EventSetPoints:
		next.UseMaxPoints = false
		next.PointsRequested = ParsePoints(e.Points)

	case models.EventUseMaxPoints:
		next.UseMaxPoints = e.Enabled

	case models.EventReloadContext:
		if e.Context == nil {
			return d, fmt.Errorf("%w: context is required", ErrInvalidEvent)
		}
		next.Context = *e.Context

	default:
		return d, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}

	if err != nil {
		return d, err
	}

	Recompute(&next)
	return next, nil
}

func selectGlobalCoupon(d *models.BookingDraft, code string) error {
	c, ok := FindCoupon(d.Context.GlobalCoupons, code)
	if !ok {
		return warn(models.WarnUnknownCoupon, "Coupon %q is not available for this booking.", strings.TrimSpace(code))
	}
	subtotal := Subtotal(d.Roster, d.Context.PriceSchedule)
	if !c.EligibleFor(subtotal) {
		return warn(models.WarnCouponIneligible, "Coupon %s requires an order of at least %d.", c.Code, *c.MinOrderValue)
	}
	d.GlobalCouponMode = models.GlobalCouponManual
	d.ManualGlobalCoupon = c.Code
	return nil
}

// Recompute rebuilds the quote from the roster, the coupons and the point
// request, and re-clamps the point request. It is the only writer of
// draft.Quote and runs after every accepted event.
func Recompute(d *models.BookingDraft) {
	ctx := d.Context
	q := models.Quote{}

	q.Lines = PriceLines(d.Roster, ctx.PriceSchedule)
	q.Subtotal = sumLines(q.Lines)

	q.DepartureCoupon = ResolveDepartureCoupon(ctx.DepartureCoupon, q.Subtotal)
	q.GlobalCoupon, d.GlobalCouponMode, d.ManualGlobalCoupon =
		ResolveGlobalCoupon(ctx.GlobalCoupons, d.GlobalCouponMode, d.ManualGlobalCoupon, q.Subtotal)

	coupons := CouponContribution(q.DepartureCoupon, q.GlobalCoupon)
	q.MaxRedeemable = MaxRedeemable(q.Subtotal, coupons)
	q.PointsEnabled = q.MaxRedeemable > 0 && ctx.Loyalty.ExchangeRate > 0
	q.MaxPointsUsable = MaxPointsUsable(ctx.Loyalty.PointsAvailable, q.MaxRedeemable, ctx.Loyalty.ExchangeRate)

	if d.UseMaxPoints {
		d.PointsRequested = q.MaxPointsUsable
	} else {
		d.PointsRequested = ClampPoints(d.PointsRequested, q.MaxPointsUsable)
	}
	if q.PointsEnabled {
		q.PointsContribution = d.PointsRequested * ctx.Loyalty.ExchangeRate
	}

	q.TotalDiscount, q.FinalTotal = Stack(q.Subtotal, coupons, q.PointsContribution)
	d.Quote = q
}
