package checkout

import (
	"fmt"
	"time"

	"github.com/smarttravel/checkout-backend/internal/models"
	"github.com/smarttravel/checkout-backend/pkg/validator"
)

const birthDateLayout = "2006-01-02"

// SubmissionValidator is the last gate before create-booking
type SubmissionValidator struct {
	contact *validator.ContactValidator
	now     func() time.Time
}

// NewSubmissionValidator creates a validator using the wall clock
func NewSubmissionValidator() *SubmissionValidator {
	return &SubmissionValidator{
		contact: validator.NewContactValidator(),
		now:     time.Now,
	}
}

func invalid(rule models.ValidationRule, field, format string, args ...interface{}) *models.ValidationError {
	return &models.ValidationError{Rule: rule, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate re-checks the draft in a fixed order and returns the first
// failure as a *models.ValidationError.
func (v *SubmissionValidator) Validate(d *models.BookingDraft) error {
	r := &d.Roster
	slots := d.Context.PriceSchedule.AvailableSlots

	if r.SeatOccupants() > slots {
		return invalid(models.RuleCapacity, "passengers",
			"Only %d seat(s) are left on this departure but %d passengers need a seat.", slots, r.SeatOccupants())
	}
	if r.SeatOccupants() < 1 {
		return invalid(models.RuleEmptyRoster, "passengers", "Add at least one passenger.")
	}
	for _, c := range models.AllCategories {
		if _, sold := d.Context.PriceSchedule.UnitPrice(c); !sold && r.Count(c) > 0 {
			return invalid(models.RuleNotSold, "passengers."+label(c),
				"This departure no longer sells %s tickets. Remove them to continue.", label(c))
		}
	}

	if err := v.contact.ValidateName(d.Contact.FullName); err != nil {
		return invalid(models.RuleContact, "contact.full_name", "Please enter the contact name.")
	}
	if _, err := v.contact.ValidatePhone(d.Contact.Phone); err != nil {
		return invalid(models.RuleContact, "contact.phone", "Please enter a phone number of 10 or 11 digits.")
	}
	if err := v.contact.ValidateEmail(d.Contact.Email); err != nil {
		return invalid(models.RuleContact, "contact.email", "Please enter a valid email address.")
	}

	for _, c := range models.AllCategories {
		for i, p := range r.List(c) {
			field := fmt.Sprintf("passengers.%s[%d]", label(c), i)
			if err := v.contact.ValidateName(p.FullName); err != nil {
				return invalid(models.RulePassenger, field+".full_name", "Enter the full name of %s #%d.", label(c), i+1)
			}
			if !v.validBirthDate(p.DateOfBirth) {
				return invalid(models.RulePassenger, field+".date_of_birth", "Enter a valid birth date for %s #%d.", label(c), i+1)
			}
		}
	}

	if r.Count(models.CategoryInfant) > r.Count(models.CategoryAdult) {
		return invalid(models.RuleInfantRatio, "passengers", "Each infant must travel with a different adult.")
	}
	return nil
}

func (v *SubmissionValidator) validBirthDate(s string) bool {
	t, err := time.Parse(birthDateLayout, s)
	if err != nil {
		return false
	}
	return !t.After(v.now())
}

// BuildPayload recomputes the quote, validates, and assembles the
// create-booking body. The draft itself is not modified.
func (v *SubmissionValidator) BuildPayload(d models.BookingDraft) (*models.SubmissionPayload, error) {
	fresh := d.Clone()
	Recompute(&fresh)

	if err := v.Validate(&fresh); err != nil {
		return nil, err
	}

	// Validate accepted the phone, so this only strips separators
	if phone, err := v.contact.ValidatePhone(fresh.Contact.Phone); err == nil {
		fresh.Contact.Phone = phone
	}

	q := fresh.Quote
	payload := &models.SubmissionPayload{
		TourCode:      fresh.Context.TourCode,
		DepartureID:   fresh.Context.DepartureID,
		Passengers:    make([]models.SubmissionPassenger, 0, fresh.Roster.Total()),
		CouponCodes:   q.CouponCodes(),
		Contact:       fresh.Contact,
		CustomerNote:  fresh.CustomerNote,
		ExpectedTotal: q.FinalTotal,
	}
	for _, p := range fresh.Roster.Flatten() {
		payload.Passengers = append(payload.Passengers, models.SubmissionPassenger{
			Category:    p.Category,
			FullName:    p.FullName,
			Gender:      p.Gender,
			DateOfBirth: p.DateOfBirth,
			SingleRoom:  p.SingleRoomRequested,
		})
	}
	if q.PointsContribution > 0 {
		points := fresh.PointsRequested
		payload.PointsUsed = &points
	}
	return payload, nil
}
