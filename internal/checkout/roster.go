package checkout

import (
	"fmt"
	"strings"

	"github.com/smarttravel/checkout-backend/internal/models"
)

func warn(code models.WarningCode, format string, args ...interface{}) *models.RosterWarning {
	return &models.RosterWarning{Code: code, Message: fmt.Sprintf(format, args...)}
}

func label(c models.PassengerCategory) string {
	return strings.ToLower(string(c))
}

// Increment appends a blank passenger of category c. The returned roster is a
// copy; on rejection the input is returned untouched together with a
// *models.RosterWarning.
func Increment(r models.Roster, sched models.PriceSchedule, c models.PassengerCategory) (models.Roster, error) {
	if !c.IsValid() {
		return r, warn(models.WarnCategoryNotSold, "Unknown passenger category %q.", c)
	}
	if _, sold := sched.UnitPrice(c); !sold {
		return r, warn(models.WarnCategoryNotSold, "This departure does not sell %s tickets.", label(c))
	}
	if c.OccupiesSeat() && r.SeatOccupants() >= sched.AvailableSlots {
		return r, warn(models.WarnCapacityReached, "Only %d seat(s) are available on this departure.", sched.AvailableSlots)
	}
	if c != models.CategoryAdult && r.Count(models.CategoryAdult) == 0 {
		return r, warn(models.WarnAdultRequired, "Add an adult before adding a %s.", label(c))
	}
	if c == models.CategoryInfant && r.Count(models.CategoryInfant) >= r.Count(models.CategoryAdult) {
		return r, warn(models.WarnInfantRatio, "Each infant must travel with a different adult.")
	}

	out := r.Clone()
	out.SetList(c, append(out.List(c), models.Passenger{Category: c}))
	return out, nil
}

// Decrement removes the last-added passenger of category c.
//
// Removing an adult that would leave fewer adults than infants takes the
// last infant with it. The last adult can only be removed when nobody but
// infants would be left behind, in which case the roster empties.
func Decrement(r models.Roster, c models.PassengerCategory) (models.Roster, error) {
	if !c.IsValid() {
		return r, warn(models.WarnNothingToRemove, "Unknown passenger category %q.", c)
	}
	if r.Count(c) == 0 {
		return r, warn(models.WarnNothingToRemove, "There is no %s to remove.", label(c))
	}

	out := r.Clone()
	if c != models.CategoryAdult {
		out.SetList(c, dropLast(out.List(c)))
		return out, nil
	}

	adults := r.Count(models.CategoryAdult)
	infants := r.Count(models.CategoryInfant)
	others := r.Count(models.CategoryChild) + r.Count(models.CategoryToddler)

	if adults == 1 && (others > 0 || infants == 0) {
		return r, warn(models.WarnAdultRequired, "At least one adult is required on the booking.")
	}

	out.Adults = dropLast(out.Adults)
	if len(out.Adults) < infants {
		out.Infants = dropLast(out.Infants)
	}
	return out, nil
}

func dropLast(list []models.Passenger) []models.Passenger {
	if len(list) == 0 {
		return list
	}
	return list[:len(list)-1]
}

// UpdatePassenger applies a partial form update to one passenger
func UpdatePassenger(r models.Roster, c models.PassengerCategory, index int, patch models.PassengerPatch) (models.Roster, error) {
	if index < 0 || index >= r.Count(c) {
		return r, warn(models.WarnUnknownPassenger, "Passenger %s #%d does not exist.", label(c), index+1)
	}

	out := r.Clone()
	p := &out.List(c)[index]
	if patch.FullName != nil {
		p.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.DateOfBirth != nil {
		p.DateOfBirth = strings.TrimSpace(*patch.DateOfBirth)
	}
	return out, nil
}

// ToggleSingleRoom sets the single-room request of one adult
func ToggleSingleRoom(r models.Roster, c models.PassengerCategory, index int, enabled bool) (models.Roster, error) {
	if c != models.CategoryAdult {
		return r, warn(models.WarnSingleRoomAdults, "Only adults can request a single room.")
	}
	if index < 0 || index >= r.Count(c) {
		return r, warn(models.WarnUnknownPassenger, "Passenger %s #%d does not exist.", label(c), index+1)
	}

	out := r.Clone()
	out.Adults[index].SingleRoomRequested = enabled
	return out, nil
}
