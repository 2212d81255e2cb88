package checkout

import "github.com/smarttravel/checkout-backend/internal/models"

var categoryLabels = map[models.PassengerCategory]string{
	models.CategoryAdult:   "Adult",
	models.CategoryChild:   "Child",
	models.CategoryToddler: "Toddler",
	models.CategoryInfant:  "Infant",
}

// PriceLines breaks the subtotal down per category plus the single-room
// surcharge. Categories with no passengers or no price are omitted.
func PriceLines(r models.Roster, sched models.PriceSchedule) []models.PriceLine {
	lines := make([]models.PriceLine, 0, len(models.AllCategories)+1)
	for _, c := range models.AllCategories {
		n := r.Count(c)
		unit, sold := sched.UnitPrice(c)
		if n == 0 || !sold {
			continue
		}
		lines = append(lines, models.PriceLine{
			Label:     categoryLabels[c],
			Quantity:  n,
			UnitPrice: unit,
			Amount:    int64(n) * unit,
		})
	}
	if rooms := r.SingleRoomCount(); rooms > 0 && sched.SingleRoomSurcharge > 0 {
		lines = append(lines, models.PriceLine{
			Label:     "Single room surcharge",
			Quantity:  rooms,
			UnitPrice: sched.SingleRoomSurcharge,
			Amount:    int64(rooms) * sched.SingleRoomSurcharge,
		})
	}
	return lines
}

// Subtotal is Σ count × unit price + single rooms × surcharge
func Subtotal(r models.Roster, sched models.PriceSchedule) models.Money {
	return sumLines(PriceLines(r, sched))
}

func sumLines(lines []models.PriceLine) models.Money {
	var total models.Money
	for _, l := range lines {
		total += l.Amount
	}
	return total
}
