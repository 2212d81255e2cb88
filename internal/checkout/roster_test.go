package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttravel/checkout-backend/internal/models"
)

func money(v models.Money) *models.Money {
	return &v
}

func testSchedule(slots int) models.PriceSchedule {
	return models.PriceSchedule{
		AdultPrice:          5_000_000,
		ChildPrice:          money(3_000_000),
		ToddlerPrice:        money(1_500_000),
		InfantPrice:         money(500_000),
		SingleRoomSurcharge: 1_200_000,
		AvailableSlots:      slots,
	}
}

func rosterOf(adults, children, toddlers, infants int) models.Roster {
	mk := func(c models.PassengerCategory, n int) []models.Passenger {
		out := make([]models.Passenger, n)
		for i := range out {
			out[i] = models.Passenger{Category: c}
		}
		return out
	}
	return models.Roster{
		Adults:   mk(models.CategoryAdult, adults),
		Children: mk(models.CategoryChild, children),
		Toddlers: mk(models.CategoryToddler, toddlers),
		Infants:  mk(models.CategoryInfant, infants),
	}
}

func requireWarning(t *testing.T, err error, code models.WarningCode) {
	t.Helper()
	w, ok := models.AsWarning(err)
	require.True(t, ok, "expected a roster warning, got %v", err)
	assert.Equal(t, code, w.Code)
	assert.NotEmpty(t, w.Message)
}

func TestIncrement_CapacityReached(t *testing.T) {
	// availableSlots = 2, a third seat is refused
	sched := testSchedule(2)
	r := rosterOf(1, 1, 0, 0)

	for _, c := range []models.PassengerCategory{models.CategoryAdult, models.CategoryChild, models.CategoryToddler} {
		t.Run(string(c), func(t *testing.T) {
			out, err := Increment(r, sched, c)
			requireWarning(t, err, models.WarnCapacityReached)
			assert.Equal(t, r, out)
		})
	}
}

func TestIncrement_InfantDoesNotTakeASeat(t *testing.T) {
	sched := testSchedule(2)
	r := rosterOf(2, 0, 0, 0)

	out, err := Increment(r, sched, models.CategoryInfant)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count(models.CategoryInfant))
	assert.Equal(t, 2, out.SeatOccupants())
}

func TestIncrement_InfantRatio(t *testing.T) {
	r := rosterOf(1, 0, 0, 1)

	out, err := Increment(r, testSchedule(10), models.CategoryInfant)
	requireWarning(t, err, models.WarnInfantRatio)
	assert.Equal(t, r, out)
}

func TestIncrement_CategoryNotSold(t *testing.T) {
	sched := testSchedule(10)
	sched.ToddlerPrice = nil

	_, err := Increment(rosterOf(1, 0, 0, 0), sched, models.CategoryToddler)
	requireWarning(t, err, models.WarnCategoryNotSold)

	_, err = Increment(rosterOf(1, 0, 0, 0), sched, models.PassengerCategory("SENIOR"))
	requireWarning(t, err, models.WarnCategoryNotSold)
}

func TestIncrement_NeedsAnAdultFirst(t *testing.T) {
	_, err := Increment(models.Roster{}, testSchedule(10), models.CategoryChild)
	requireWarning(t, err, models.WarnAdultRequired)
}

func TestIncrement_DoesNotShareBackingArray(t *testing.T) {
	r := models.Roster{Adults: make([]models.Passenger, 1, 4)}
	r.Adults[0] = models.Passenger{Category: models.CategoryAdult, FullName: "A"}

	out, err := Increment(r, testSchedule(10), models.CategoryAdult)
	require.NoError(t, err)
	out.Adults[0].FullName = "changed"

	assert.Equal(t, "A", r.Adults[0].FullName)
	assert.Len(t, r.Adults, 1)
	assert.Len(t, out.Adults, 2)
}

func TestDecrement(t *testing.T) {
	tests := []struct {
		name     string
		roster   models.Roster
		category models.PassengerCategory
		expected models.Roster
		warning  models.WarningCode
	}{
		{
			name:     "removes last child",
			roster:   rosterOf(1, 2, 0, 0),
			category: models.CategoryChild,
			expected: rosterOf(1, 1, 0, 0),
		},
		{
			name:     "empty category is a no-op",
			roster:   rosterOf(1, 0, 0, 0),
			category: models.CategoryToddler,
			expected: rosterOf(1, 0, 0, 0),
			warning:  models.WarnNothingToRemove,
		},
		{
			name:     "last adult with a child stays",
			roster:   rosterOf(1, 1, 0, 0),
			category: models.CategoryAdult,
			expected: rosterOf(1, 1, 0, 0),
			warning:  models.WarnAdultRequired,
		},
		{
			name:     "lone adult stays",
			roster:   rosterOf(1, 0, 0, 0),
			category: models.CategoryAdult,
			expected: rosterOf(1, 0, 0, 0),
			warning:  models.WarnAdultRequired,
		},
		{
			name:     "paired removal of adult and infant",
			roster:   rosterOf(1, 0, 0, 1),
			category: models.CategoryAdult,
			expected: rosterOf(0, 0, 0, 0),
		},
		{
			name:     "paired removal keeps other adults",
			roster:   rosterOf(2, 1, 0, 2),
			category: models.CategoryAdult,
			expected: rosterOf(1, 1, 0, 1),
		},
		{
			name:     "adult removal without pairing",
			roster:   rosterOf(3, 0, 0, 1),
			category: models.CategoryAdult,
			expected: rosterOf(2, 0, 0, 1),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Decrement(tc.roster, tc.category)
			if tc.warning != "" {
				requireWarning(t, err, tc.warning)
			} else {
				require.NoError(t, err)
			}
			for _, c := range models.AllCategories {
				assert.Equal(t, tc.expected.Count(c), out.Count(c), string(c))
			}
		})
	}
}

func TestDecrement_RemovesLastAdded(t *testing.T) {
	r := models.Roster{Children: []models.Passenger{
		{Category: models.CategoryChild, FullName: "first"},
		{Category: models.CategoryChild, FullName: "second"},
	}, Adults: []models.Passenger{{Category: models.CategoryAdult}}}

	out, err := Decrement(r, models.CategoryChild)
	require.NoError(t, err)
	require.Len(t, out.Children, 1)
	assert.Equal(t, "first", out.Children[0].FullName)
}

// Every roster reachable through Increment/Decrement keeps the seat and
// infant invariants.
func TestRosterInvariants_ExhaustiveWalk(t *testing.T) {
	type rosterOp struct {
		inc bool
		c   models.PassengerCategory
	}

	sched := testSchedule(3)
	var ops []rosterOp
	for _, c := range models.AllCategories {
		ops = append(ops, rosterOp{true, c}, rosterOp{false, c})
	}

	check := func(r models.Roster) {
		assert.LessOrEqual(t, r.SeatOccupants(), sched.AvailableSlots)
		assert.LessOrEqual(t, r.Count(models.CategoryInfant), r.Count(models.CategoryAdult))
		if r.Total() > 0 {
			assert.GreaterOrEqual(t, r.Count(models.CategoryAdult), 1)
		}
	}

	frontier := []models.Roster{{}}
	seen := map[[4]int]bool{}
	key := func(r models.Roster) [4]int {
		return [4]int{len(r.Adults), len(r.Children), len(r.Toddlers), len(r.Infants)}
	}
	seen[key(frontier[0])] = true

	for len(frontier) > 0 {
		r := frontier[0]
		frontier = frontier[1:]
		check(r)

		for _, op := range ops {
			var next models.Roster
			var err error
			if op.inc {
				next, err = Increment(r, sched, op.c)
			} else {
				next, err = Decrement(r, op.c)
			}
			if err != nil {
				assert.Equal(t, key(r), key(next))
				continue
			}
			if k := key(next); !seen[k] {
				seen[k] = true
				frontier = append(frontier, next)
			}
		}
	}

	assert.True(t, seen[[4]int{3, 0, 0, 3}])
	assert.True(t, seen[[4]int{1, 1, 1, 1}])
}

func TestUpdatePassenger(t *testing.T) {
	r := rosterOf(2, 0, 0, 0)
	name := "  Tran Thi B "
	dob := "1990-04-30"

	out, err := UpdatePassenger(r, models.CategoryAdult, 1, models.PassengerPatch{FullName: &name, DateOfBirth: &dob})
	require.NoError(t, err)
	assert.Equal(t, "Tran Thi B", out.Adults[1].FullName)
	assert.Equal(t, "1990-04-30", out.Adults[1].DateOfBirth)
	assert.Empty(t, r.Adults[1].FullName)

	_, err = UpdatePassenger(r, models.CategoryAdult, 2, models.PassengerPatch{FullName: &name})
	requireWarning(t, err, models.WarnUnknownPassenger)
}

func TestToggleSingleRoom(t *testing.T) {
	r := rosterOf(1, 1, 0, 0)

	out, err := ToggleSingleRoom(r, models.CategoryAdult, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, out.SingleRoomCount())

	_, err = ToggleSingleRoom(r, models.CategoryChild, 0, true)
	requireWarning(t, err, models.WarnSingleRoomAdults)

	_, err = ToggleSingleRoom(r, models.CategoryAdult, 5, true)
	requireWarning(t, err, models.WarnUnknownPassenger)
}
