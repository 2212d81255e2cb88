package models

import (
	"fmt"
	"strings"
)

// ============================================================================
// PASSENGER CATEGORIES
// ============================================================================

// PassengerCategory partitions the roster by age band
type PassengerCategory string

const (
	CategoryAdult   PassengerCategory = "ADULT"
	CategoryChild   PassengerCategory = "CHILD"
	CategoryToddler PassengerCategory = "TODDLER"
	CategoryInfant  PassengerCategory = "INFANT"
)

// AllCategories lists categories in display and pricing order
var AllCategories = []PassengerCategory{CategoryAdult, CategoryChild, CategoryToddler, CategoryInfant}

// ParseCategory accepts any casing of a category name
func ParseCategory(s string) (PassengerCategory, error) {
	c := PassengerCategory(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown passenger category %q", s)
	}
	return c, nil
}

// IsValid returns true for the four known categories
func (c PassengerCategory) IsValid() bool {
	switch c {
	case CategoryAdult, CategoryChild, CategoryToddler, CategoryInfant:
		return true
	}
	return false
}

// OccupiesSeat reports whether the category consumes one unit of availableSlots.
// Infants travel on an adult's lap.
func (c PassengerCategory) OccupiesSeat() bool {
	return c == CategoryAdult || c == CategoryChild || c == CategoryToddler
}

// ============================================================================
// PASSENGER
// ============================================================================

// Passenger is one traveller on the booking draft
type Passenger struct {
	Category            PassengerCategory `json:"category"`
	FullName            string            `json:"full_name"`
	Gender              string            `json:"gender,omitempty"`
	DateOfBirth         string            `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	SingleRoomRequested bool              `json:"single_room_requested,omitempty"`
}

// PassengerPatch carries a partial update from the passenger form.
// Nil fields are left untouched.
type PassengerPatch struct {
	FullName    *string `json:"full_name,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`
}

// Roster holds category-partitioned passenger lists. Members are appended
// and removed from the tail of their category list.
type Roster struct {
	Adults   []Passenger `json:"adults"`
	Children []Passenger `json:"children"`
	Toddlers []Passenger `json:"toddlers"`
	Infants  []Passenger `json:"infants"`
}

// List returns the passengers for a category
func (r *Roster) List(c PassengerCategory) []Passenger {
	switch c {
	case CategoryAdult:
		return r.Adults
	case CategoryChild:
		return r.Children
	case CategoryToddler:
		return r.Toddlers
	case CategoryInfant:
		return r.Infants
	}
	return nil
}

// SetList replaces the passengers for a category
func (r *Roster) SetList(c PassengerCategory, list []Passenger) {
	switch c {
	case CategoryAdult:
		r.Adults = list
	case CategoryChild:
		r.Children = list
	case CategoryToddler:
		r.Toddlers = list
	case CategoryInfant:
		r.Infants = list
	}
}

// Count returns how many passengers of a category are on the roster
func (r *Roster) Count(c PassengerCategory) int {
	return len(r.List(c))
}

// SeatOccupants is |ADULT| + |CHILD| + |TODDLER|
func (r *Roster) SeatOccupants() int {
	return len(r.Adults) + len(r.Children) + len(r.Toddlers)
}

// Total is the number of passengers across every category
func (r *Roster) Total() int {
	return r.SeatOccupants() + len(r.Infants)
}

// SingleRoomCount counts adults that asked for a single room
func (r *Roster) SingleRoomCount() int {
	n := 0
	for _, p := range r.Adults {
		if p.SingleRoomRequested {
			n++
		}
	}
	return n
}

// Flatten returns every passenger in category order
func (r *Roster) Flatten() []Passenger {
	out := make([]Passenger, 0, r.Total())
	for _, c := range AllCategories {
		out = append(out, r.List(c)...)
	}
	return out
}

// Clone deep-copies the roster so reducers never share backing arrays
func (r Roster) Clone() Roster {
	cp := func(in []Passenger) []Passenger {
		if in == nil {
			return nil
		}
		out := make([]Passenger, len(in))
		copy(out, in)
		return out
	}
	return Roster{
		Adults:   cp(r.Adults),
		Children: cp(r.Children),
		Toddlers: cp(r.Toddlers),
		Infants:  cp(r.Infants),
	}
}
