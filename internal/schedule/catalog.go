// Package schedule implements the availability time-slot model: the fixed
// catalog of bookable hourly slots and the in-memory set algebra used to
// edit and diff a day's selection before it is persisted.
package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// FirstSlotHour is the earliest bookable start hour of a day.
	FirstSlotHour = 6
	// LastSlotHour is the latest bookable start hour of a day.
	LastSlotHour = 21
	// CatalogSize is the number of bookable slots per day.
	CatalogSize = LastSlotHour - FirstSlotHour + 1

	// DateLayout is the wire and storage format for calendar dates.
	DateLayout = "2006-01-02"
)

// ErrSlotNotInCatalog is returned when a start hour is outside the fixed
// catalog of bookable slots.
var ErrSlotNotInCatalog = fmt.Errorf("slot start is not in the catalog (%02d:00-%02d:00)", FirstSlotHour, LastSlotHour)

// SlotStart is the start hour of a bookable slot. Every slot is exactly one
// hour long, so the end is always derived as Start+1h and never stored.
type SlotStart int

// Valid returns true if the start hour is a member of the catalog.
func (s SlotStart) Valid() bool {
	return s >= FirstSlotHour && s <= LastSlotHour
}

// Clock returns the start time in HH:MM form, e.g. "09:00".
func (s SlotStart) Clock() string {
	return fmt.Sprintf("%02d:00", int(s))
}

// EndClock returns the derived end time in HH:MM form, e.g. "10:00".
func (s SlotStart) EndClock() string {
	return fmt.Sprintf("%02d:00", int(s)+1)
}

// Duration of every slot.
const SlotDuration = time.Hour

// MarshalJSON encodes the start as its HH:MM clock string.
func (s SlotStart) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Clock())
}

// UnmarshalJSON accepts either "HH:MM" clock strings or bare hour integers.
func (s *SlotStart) UnmarshalJSON(data []byte) error {
	var clock string
	if err := json.Unmarshal(data, &clock); err == nil {
		var hour, minute int
		if _, err := fmt.Sscanf(clock, "%d:%d", &hour, &minute); err != nil || minute != 0 {
			return fmt.Errorf("invalid slot start %q", clock)
		}
		*s = SlotStart(hour)
		return nil
	}

	var hour int
	if err := json.Unmarshal(data, &hour); err != nil {
		return fmt.Errorf("invalid slot start: %s", string(data))
	}
	*s = SlotStart(hour)
	return nil
}

// Catalog returns the fixed, ordered universe of bookable slot starts:
// the 16 hourly marks from 06:00 to 21:00 inclusive. The returned slice is
// a fresh copy on every call.
func Catalog() []SlotStart {
	starts := make([]SlotStart, 0, CatalogSize)
	for h := FirstSlotHour; h <= LastSlotHour; h++ {
		starts = append(starts, SlotStart(h))
	}
	return starts
}

// Slot is one bookable hour on a calendar day. End is derived, not stored.
type Slot struct {
	Date  time.Time
	Start SlotStart
}

// End returns the slot's derived end as a clock string.
func (sl Slot) End() string {
	return sl.Start.EndClock()
}

// DateString returns the slot's calendar date in DateLayout form.
func (sl Slot) DateString() string {
	return sl.Date.Format(DateLayout)
}

// MarshalJSON encodes the slot as its clock interval. The end is derived
// here and nowhere else on the wire.
func (sl Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}{Start: sl.Start.Clock(), End: sl.End()})
}

// DaySlots builds the Slot values for one day's selection of starts.
func DaySlots(day time.Time, starts []SlotStart) []Slot {
	slots := make([]Slot, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, Slot{Date: day, Start: s})
	}
	return slots
}

// ParseDate parses a calendar date in DateLayout form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
