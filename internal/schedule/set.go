package schedule

import "sort"

// AvailabilitySet holds the selected slot starts for one (user, date) pair
// while it is being edited, before persistence. The set is always kept
// sorted ascending so display order and diffs are deterministic.
//
// All operations are pure in-memory set algebra over the bounded catalog;
// the set never touches storage or the network.
type AvailabilitySet struct {
	starts []SlotStart
}

// NewAvailabilitySet creates a set from the given starts. Duplicates are
// collapsed; any start outside the catalog returns ErrSlotNotInCatalog.
func NewAvailabilitySet(starts ...SlotStart) (*AvailabilitySet, error) {
	set := &AvailabilitySet{}
	for _, s := range starts {
		if !s.Valid() {
			return nil, ErrSlotNotInCatalog
		}
		if !set.Contains(s) {
			set.starts = append(set.starts, s)
		}
	}
	sort.Slice(set.starts, func(i, j int) bool { return set.starts[i] < set.starts[j] })
	return set, nil
}

// Contains returns true if the start is currently selected.
func (a *AvailabilitySet) Contains(s SlotStart) bool {
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] >= s })
	return i < len(a.starts) && a.starts[i] == s
}

// Toggle removes the start if present, inserts it if absent. It is its own
// inverse. Starts outside the catalog return ErrSlotNotInCatalog.
func (a *AvailabilitySet) Toggle(s SlotStart) error {
	if !s.Valid() {
		return ErrSlotNotInCatalog
	}
	i := sort.Search(len(a.starts), func(i int) bool { return a.starts[i] >= s })
	if i < len(a.starts) && a.starts[i] == s {
		a.starts = append(a.starts[:i], a.starts[i+1:]...)
		return nil
	}
	a.starts = append(a.starts, 0)
	copy(a.starts[i+1:], a.starts[i:])
	a.starts[i] = s
	return nil
}

// SelectAll sets the membership to the full catalog.
func (a *AvailabilitySet) SelectAll() {
	a.starts = Catalog()
}

// ClearAll empties the set.
func (a *AvailabilitySet) ClearAll() {
	a.starts = nil
}

// Len returns the number of selected starts.
func (a *AvailabilitySet) Len() int {
	return len(a.starts)
}

// Starts returns the selected starts in ascending order. The returned slice
// is a copy.
func (a *AvailabilitySet) Starts() []SlotStart {
	out := make([]SlotStart, len(a.starts))
	copy(out, a.starts)
	return out
}

// Diff compares the current selection against a previously saved one and
// returns the starts to add (current minus prior) and to remove (prior
// minus current), both ascending. Diff has no side effects.
func (a *AvailabilitySet) Diff(prior *AvailabilitySet) (toAdd, toRemove []SlotStart) {
	for _, s := range a.starts {
		if prior == nil || !prior.Contains(s) {
			toAdd = append(toAdd, s)
		}
	}
	if prior != nil {
		for _, s := range prior.starts {
			if !a.Contains(s) {
				toRemove = append(toRemove, s)
			}
		}
	}
	return toAdd, toRemove
}
