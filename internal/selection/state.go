package selection

import "github.com/dgnsrekt/chartsync/internal/dataset"

// State is the set of selected categories of one chart instance. Insertion
// order is kept so outbound payloads list categories in click order.
type State struct {
	items []dataset.Category
}

// New returns a state holding the given categories, duplicates dropped.
func New(categories ...dataset.Category) *State {
	s := &State{}
	s.Replace(categories)
	return s
}

// Toggle removes c when present and adds it otherwise. It reports whether c
// is selected afterwards.
func (s *State) Toggle(c dataset.Category) bool {
	if i := s.index(c); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
		return false
	}
	s.items = append(s.items, c)
	return true
}

// Contains reports membership by value.
func (s *State) Contains(c dataset.Category) bool {
	return s.index(c) >= 0
}

// Replace discards the current selection and takes categories as is.
func (s *State) Replace(categories []dataset.Category) {
	items := make([]dataset.Category, 0, len(categories))
	for _, c := range categories {
		dup := false
		for _, have := range items {
			if have == c {
				dup = true
				break
			}
		}
		if !dup {
			items = append(items, c)
		}
	}
	s.items = items
}

// Values returns a copy of the selection, never nil.
func (s *State) Values() []dataset.Category {
	out := make([]dataset.Category, len(s.items))
	copy(out, s.items)
	return out
}

// Strings returns the selection as plain strings, never nil.
func (s *State) Strings() []string {
	out := make([]string, len(s.items))
	for i, c := range s.items {
		out[i] = string(c)
	}
	return out
}

func (s *State) Len() int { return len(s.items) }

func (s *State) index(c dataset.Category) int {
	for i, have := range s.items {
		if have == c {
			return i
		}
	}
	return -1
}
