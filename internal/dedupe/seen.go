// Package dedupe tracks tender codes already collected during a fetch run,
// so overlapping pages do not produce duplicate records in one batch.
package dedupe

// Set is a capacity-bounded insertion-ordered string set. It is not safe for
// concurrent use; a fetch run is single-threaded.
type Set struct {
	items    map[string]struct{}
	order    []string
	capacity int
}

// NewSet creates a set that evicts its oldest entries beyond capacity.
func NewSet(capacity int) *Set {
	if capacity <= 0 {
		capacity = 1
	}
	return &Set{
		items:    make(map[string]struct{}, capacity),
		capacity: capacity,
	}
}

// Seen reports whether the key was already added.
func (s *Set) Seen(key string) bool {
	_, ok := s.items[key]
	return ok
}

// Add records a key, evicting the oldest entry when the set is full.
func (s *Set) Add(key string) {
	if _, ok := s.items[key]; ok {
		return
	}
	s.items[key] = struct{}{}
	s.order = append(s.order, key)
	for len(s.items) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
}

// Len returns the number of keys currently tracked.
func (s *Set) Len() int {
	return len(s.items)
}
