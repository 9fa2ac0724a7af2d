// Package interval keeps half-open [Start, End) intervals sorted by start so
// overlap queries are a binary search instead of a pairwise scan.
package interval

import "sort"

// Interval is a half-open range [Start, End) tagged with the owning record ID.
// Intervals that only touch at an endpoint do not overlap.
type Interval struct {
	ID    string
	Start int64
	End   int64
}

// Overlaps reports whether the two intervals intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Contains reports whether p lies in [Start, End).
func (i Interval) Contains(p int64) bool {
	return i.Start <= p && p < i.End
}

// Covers reports whether o lies entirely inside i.
func (i Interval) Covers(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// List is a sorted list of intervals. The zero value is empty and ready to use.
// List is not safe for concurrent use; callers hold the owner's lock.
type List struct {
	items []Interval
}

// NewList builds a list from arbitrary intervals.
func NewList(items ...Interval) *List {
	l := &List{items: make([]Interval, 0, len(items))}
	for _, it := range items {
		l.insert(it)
	}
	return l
}

// Len returns the number of intervals held.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the intervals in start order.
func (l *List) Items() []Interval {
	out := make([]Interval, len(l.items))
	copy(out, l.items)
	return out
}

// FirstOverlap returns the earliest interval overlapping candidate, skipping the
// interval whose ID equals excludeID (used when editing an existing record).
func (l *List) FirstOverlap(candidate Interval, excludeID string) (Interval, bool) {
	// Everything at or after idx starts at or after candidate.End and cannot overlap.
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Start >= candidate.End
	})
	for i := 0; i < idx; i++ {
		it := l.items[i]
		if excludeID != "" && it.ID == excludeID {
			continue
		}
		if it.Overlaps(candidate) {
			return it, true
		}
	}
	return Interval{}, false
}

// Insert adds candidate when it does not overlap any held interval. On conflict
// the conflicting interval is returned and the list is unchanged.
func (l *List) Insert(candidate Interval) (Interval, bool) {
	if conflict, ok := l.FirstOverlap(candidate, ""); ok {
		return conflict, false
	}
	l.insert(candidate)
	return Interval{}, true
}

// Containing returns the first interval that contains point p.
func (l *List) Containing(p int64) (Interval, bool) {
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Start > p
	})
	for i := idx - 1; i >= 0; i-- {
		if l.items[i].Contains(p) {
			return l.items[i], true
		}
	}
	return Interval{}, false
}

func (l *List) insert(it Interval) {
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Start > it.Start
	})
	l.items = append(l.items, Interval{})
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = it
}
