package task

import (
	"slices"
	"strings"
)

// Resource identifies an exclusively-claimable actuator group.
type Resource string

// Requirements is a sorted, duplicate-free set of resources.
type Requirements []Resource

// NewRequirements returns the sorted set of the given resources.
func NewRequirements(rs ...Resource) Requirements {
	out := slices.Clone(rs)
	slices.Sort(out)
	return Requirements(slices.Compact(out))
}

// Contains reports whether r is in the set.
func (q Requirements) Contains(r Resource) bool {
	_, ok := slices.BinarySearch(q, r)
	return ok
}

// Overlaps reports whether q and o share at least one resource.
func (q Requirements) Overlaps(o Requirements) bool {
	i, j := 0, 0
	for i < len(q) && j < len(o) {
		switch {
		case q[i] == o[j]:
			return true
		case q[i] < o[j]:
			i++
		default:
			j++
		}
	}
	return false
}

func (q Requirements) String() string {
	parts := make([]string, len(q))
	for i, r := range q {
		parts[i] = string(r)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func union(tasks []*Task) Requirements {
	var all []Resource
	for _, t := range tasks {
		all = append(all, t.requires...)
	}
	return NewRequirements(all...)
}
