package biz

import (
	"sort"

	"moderation/internal/document"
)

// LocationMap maps a parent to the child indices to delete from it, highest first.
type LocationMap map[*document.Node][]int

// Len returns the number of (parent, index) pairs.
func (m LocationMap) Len() int {
	n := 0
	for _, idx := range m {
		n += len(idx)
	}
	return n
}

func (m LocationMap) add(parent *document.Node, index int) {
	m[parent] = append(m[parent], index)
}

func (m LocationMap) sortDescending() {
	for _, idx := range m {
		sort.Sort(sort.Reverse(sort.IntSlice(idx)))
	}
}

// Merge combines two plans. Index lists of a shared parent are concatenated
// and sorted descending; duplicates are kept. Neither argument is modified.
func Merge(a, b LocationMap) LocationMap {
	out := make(LocationMap, len(a)+len(b))
	for _, m := range []LocationMap{a, b} {
		for parent, idx := range m {
			out[parent] = append(out[parent], idx...)
		}
	}
	out.sortDescending()
	return out
}

// ImageLocations builds the plan that removes every reference whose URL is flagged.
func ImageLocations(refs []ImageReference, flagged func(url string) bool) LocationMap {
	out := LocationMap{}
	for _, ref := range refs {
		if flagged(ref.URL) {
			out.add(ref.Parent, ref.Index)
		}
	}
	out.sortDescending()
	return out
}
