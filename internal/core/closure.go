package core

import (
	"sort"

	"lineagecore/pkg/dag"
)

// Closure-store primitives. The store is a multiset of path-length witnesses:
// duplicate detection is exact-triple, so the same (ancestor, descendant)
// pair may persist at several depths.

// insertClosure adds the entry unless the exact triple already exists.
// It reports whether an insert happened.
func (s memoryState) insertClosure(scope string, e dag.ClosureEntry) bool {
	set := s.scopeClosure(scope)
	if _, ok := set[e]; ok {
		return false
	}
	set[e] = struct{}{}
	return true
}

// deleteClosureWhere bulk-removes entries whose ancestor is in anc and whose
// descendant is in desc. This is deliberately conservative: it may remove
// witnesses still justified by an alternate path; rebuild restores those.
func (s memoryState) deleteClosureWhere(scope string, anc, desc map[string]struct{}) int {
	removed := 0
	for e := range s.closure[scope] {
		if _, ok := anc[e.AncestorID]; !ok {
			continue
		}
		if _, ok := desc[e.DescendantID]; !ok {
			continue
		}
		delete(s.closure[scope], e)
		removed++
	}
	return removed
}

// ancestorEntries returns entries with the given descendant, ordered farthest
// first (depth descending, ancestor id breaking ties). The self entry is
// excluded unless includeSelf is set.
func (s memoryState) ancestorEntries(scope, id string, includeSelf bool) []dag.ClosureEntry {
	var out []dag.ClosureEntry
	for e := range s.closure[scope] {
		if e.DescendantID != id {
			continue
		}
		if e.AncestorID == id && !includeSelf {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth > out[j].Depth
		}
		return out[i].AncestorID < out[j].AncestorID
	})
	return out
}

// descendantEntries returns entries with the given ancestor, ordered nearest
// first (depth ascending, descendant id breaking ties). The self entry is
// excluded unless includeSelf is set.
func (s memoryState) descendantEntries(scope, id string, includeSelf bool) []dag.ClosureEntry {
	var out []dag.ClosureEntry
	for e := range s.closure[scope] {
		if e.AncestorID != id {
			continue
		}
		if e.DescendantID == id && !includeSelf {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].DescendantID < out[j].DescendantID
	})
	return out
}

// ancestorIDs collects distinct ancestor ids of the node, including itself.
func (s memoryState) ancestorIDs(scope, id string) map[string]struct{} {
	out := map[string]struct{}{id: {}}
	for e := range s.closure[scope] {
		if e.DescendantID == id {
			out[e.AncestorID] = struct{}{}
		}
	}
	return out
}

// descendantIDs collects distinct descendant ids of the node, including itself.
func (s memoryState) descendantIDs(scope, id string) map[string]struct{} {
	out := map[string]struct{}{id: {}}
	for e := range s.closure[scope] {
		if e.AncestorID == id {
			out[e.DescendantID] = struct{}{}
		}
	}
	return out
}
