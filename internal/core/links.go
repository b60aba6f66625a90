package core

import (
	"sort"

	"lineagecore/pkg/dag"
)

// Link-store primitives shared by transactions and read views. All helpers
// operate on a memoryState so committed and transactional state go through
// the same code.

func (s memoryState) linkExists(scope string, l dag.Link) bool {
	_, ok := s.links[scope][l]
	return ok
}

func (s memoryState) hasRealParent(scope, id string) bool {
	for l := range s.links[scope] {
		if l.ChildID == id && !l.IsRootMarker() {
			return true
		}
	}
	return false
}

func (s memoryState) hasRootMarker(scope, id string) bool {
	return s.linkExists(scope, dag.Link{ParentID: dag.NoParent, ChildID: id})
}

func (s memoryState) findLinks(scope string, filter dag.LinkFilter) []dag.Link {
	var out []dag.Link
	for l := range s.links[scope] {
		if filter.Matches(l) {
			out = append(out, l)
		}
	}
	sortLinks(out)
	return out
}

// realParents returns ids of direct parents via non-marker links, sorted.
func (s memoryState) realParents(scope, id string) []string {
	var out []string
	for l := range s.links[scope] {
		if l.ChildID == id && !l.IsRootMarker() {
			out = append(out, l.ParentID)
		}
	}
	sort.Strings(out)
	return out
}

// realChildren returns ids of direct children, sorted. Root markers never
// contribute children because their parent is the sentinel, not a node.
func (s memoryState) realChildren(scope, id string) []string {
	var out []string
	for l := range s.links[scope] {
		if l.ParentID == id {
			out = append(out, l.ChildID)
		}
	}
	sort.Strings(out)
	return out
}
