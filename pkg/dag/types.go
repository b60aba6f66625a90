// Package dag defines the domain types and persistence contracts for a
// materialized transitive closure over directed acyclic multigraphs of nodes.
// Closure entries record every reachable (ancestor, descendant) pair together
// with the length of a witnessing path, so structural queries never traverse
// the graph at read time.
package dag

import "time"

// NoParent is the sentinel parent id. A link whose parent is NoParent is a
// root marker: it records that the child currently has no real parent.
const NoParent = ""

// DefaultScope is used when a node is created without an explicit scope.
const DefaultScope = "default"

// Node is a graph participant. Nodes are partitioned by scope; links and
// closure entries never cross scopes.
type Node struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Link is a direct parent→child edge, or a root marker when ParentID is
// NoParent. At most one link exists per (parent, child) pair.
type Link struct {
	ParentID string `json:"parent_id,omitempty"`
	ChildID  string `json:"child_id"`
}

// IsRootMarker reports whether the link marks its child as a root.
func (l Link) IsRootMarker() bool { return l.ParentID == NoParent }

// ClosureEntry witnesses a directed path of Depth real edges from ancestor to
// descendant. The closure store is a multiset of witnesses: the same pair may
// appear with several depths when paths of different lengths exist.
type ClosureEntry struct {
	AncestorID   string `json:"ancestor_id"`
	DescendantID string `json:"descendant_id"`
	Depth        int    `json:"depth"`
}

// IsSelf reports whether the entry is a node's zero-depth self witness.
func (e ClosureEntry) IsSelf() bool { return e.AncestorID == e.DescendantID && e.Depth == 0 }

// LineageEntry positions a node relative to a focus node. Negative depth
// marks an ancestor, positive depth a descendant.
type LineageEntry struct {
	NodeID string `json:"node_id"`
	Depth  int    `json:"depth"`
}

// LinkFilter narrows link scans. Nil fields match everything; use NoParent to
// select root markers explicitly.
type LinkFilter struct {
	ParentID *string
	ChildID  *string
}

// Matches reports whether the link satisfies every set field.
func (f LinkFilter) Matches(l Link) bool {
	if f.ParentID != nil && l.ParentID != *f.ParentID {
		return false
	}
	if f.ChildID != nil && l.ChildID != *f.ChildID {
		return false
	}
	return true
}

// Filter field helpers.

// ByParent returns a filter selecting links with the given parent.
func ByParent(parentID string) LinkFilter { return LinkFilter{ParentID: &parentID} }

// ByChild returns a filter selecting links with the given child.
func ByChild(childID string) LinkFilter { return LinkFilter{ChildID: &childID} }

// ByEdge returns a filter selecting the exact (parent, child) link.
func ByEdge(parentID, childID string) LinkFilter {
	return LinkFilter{ParentID: &parentID, ChildID: &childID}
}
