package core

import (
	"sort"

	"lineagecore/pkg/dag"
)

// view implements the query facade over a memoryState. Both transactional
// snapshots and committed-state reads go through it, so every caller sees the
// same derivations and orderings.
type view struct {
	state *memoryState
}

var _ dag.TransactionView = (*view)(nil)

func (v *view) requireNode(id string) (dag.Node, error) {
	n, ok := v.state.nodes[id]
	if !ok {
		return dag.Node{}, dag.NotFoundError{Entity: dag.EntityNode, ID: id}
	}
	return n, nil
}

// FindNode retrieves a node by id.
func (v *view) FindNode(id string) (dag.Node, bool) {
	n, ok := v.state.nodes[id]
	return n, ok
}

// ListNodes returns the scope's nodes ordered by id.
func (v *view) ListNodes(scope string) []dag.Node {
	var out []dag.Node
	for _, n := range v.state.nodes {
		if n.Scope == scope {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListScopes returns every scope with at least one node, link, or closure
// entry, ordered.
func (v *view) ListScopes() []string {
	seen := map[string]struct{}{}
	for _, n := range v.state.nodes {
		seen[n.Scope] = struct{}{}
	}
	for scope, links := range v.state.links {
		if len(links) > 0 {
			seen[scope] = struct{}{}
		}
	}
	for scope, entries := range v.state.closure {
		if len(entries) > 0 {
			seen[scope] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for scope := range seen {
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// Links scans the scope's link rows, ordered by (parent, child).
func (v *view) Links(scope string, filter dag.LinkFilter) []dag.Link {
	return v.state.findLinks(scope, filter)
}

// HasRealParent reports whether a non-marker link points at the node.
func (v *view) HasRealParent(id string) bool {
	n, ok := v.state.nodes[id]
	if !ok {
		return false
	}
	return v.state.hasRealParent(n.Scope, id)
}

// HasRootMarker reports whether the node carries the sentinel link.
func (v *view) HasRootMarker(id string) bool {
	n, ok := v.state.nodes[id]
	if !ok {
		return false
	}
	return v.state.hasRootMarker(n.Scope, id)
}

// ClosureEntries returns the scope's full closure multiset, ordered.
func (v *view) ClosureEntries(scope string) []dag.ClosureEntry {
	out := make([]dag.ClosureEntry, 0, len(v.state.closure[scope]))
	for e := range v.state.closure[scope] {
		out = append(out, e)
	}
	sortClosureTriples(out)
	return out
}

// Parents returns the node's direct parents via real links, ordered by id.
func (v *view) Parents(id string) ([]dag.Node, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	var out []dag.Node
	for _, parentID := range v.state.realParents(n.Scope, id) {
		if p, ok := v.state.nodes[parentID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Children returns the node's direct children, ordered by id.
func (v *view) Children(id string) ([]dag.Node, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	var out []dag.Node
	for _, childID := range v.state.realChildren(n.Scope, id) {
		if c, ok := v.state.nodes[childID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Ancestors returns closure witnesses above the node, farthest first.
func (v *view) Ancestors(id string) ([]dag.ClosureEntry, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	return v.state.ancestorEntries(n.Scope, id, false), nil
}

// Descendants returns closure witnesses below the node, nearest first.
func (v *view) Descendants(id string) ([]dag.ClosureEntry, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	return v.state.descendantEntries(n.Scope, id, false), nil
}

// Path returns the node's ancestors including itself, ordered root→self.
func (v *view) Path(id string) ([]dag.ClosureEntry, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	return v.state.ancestorEntries(n.Scope, id, true), nil
}

// Subtree returns the node's descendants including itself, ordered
// self→leaves.
func (v *view) Subtree(id string) ([]dag.ClosureEntry, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	return v.state.descendantEntries(n.Scope, id, true), nil
}

// Roots returns the scope's nodes carrying a root marker, ordered by id.
func (v *view) Roots(scope string) []dag.Node {
	var out []dag.Node
	for _, n := range v.state.nodes {
		if n.Scope == scope && v.state.hasRootMarker(scope, n.ID) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsRoot reports whether the node has no real parent.
func (v *view) IsRoot(id string) (bool, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return false, err
	}
	return !v.state.hasRealParent(n.Scope, id), nil
}

// IsLeaf reports whether the node has no children.
func (v *view) IsLeaf(id string) (bool, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return false, err
	}
	return len(v.state.realChildren(n.Scope, id)) == 0, nil
}

// Lineage unions the node's ancestors and descendants, excluding self,
// tagged by direction via the sign of the depth and ordered from the farthest
// ancestor through to the farthest descendant.
func (v *view) Lineage(id string) ([]dag.LineageEntry, error) {
	n, err := v.requireNode(id)
	if err != nil {
		return nil, err
	}
	var out []dag.LineageEntry
	for _, e := range v.state.ancestorEntries(n.Scope, id, false) {
		out = append(out, dag.LineageEntry{NodeID: e.AncestorID, Depth: -e.Depth})
	}
	for _, e := range v.state.descendantEntries(n.Scope, id, false) {
		out = append(out, dag.LineageEntry{NodeID: e.DescendantID, Depth: e.Depth})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out, nil
}

// Committed-state read helpers -----------------------------------------------

func (s *MemoryStore) readView() *view { return &view{state: &s.state} }

// FindNode retrieves a node by id from committed state.
func (s *MemoryStore) FindNode(id string) (dag.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().FindNode(id)
}

// ListNodes returns all nodes in the scope.
func (s *MemoryStore) ListNodes(scope string) []dag.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListNodes(scope)
}

// ListScopes returns all known scopes.
func (s *MemoryStore) ListScopes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().ListScopes()
}

// Links scans the scope's link rows.
func (s *MemoryStore) Links(scope string, filter dag.LinkFilter) []dag.Link {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Links(scope, filter)
}

// Parents returns the node's direct parents.
func (s *MemoryStore) Parents(id string) ([]dag.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Parents(id)
}

// Children returns the node's direct children.
func (s *MemoryStore) Children(id string) ([]dag.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Children(id)
}

// Ancestors returns closure witnesses above the node, farthest first.
func (s *MemoryStore) Ancestors(id string) ([]dag.ClosureEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Ancestors(id)
}

// Descendants returns closure witnesses below the node, nearest first.
func (s *MemoryStore) Descendants(id string) ([]dag.ClosureEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Descendants(id)
}

// Path returns the node's ancestors including itself, root→self.
func (s *MemoryStore) Path(id string) ([]dag.ClosureEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Path(id)
}

// Subtree returns the node's descendants including itself, self→leaves.
func (s *MemoryStore) Subtree(id string) ([]dag.ClosureEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Subtree(id)
}

// Roots returns the scope's current roots.
func (s *MemoryStore) Roots(scope string) []dag.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Roots(scope)
}

// IsRoot reports whether the node has no real parent.
func (s *MemoryStore) IsRoot(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().IsRoot(id)
}

// IsLeaf reports whether the node has no children.
func (s *MemoryStore) IsLeaf(id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().IsLeaf(id)
}

// Lineage returns the node's signed ancestry/descendancy ordering.
func (s *MemoryStore) Lineage(id string) ([]dag.LineageEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readView().Lineage(id)
}
