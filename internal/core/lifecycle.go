package core

import (
	"fmt"
	"sort"

	"lineagecore/pkg/dag"
)

// CreateNode registers the node and seeds its root marker and self closure
// entry, so a fresh node is immediately a valid isolated root.
func (tx *transaction) CreateNode(n dag.Node) (dag.Node, error) {
	if n.Scope == "" {
		n.Scope = dag.DefaultScope
	}
	if n.ID == "" {
		n.ID = tx.store.newID()
	}
	if _, exists := tx.state.nodes[n.ID]; exists {
		return dag.Node{}, fmt.Errorf("node %q already exists", n.ID)
	}
	n.CreatedAt = tx.now
	n.UpdatedAt = tx.now
	tx.state.nodes[n.ID] = n
	tx.recordChange(dag.Change{Scope: n.Scope, Entity: dag.EntityNode, Action: dag.ActionCreate, After: n})

	tx.insertLink(n.Scope, dag.Link{ParentID: dag.NoParent, ChildID: n.ID})
	tx.insertClosureEntry(n.Scope, dag.ClosureEntry{AncestorID: n.ID, DescendantID: n.ID, Depth: 0})
	return n, nil
}

// DeleteNode detaches the node edge by edge, then removes its root marker,
// its remaining closure rows, and the record itself.
func (tx *transaction) DeleteNode(id string) error {
	n, ok := tx.state.nodes[id]
	if !ok {
		return dag.NotFoundError{Entity: dag.EntityNode, ID: id}
	}
	scope := n.Scope

	for _, parentID := range tx.state.realParents(scope, id) {
		if err := tx.Unlink(parentID, id); err != nil {
			return err
		}
	}
	for _, childID := range tx.state.realChildren(scope, id) {
		if err := tx.Unlink(id, childID); err != nil {
			return err
		}
	}
	tx.removeLink(scope, dag.Link{ParentID: dag.NoParent, ChildID: id})

	var stale []dag.ClosureEntry
	for e := range tx.state.closure[scope] {
		if e.AncestorID == id || e.DescendantID == id {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		delete(tx.state.closure[scope], e)
	}

	delete(tx.state.nodes, id)
	tx.recordChange(dag.Change{Scope: scope, Entity: dag.EntityNode, Action: dag.ActionDelete, Before: n})
	return nil
}

// Reset discards every link and closure row touching the given ids and
// re-seeds each id as an isolated root, replaying creation for ids not yet
// present. Nodes outside the set that lose their last real parent are
// promoted back to roots.
func (tx *transaction) Reset(scope string, ids []string) error {
	if scope == "" {
		scope = dag.DefaultScope
	}
	if len(ids) == 0 {
		return nil
	}

	inSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return dag.InvariantViolationError{Op: "reset", Detail: "empty node id"}
		}
		if n, ok := tx.state.nodes[id]; ok && n.Scope != scope {
			return dag.InvariantViolationError{Op: "reset", Detail: fmt.Sprintf("node %q belongs to scope %q, not %q", id, n.Scope, scope)}
		}
		inSet[id] = struct{}{}
	}

	// Witnesses routed through a reset node connect its ancestors to its
	// descendants, so the conservative invalidation region is the same
	// product unlink uses. Both sets include the node itself, which also
	// covers every entry with a set member as an endpoint.
	ancestors := map[string]struct{}{}
	descendants := map[string]struct{}{}
	for id := range inSet {
		for a := range tx.state.ancestorIDs(scope, id) {
			ancestors[a] = struct{}{}
		}
		for d := range tx.state.descendantIDs(scope, id) {
			descendants[d] = struct{}{}
		}
	}

	var doomed []dag.Link
	orphanCandidates := map[string]struct{}{}
	for l := range tx.state.links[scope] {
		_, parentIn := inSet[l.ParentID]
		_, childIn := inSet[l.ChildID]
		if !parentIn && !childIn {
			continue
		}
		doomed = append(doomed, l)
		if !l.IsRootMarker() && !childIn {
			orphanCandidates[l.ChildID] = struct{}{}
		}
	}
	sortLinks(doomed)
	for _, l := range doomed {
		tx.removeLink(scope, l)
	}

	tx.state.deleteClosureWhere(scope, ancestors, descendants)

	for childID := range orphanCandidates {
		if !tx.state.hasRealParent(scope, childID) && !tx.state.hasRootMarker(scope, childID) {
			tx.insertLink(scope, dag.Link{ParentID: dag.NoParent, ChildID: childID})
		}
	}

	// Survivors in the invalidated region recover their closure by rebuild
	// from the roots above them. Reset ids are skipped: they are re-seeded
	// as isolated roots below.
	seeds := make([]string, 0, len(ancestors)+len(descendants))
	for id := range ancestors {
		if _, in := inSet[id]; !in {
			seeds = append(seeds, id)
		}
	}
	for id := range descendants {
		_, dup := ancestors[id]
		_, in := inSet[id]
		if !dup && !in {
			seeds = append(seeds, id)
		}
	}
	sort.Strings(seeds)
	for _, id := range seeds {
		if !tx.state.hasRealParent(scope, id) {
			tx.rebuild(scope, id)
		}
	}

	seeded := map[string]struct{}{}
	for _, id := range ids {
		if _, dup := seeded[id]; dup {
			continue
		}
		seeded[id] = struct{}{}
		if n, ok := tx.state.nodes[id]; ok {
			n.UpdatedAt = tx.now
			tx.state.nodes[id] = n
		} else {
			n := dag.Node{ID: id, Scope: scope, CreatedAt: tx.now, UpdatedAt: tx.now}
			tx.state.nodes[id] = n
			tx.recordChange(dag.Change{Scope: scope, Entity: dag.EntityNode, Action: dag.ActionCreate, After: n})
		}
		if !tx.state.hasRootMarker(scope, id) {
			tx.insertLink(scope, dag.Link{ParentID: dag.NoParent, ChildID: id})
		}
		tx.insertClosureEntry(scope, dag.ClosureEntry{AncestorID: id, DescendantID: id, Depth: 0})
	}

	count := len(seeded)
	tx.notify(func(o dag.Observer) { o.ScopeReset(scope, count) })
	return nil
}

// DropScope removes an entire scope partition. Unknown scopes are a no-op.
func (tx *transaction) DropScope(scope string) error {
	if scope == "" {
		scope = dag.DefaultScope
	}
	var ids []string
	for id, n := range tx.state.nodes {
		if n.Scope == scope {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := tx.state.nodes[id]
		delete(tx.state.nodes, id)
		tx.recordChange(dag.Change{Scope: scope, Entity: dag.EntityNode, Action: dag.ActionDelete, Before: n})
	}
	delete(tx.state.links, scope)
	delete(tx.state.closure, scope)
	return nil
}
