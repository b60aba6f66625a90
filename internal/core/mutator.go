package core

import (
	"fmt"
	"sort"

	"lineagecore/pkg/dag"
)

// insertLink adds the link to the scope's link set, recording the change and
// buffering the observer event.
func (tx *transaction) insertLink(scope string, l dag.Link) {
	tx.state.scopeLinks(scope)[l] = struct{}{}
	tx.recordChange(dag.Change{Scope: scope, Entity: dag.EntityLink, Action: dag.ActionCreate, After: l})
	tx.notify(func(o dag.Observer) { o.LinkCreated(scope, l) })
}

// removeLink deletes at most one matching link and reports whether a row was
// removed.
func (tx *transaction) removeLink(scope string, l dag.Link) bool {
	if !tx.state.linkExists(scope, l) {
		return false
	}
	delete(tx.state.links[scope], l)
	tx.recordChange(dag.Change{Scope: scope, Entity: dag.EntityLink, Action: dag.ActionDelete, Before: l})
	tx.notify(func(o dag.Observer) { o.LinkRemoved(scope, l) })
	return true
}

// insertClosureEntry performs an exact-triple insert-if-absent and reports
// whether the entry was new.
func (tx *transaction) insertClosureEntry(scope string, e dag.ClosureEntry) bool {
	if !tx.state.insertClosure(scope, e) {
		return false
	}
	tx.notify(func(o dag.Observer) { o.ClosureInserted(scope, e) })
	return true
}

// Link inserts the parent→child edge and extends the closure through it:
// every ancestor of parent reaches every descendant of child at the summed
// depth plus one. Re-linking an existing edge is a no-op. Passing NoParent
// reinstates the child's root marker, which is only legal while the child has
// no real parent.
func (tx *transaction) Link(parentID, childID string) error {
	child, ok := tx.state.nodes[childID]
	if !ok {
		return dag.NotFoundError{Entity: dag.EntityNode, ID: childID}
	}
	scope := child.Scope

	if parentID == dag.NoParent {
		if tx.state.hasRealParent(scope, childID) {
			return dag.InvariantViolationError{Op: "link", Detail: fmt.Sprintf("node %q has a real parent, root marker not allowed", childID)}
		}
		marker := dag.Link{ParentID: dag.NoParent, ChildID: childID}
		if tx.state.linkExists(scope, marker) {
			return nil
		}
		tx.insertLink(scope, marker)
		return nil
	}

	parent, ok := tx.state.nodes[parentID]
	if !ok {
		return dag.NotFoundError{Entity: dag.EntityNode, ID: parentID}
	}
	if parentID == childID {
		return dag.InvariantViolationError{Op: "link", Detail: fmt.Sprintf("node %q cannot be linked to itself", childID)}
	}
	if parent.Scope != child.Scope {
		return dag.InvariantViolationError{Op: "link", Detail: fmt.Sprintf("nodes %q and %q belong to different scopes", parentID, childID)}
	}

	edge := dag.Link{ParentID: parentID, ChildID: childID}
	if tx.state.linkExists(scope, edge) {
		return nil
	}
	tx.insertLink(scope, edge)
	tx.removeLink(scope, dag.Link{ParentID: dag.NoParent, ChildID: childID})

	parentAncestors := tx.state.ancestorEntries(scope, parentID, true)
	childDescendants := tx.state.descendantEntries(scope, childID, true)
	for _, a := range parentAncestors {
		for _, d := range childDescendants {
			tx.insertClosureEntry(scope, dag.ClosureEntry{
				AncestorID:   a.AncestorID,
				DescendantID: d.DescendantID,
				Depth:        a.Depth + d.Depth + 1,
			})
		}
	}
	return nil
}

// Unlink removes the edge, promotes the child back to a root if it lost its
// last real parent, conservatively invalidates every closure witness that
// could have depended on the edge, and rebuilds from the surviving roots.
func (tx *transaction) Unlink(parentID, childID string) error {
	child, ok := tx.state.nodes[childID]
	if !ok {
		return dag.NotFoundError{Entity: dag.EntityNode, ID: childID}
	}
	scope := child.Scope

	if parentID == dag.NoParent {
		// Removing a root marker never affects closure: no real entries
		// are derived from the sentinel.
		tx.removeLink(scope, dag.Link{ParentID: dag.NoParent, ChildID: childID})
		return nil
	}

	parent, ok := tx.state.nodes[parentID]
	if !ok {
		return dag.NotFoundError{Entity: dag.EntityNode, ID: parentID}
	}
	if parent.Scope != child.Scope {
		return dag.InvariantViolationError{Op: "unlink", Detail: fmt.Sprintf("nodes %q and %q belong to different scopes", parentID, childID)}
	}

	if !tx.removeLink(scope, dag.Link{ParentID: parentID, ChildID: childID}) {
		// Edge absent: no closure witness can depend on it.
		return nil
	}
	if !tx.state.hasRealParent(scope, childID) && !tx.state.hasRootMarker(scope, childID) {
		tx.insertLink(scope, dag.Link{ParentID: dag.NoParent, ChildID: childID})
	}

	ancestors := tx.state.ancestorIDs(scope, parentID)
	descendants := tx.state.descendantIDs(scope, childID)
	tx.state.deleteClosureWhere(scope, ancestors, descendants)

	// Every root among the touched region seeds a rebuild: closure below a
	// root is fully determined by descent from it.
	seeds := make([]string, 0, len(ancestors)+len(descendants))
	for id := range ancestors {
		seeds = append(seeds, id)
	}
	for id := range descendants {
		if _, dup := ancestors[id]; !dup {
			seeds = append(seeds, id)
		}
	}
	sort.Strings(seeds)
	for _, id := range seeds {
		if !tx.state.hasRealParent(scope, id) {
			tx.rebuild(scope, id)
		}
	}
	return nil
}

// rebuild re-derives closure entries below rootID by depth-first descent.
func (tx *transaction) rebuild(scope, rootID string) {
	tx.notify(func(o dag.Observer) { o.RebuildStarted(scope, rootID) })
	inserted := 0
	tx.rebuildStep(scope, rootID, nil, &inserted)
	tx.notify(func(o dag.Observer) { o.RebuildFinished(scope, rootID, inserted) })
}

// rebuildStep records one witness per element of the traversal path, with the
// distance equal to the element's position in this particular descent, then
// recurses into each child. Every call works on its own copy of the ancestor
// path: no branch may observe another branch's appended nodes.
func (tx *transaction) rebuildStep(scope, nodeID string, ancestorPath []string, inserted *int) {
	path := make([]string, len(ancestorPath)+1)
	copy(path, ancestorPath)
	path[len(ancestorPath)] = nodeID

	for i, ancestorID := range path {
		entry := dag.ClosureEntry{AncestorID: ancestorID, DescendantID: nodeID, Depth: len(path) - 1 - i}
		if tx.insertClosureEntry(scope, entry) {
			*inserted++
		}
	}
	for _, childID := range tx.state.realChildren(scope, nodeID) {
		tx.rebuildStep(scope, childID, path, inserted)
	}
}
