package core

import (
	"context"
	"fmt"

	"lineagecore/pkg/dag"
)

// LinkIntegrityRule enforces that every link endpoint references a live node
// of the same scope and that no node links to itself.
func LinkIntegrityRule() dag.Rule {
	return linkIntegrityRule{}
}

type linkIntegrityRule struct{}

func (linkIntegrityRule) Name() string { return "link_integrity" }

func (linkIntegrityRule) Evaluate(_ context.Context, view dag.RuleView, changes []dag.Change) (dag.Result, error) {
	res := dag.Result{}
	for _, scope := range touchedScopes(changes) {
		for _, l := range view.Links(scope, dag.LinkFilter{}) {
			if l.ParentID == l.ChildID {
				res.Violations = append(res.Violations, linkViolation(l.ChildID, fmt.Sprintf("node %s links to itself", l.ChildID)))
				continue
			}
			child, ok := view.FindNode(l.ChildID)
			if !ok {
				res.Violations = append(res.Violations, linkViolation(l.ChildID, fmt.Sprintf("link references missing child %s", l.ChildID)))
				continue
			}
			if child.Scope != scope {
				res.Violations = append(res.Violations, linkViolation(l.ChildID, fmt.Sprintf("child %s belongs to scope %s, link stored in %s", l.ChildID, child.Scope, scope)))
			}
			if l.IsRootMarker() {
				continue
			}
			parent, ok := view.FindNode(l.ParentID)
			if !ok {
				res.Violations = append(res.Violations, linkViolation(l.ParentID, fmt.Sprintf("link references missing parent %s", l.ParentID)))
				continue
			}
			if parent.Scope != scope {
				res.Violations = append(res.Violations, linkViolation(l.ParentID, fmt.Sprintf("parent %s belongs to scope %s, link stored in %s", l.ParentID, parent.Scope, scope)))
			}
		}
	}
	return res, nil
}

func linkViolation(entityID, message string) dag.Violation {
	return dag.Violation{
		Rule:     "link_integrity",
		Severity: dag.SeverityBlock,
		Message:  message,
		Entity:   dag.EntityLink,
		EntityID: entityID,
	}
}
