package core

import (
	"context"
	"fmt"

	"lineagecore/pkg/dag"
)

// RootMarkerRule enforces marker exclusivity: a node carries the sentinel
// root-marker link exactly when it has no real parent.
func RootMarkerRule() dag.Rule {
	return rootMarkerRule{}
}

type rootMarkerRule struct{}

func (rootMarkerRule) Name() string { return "root_marker_exclusivity" }

func (rootMarkerRule) Evaluate(_ context.Context, view dag.RuleView, changes []dag.Change) (dag.Result, error) {
	res := dag.Result{}
	for _, scope := range touchedScopes(changes) {
		for _, n := range view.ListNodes(scope) {
			hasParent := view.HasRealParent(n.ID)
			hasMarker := view.HasRootMarker(n.ID)
			if hasParent == hasMarker {
				var msg string
				if hasParent {
					msg = fmt.Sprintf("node %s has a real parent and a root marker", n.ID)
				} else {
					msg = fmt.Sprintf("node %s has neither a real parent nor a root marker", n.ID)
				}
				res.Violations = append(res.Violations, dag.Violation{
					Rule:     "root_marker_exclusivity",
					Severity: dag.SeverityBlock,
					Message:  msg,
					Entity:   dag.EntityLink,
					EntityID: n.ID,
				})
			}
		}
	}
	return res, nil
}
