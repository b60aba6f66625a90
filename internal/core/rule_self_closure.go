package core

import (
	"context"
	"fmt"

	"lineagecore/pkg/dag"
)

// SelfClosureRule enforces that every node owns exactly one zero-depth self
// closure entry and never appears as its own ancestor at a positive depth.
func SelfClosureRule() dag.Rule {
	return selfClosureRule{}
}

type selfClosureRule struct{}

func (selfClosureRule) Name() string { return "self_closure" }

func (selfClosureRule) Evaluate(_ context.Context, view dag.RuleView, changes []dag.Change) (dag.Result, error) {
	res := dag.Result{}
	for _, scope := range touchedScopes(changes) {
		selfEntries := map[string]int{}
		for _, e := range view.ClosureEntries(scope) {
			if e.AncestorID != e.DescendantID {
				continue
			}
			if e.Depth != 0 {
				res.Violations = append(res.Violations, selfClosureViolation(e.AncestorID, fmt.Sprintf("node %s is its own ancestor at depth %d", e.AncestorID, e.Depth)))
				continue
			}
			selfEntries[e.AncestorID]++
		}
		for _, n := range view.ListNodes(scope) {
			if selfEntries[n.ID] != 1 {
				res.Violations = append(res.Violations, selfClosureViolation(n.ID, fmt.Sprintf("node %s has %d self closure entries, want 1", n.ID, selfEntries[n.ID])))
			}
		}
	}
	return res, nil
}

func selfClosureViolation(entityID, message string) dag.Violation {
	return dag.Violation{
		Rule:     "self_closure",
		Severity: dag.SeverityBlock,
		Message:  message,
		Entity:   dag.EntityClosure,
		EntityID: entityID,
	}
}
