package core

import "lineagecore/pkg/dag"

// DefaultRulesEngine returns an engine enforcing the structural invariants of
// the link and closure stores. Every transaction is evaluated against it
// unless the caller supplies a custom engine.
func DefaultRulesEngine() *dag.RulesEngine {
	engine := dag.NewRulesEngine()
	engine.Register(RootMarkerRule())
	engine.Register(SelfClosureRule())
	engine.Register(LinkIntegrityRule())
	return engine
}

// touchedScopes collects the distinct scopes referenced by the change log.
func touchedScopes(changes []dag.Change) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, change := range changes {
		if change.Scope == "" {
			continue
		}
		if _, ok := seen[change.Scope]; ok {
			continue
		}
		seen[change.Scope] = struct{}{}
		out = append(out, change.Scope)
	}
	return out
}
