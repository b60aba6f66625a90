package dag

// Observer receives notifications at defined points of closure maintenance.
// Implementations must be cheap and side-effect free with respect to the
// store; observation is never required for correctness.
type Observer interface {
	LinkCreated(scope string, link Link)
	LinkRemoved(scope string, link Link)
	ClosureInserted(scope string, entry ClosureEntry)
	RebuildStarted(scope, rootID string)
	RebuildFinished(scope, rootID string, inserted int)
	ScopeReset(scope string, nodes int)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) LinkCreated(string, Link)            {}
func (NopObserver) LinkRemoved(string, Link)            {}
func (NopObserver) ClosureInserted(string, ClosureEntry) {}
func (NopObserver) RebuildStarted(string, string)       {}
func (NopObserver) RebuildFinished(string, string, int) {}
func (NopObserver) ScopeReset(string, int)              {}
