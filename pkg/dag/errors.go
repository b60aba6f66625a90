package dag

import "fmt"

// InvariantViolationError reports an attempted mutation that would break a
// structural invariant: self links, cross-scope edges, or a root marker for a
// node that still has a real parent. It is fatal to the calling operation and
// never retried.
type InvariantViolationError struct {
	Op     string
	Detail string
}

func (e InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: invariant violation: %s", e.Op, e.Detail)
}

// NotFoundError is returned when an operation references a node id absent
// from the store.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// RuleViolationError is returned when a transaction produced blocking rule
// violations and was rolled back.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
