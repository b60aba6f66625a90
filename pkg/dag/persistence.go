package dag

import "context"

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. A transaction observes a consistent snapshot; its
// effects become visible only when the enclosing RunInTransaction commits.
type Transaction interface {
	Snapshot() TransactionView

	// CreateNode registers a node and seeds its root marker and self
	// closure entry. A missing scope defaults to DefaultScope.
	CreateNode(Node) (Node, error)
	// DeleteNode detaches the node from every parent and child, then
	// removes the node and all rows referencing it.
	DeleteNode(id string) error
	FindNode(id string) (Node, bool)

	// Link inserts the parent→child edge and extends the closure through
	// it. Re-linking an existing edge is a no-op. parentID may be NoParent
	// to reinstate a root marker, which is only legal while the child has
	// no real parent.
	Link(parentID, childID string) error
	// Unlink removes the edge, conservatively invalidates dependent
	// closure entries, and rebuilds closure from the surviving roots.
	Unlink(parentID, childID string) error

	// Reset discards all links and closure rows touching the given ids and
	// re-seeds each as an isolated root, creating ids not yet present.
	Reset(scope string, ids []string) error

	// DropScope removes an entire scope partition: every node, link, and
	// closure row in it. Dropping an unknown scope is a no-op.
	DropScope(scope string) error
}

// TransactionView provides read-only structural queries over a consistent
// snapshot. Facade methods return NotFoundError for unknown node ids.
type TransactionView interface {
	FindNode(id string) (Node, bool)
	ListNodes(scope string) []Node
	ListScopes() []string

	Links(scope string, filter LinkFilter) []Link
	HasRealParent(id string) bool
	HasRootMarker(id string) bool
	ClosureEntries(scope string) []ClosureEntry

	Parents(id string) ([]Node, error)
	Children(id string) ([]Node, error)
	// Ancestors excludes the self entry and orders farthest first.
	Ancestors(id string) ([]ClosureEntry, error)
	// Descendants excludes the self entry and orders nearest first.
	Descendants(id string) ([]ClosureEntry, error)
	// Path includes the self entry, ordered root→self.
	Path(id string) ([]ClosureEntry, error)
	// Subtree includes the self entry, ordered self→leaves.
	Subtree(id string) ([]ClosureEntry, error)
	Roots(scope string) []Node
	IsRoot(id string) (bool, error)
	IsLeaf(id string) (bool, error)
	// Lineage unions ancestors and descendants of the node, excluding
	// self, signed by direction and ordered farthest ancestor first.
	Lineage(id string) ([]LineageEntry, error)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error

	FindNode(id string) (Node, bool)
	ListNodes(scope string) []Node
	ListScopes() []string
	Links(scope string, filter LinkFilter) []Link
	Parents(id string) ([]Node, error)
	Children(id string) ([]Node, error)
	Ancestors(id string) ([]ClosureEntry, error)
	Descendants(id string) ([]ClosureEntry, error)
	Path(id string) ([]ClosureEntry, error)
	Subtree(id string) ([]ClosureEntry, error)
	Roots(scope string) []Node
	IsRoot(id string) (bool, error)
	IsLeaf(id string) (bool, error)
	Lineage(id string) ([]LineageEntry, error)
}
