package core

import (
	"context"

	"lineagecore/pkg/dag"
)

// Service exposes higher-level transactional operations over a closure store.
type Service struct {
	store dag.PersistentStore
}

// NewService constructs a service backed by the supplied store.
func NewService(store dag.PersistentStore) *Service {
	return &Service{store: store}
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *dag.RulesEngine) *Service {
	return &Service{store: NewMemoryStore(engine)}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() dag.PersistentStore {
	return s.store
}

// CreateNode registers a node and seeds its root marker and self entry.
func (s *Service) CreateNode(ctx context.Context, node dag.Node) (dag.Node, dag.Result, error) {
	var created dag.Node
	res, err := s.store.RunInTransaction(ctx, func(tx dag.Transaction) error {
		var err error
		created, err = tx.CreateNode(node)
		return err
	})
	return created, res, err
}

// DeleteNode detaches and removes a node and every row referencing it.
func (s *Service) DeleteNode(ctx context.Context, id string) (dag.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx dag.Transaction) error {
		return tx.DeleteNode(id)
	})
}

// Link inserts the parent→child edge and extends the closure through it.
func (s *Service) Link(ctx context.Context, parentID, childID string) (dag.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx dag.Transaction) error {
		return tx.Link(parentID, childID)
	})
}

// Unlink removes the edge and restores closure from the surviving roots.
func (s *Service) Unlink(ctx context.Context, parentID, childID string) (dag.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx dag.Transaction) error {
		return tx.Unlink(parentID, childID)
	})
}

// Reset discards the structure touching the given ids and re-seeds each as an
// isolated root.
func (s *Service) Reset(ctx context.Context, scope string, ids []string) (dag.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx dag.Transaction) error {
		return tx.Reset(scope, ids)
	})
}

// DropScope removes an entire scope partition.
func (s *Service) DropScope(ctx context.Context, scope string) (dag.Result, error) {
	return s.store.RunInTransaction(ctx, func(tx dag.Transaction) error {
		return tx.DropScope(scope)
	})
}
