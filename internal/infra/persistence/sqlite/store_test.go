package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"lineagecore/pkg/dag"
)

func newStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.DB().Close() })
	return s
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "closure.db")

	s := newStore(t, path)
	_, err := s.RunInTransaction(ctx, func(tx dag.Transaction) error {
		for _, id := range []string{"A", "B"} {
			if _, err := tx.CreateNode(dag.Node{ID: id}); err != nil {
				return err
			}
		}
		return tx.Link("A", "B")
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	wantLinks := s.Links(dag.DefaultScope, dag.LinkFilter{})
	wantState := s.ExportState()
	if err := s.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newStore(t, path)
	if got := reopened.Links(dag.DefaultScope, dag.LinkFilter{}); !reflect.DeepEqual(got, wantLinks) {
		t.Fatalf("links after reopen mismatch:\nwant %v\ngot  %v", wantLinks, got)
	}
	if got := reopened.ExportState(); !reflect.DeepEqual(got, wantState) {
		t.Fatalf("state after reopen mismatch")
	}
	ancestors, err := reopened.Ancestors("B")
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0].AncestorID != "A" {
		t.Fatalf("unexpected ancestors %v", ancestors)
	}
}

func TestFailedTransactionIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "closure.db")

	s := newStore(t, path)
	if _, err := s.RunInTransaction(ctx, func(tx dag.Transaction) error {
		_, err := tx.CreateNode(dag.Node{ID: "A"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := s.RunInTransaction(ctx, func(tx dag.Transaction) error {
		return tx.Link("A", "ghost")
	})
	if err == nil {
		t.Fatalf("expected link to missing node to fail")
	}
	if err := s.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newStore(t, path)
	if nodes := reopened.ListNodes(dag.DefaultScope); len(nodes) != 1 || nodes[0].ID != "A" {
		t.Fatalf("expected only seeded node, got %v", nodes)
	}
}

func TestScopeRowsRewrittenPerSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "closure.db")

	s := newStore(t, path)
	_, err := s.RunInTransaction(ctx, func(tx dag.Transaction) error {
		if _, err := tx.CreateNode(dag.Node{ID: "A"}); err != nil {
			return err
		}
		_, err := tx.CreateNode(dag.Node{ID: "B", Scope: "secondary"})
		return err
	})
	if err != nil {
		t.Fatalf("seed scopes: %v", err)
	}

	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM scope_state`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected one row per scope, got %d", count)
	}
}

func TestDefaultPathApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "closure.db")
	s := newStore(t, path)
	if s.Path() != path {
		t.Fatalf("unexpected path %s", s.Path())
	}
}
