package integration

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"lineagecore/internal/archive"
	"lineagecore/internal/blob"
	"lineagecore/internal/core"
	"lineagecore/internal/infra/persistence/sqlite"
	"lineagecore/pkg/dag"
)

// lineageStore is the combined surface the smoke test drives: transactional
// writes, read queries, and snapshot export for archiving.
type lineageStore interface {
	dag.PersistentStore
	archive.StateExporter
}

// TestIntegrationSmoke exercises a minimal end-to-end write/read/archive
// cycle for each in-process storage and blob adapter pairing. It keeps scope
// tiny so it can act as a fast CI health check.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		open func(t *testing.T) lineageStore
	}{
		{
			name: "memory-store",
			open: func(_ *testing.T) lineageStore {
				return core.NewMemoryStore(nil)
			},
		},
		{
			name: "sqlite-store",
			open: func(t *testing.T) lineageStore {
				store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "smoke.db"), nil)
				if err != nil {
					t.Fatalf("open sqlite store: %v", err)
				}
				t.Cleanup(func() { _ = store.DB().Close() })
				return store
			},
		},
	}

	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{
			name: "memory-blob",
			open: func(_ *testing.T) blob.Store { return blob.NewMemory() },
		},
		{
			name: "fs-blob",
			open: func(t *testing.T) blob.Store {
				fsStore, err := blob.NewFilesystem(t.TempDir())
				if err != nil {
					t.Fatalf("open fs blob store: %v", err)
				}
				return fsStore
			},
		},
	}

	for _, sv := range storeVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				store := sv.open(t)
				blobs := bv.open(t)

				_, err := store.RunInTransaction(ctx, func(tx dag.Transaction) error {
					for _, id := range []string{"A", "B", "C"} {
						if _, err := tx.CreateNode(dag.Node{ID: id}); err != nil {
							return err
						}
					}
					if err := tx.Link("A", "B"); err != nil {
						return err
					}
					return tx.Link("B", "C")
				})
				if err != nil {
					t.Fatalf("seed chain: %v", err)
				}

				ancestors, err := store.Ancestors("C")
				if err != nil {
					t.Fatalf("ancestors: %v", err)
				}
				if len(ancestors) != 3 || ancestors[0].AncestorID != "A" || ancestors[0].Depth != 2 {
					t.Fatalf("unexpected ancestors %v", ancestors)
				}
				if roots := store.Roots(dag.DefaultScope); len(roots) != 1 || roots[0].ID != "A" {
					t.Fatalf("unexpected roots %v", roots)
				}

				arch := archive.New(blobs, store)
				info, err := arch.ArchiveScope(ctx, dag.DefaultScope)
				if err != nil {
					t.Fatalf("archive: %v", err)
				}
				wantClosure := store.ExportState().Scopes[dag.DefaultScope].Closure

				if _, err := store.RunInTransaction(ctx, func(tx dag.Transaction) error {
					return tx.Unlink("A", "B")
				}); err != nil {
					t.Fatalf("unlink: %v", err)
				}
				if roots := store.Roots(dag.DefaultScope); len(roots) != 2 {
					t.Fatalf("expected B promoted to root, got %v", roots)
				}

				if err := arch.Restore(ctx, info.Key); err != nil {
					t.Fatalf("restore: %v", err)
				}
				gotClosure := store.ExportState().Scopes[dag.DefaultScope].Closure
				if !reflect.DeepEqual(gotClosure, wantClosure) {
					t.Fatalf("closure not restored:\nwant %v\ngot  %v", wantClosure, gotClosure)
				}
			})
		}
	}
}
