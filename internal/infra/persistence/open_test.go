package persistence

import (
	"path/filepath"
	"testing"

	"lineagecore/internal/core"
	"lineagecore/internal/infra/persistence/sqlite"
)

func TestOpenStoreDefaultsToSQLite(t *testing.T) {
	t.Setenv("LINEAGECORE_STORAGE_DRIVER", "")
	t.Setenv("LINEAGECORE_SQLITE_PATH", filepath.Join(t.TempDir(), "closure.db"))

	store, err := OpenStore(nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	_ = s.DB().Close()
}

func TestOpenStoreMemoryDriver(t *testing.T) {
	t.Setenv("LINEAGECORE_STORAGE_DRIVER", "memory")
	store, err := OpenStore(nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if _, ok := store.(*core.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	t.Setenv("LINEAGECORE_STORAGE_DRIVER", "bogus")
	if _, err := OpenStore(nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
