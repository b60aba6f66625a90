// Package persistence selects a concrete closure store backend.
package persistence

import (
	"fmt"
	"os"

	"lineagecore/internal/core"
	"lineagecore/internal/infra/persistence/postgres"
	"lineagecore/internal/infra/persistence/sqlite"
	"lineagecore/pkg/dag"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenStore selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	LINEAGECORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	LINEAGECORE_SQLITE_PATH: path to sqlite file (default ./lineagecore.db)
//	LINEAGECORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStore(engine *dag.RulesEngine) (dag.PersistentStore, error) {
	driver := os.Getenv("LINEAGECORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return core.NewMemoryStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("LINEAGECORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("LINEAGECORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
