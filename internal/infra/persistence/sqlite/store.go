// Package sqlite provides a SQLite-backed persistent closure store. It reuses
// the in-memory engine for transactional semantics and snapshots the full
// per-scope state after every successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"lineagecore/internal/core"
	"lineagecore/pkg/dag"
)

// Compile-time contract assertion.
var _ dag.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to SQLite, one row per scope.
type Store struct {
	*core.MemoryStore
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store and
// hydrates it from any existing rows.
func NewStore(path string, engine *dag.RulesEngine) (*Store, error) {
	if path == "" {
		path = "lineagecore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS scope_state (
		scope TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create scope_state table: %w", err)
	}
	s := &Store{MemoryStore: core.NewMemoryStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT scope, payload FROM scope_state`)
	if err != nil {
		return fmt.Errorf("select scope_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := core.Snapshot{Scopes: map[string]core.ScopeSnapshot{}}
	for rows.Next() {
		var scope string
		var payload []byte
		if err := rows.Scan(&scope, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var ss core.ScopeSnapshot
		if err := json.Unmarshal(payload, &ss); err != nil {
			return fmt.Errorf("decode scope %s: %w", scope, err)
		}
		snapshot.Scopes[scope] = ss
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate scope_state: %w", err)
	}
	if len(snapshot.Scopes) == 0 {
		return nil
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	// Scopes can be dropped between snapshots, so rewrite the table whole.
	if _, err := tx.Exec(`DELETE FROM scope_state`); err != nil {
		retErr = fmt.Errorf("clear scope_state: %w", err)
		return retErr
	}
	scopes := make([]string, 0, len(snapshot.Scopes))
	for scope := range snapshot.Scopes {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		data, err := json.Marshal(snapshot.Scopes[scope])
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO scope_state(scope,payload) VALUES(?,?)`, scope, data); err != nil {
			retErr = fmt.Errorf("insert scope %s: %w", scope, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(dag.Transaction) error) (dag.Result, error) {
	res, err := s.MemoryStore.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
