// Package postgres provides a Postgres-backed persistent closure store that
// mirrors the in-memory semantics while snapshotting per-scope state as JSONB
// after each successful transaction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"lineagecore/internal/core"
	"lineagecore/pkg/dag"
)

// Compile-time contract assertion.
var _ dag.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/lineagecore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory engine for
// transactions.
type Store struct {
	*core.MemoryStore
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory engine from any existing rows.
func NewStore(dsn string, engine *dag.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS scope_state (
		scope TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure scope_state table: %w", err)
	}
	s := &Store{MemoryStore: core.NewMemoryStore(engine), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT scope, payload FROM scope_state`)
	if err != nil {
		return fmt.Errorf("select scope_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := core.Snapshot{Scopes: map[string]core.ScopeSnapshot{}}
	for rows.Next() {
		var scope string
		var payload []byte
		if err := rows.Scan(&scope, &payload); err != nil {
			return fmt.Errorf("scan scope_state: %w", err)
		}
		if len(payload) == 0 {
			continue
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

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM scope_state`); err != nil {
		return fmt.Errorf("clear scope_state: %w", err)
	}
	scopes := make([]string, 0, len(snapshot.Scopes))
	for scope := range snapshot.Scopes {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		data, err := json.Marshal(snapshot.Scopes[scope])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO scope_state(scope,payload) VALUES($1,$2)`, scope, data); err != nil {
			return fmt.Errorf("insert scope %s: %w", scope, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots to
// Postgres if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(dag.Transaction) error) (dag.Result, error) {
	res, err := s.MemoryStore.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
