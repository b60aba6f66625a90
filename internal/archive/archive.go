// Package archive exports scope snapshots to a blob store and restores them.
// Snapshots are JSON documents keyed as scopes/<scope>/<timestamp>.json so a
// prefix listing yields the history of a single scope in order.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"lineagecore/internal/blob"
	"lineagecore/internal/core"
)

const (
	keyPrefix   = "scopes/"
	contentType = "application/json"
	timeLayout  = "20060102T150405.000000000Z"
)

// StateExporter is the snapshot surface the archiver needs from a store. The
// in-memory store and both durable wrappers satisfy it.
type StateExporter interface {
	ExportState() core.Snapshot
	ImportState(core.Snapshot)
}

// Archiver writes scope snapshots to a blob store.
type Archiver struct {
	blobs blob.Store
	store StateExporter
	nowFn func() time.Time
}

// New constructs an archiver over the given blob store and state source.
func New(blobs blob.Store, store StateExporter) *Archiver {
	return &Archiver{blobs: blobs, store: store, nowFn: func() time.Time { return time.Now().UTC() }}
}

// SetNowFunc overrides the clock, for tests.
func (a *Archiver) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		a.nowFn = fn
	}
}

func scopeKey(scope string, ts time.Time) string {
	return keyPrefix + scope + "/" + ts.UTC().Format(timeLayout) + ".json"
}

// ArchiveScope snapshots a single scope. Returns an error when the scope has
// no committed state.
func (a *Archiver) ArchiveScope(ctx context.Context, scope string) (blob.Info, error) {
	snapshot := a.store.ExportState()
	ss, ok := snapshot.Scopes[scope]
	if !ok {
		return blob.Info{}, fmt.Errorf("scope %s has no state to archive", scope)
	}
	data, err := json.MarshalIndent(ss, "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := scopeKey(scope, a.nowFn())
	return a.blobs.Put(ctx, key, strings.NewReader(string(data)), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"scope": scope},
	})
}

// ArchiveAll snapshots every scope under the same timestamp.
func (a *Archiver) ArchiveAll(ctx context.Context) ([]blob.Info, error) {
	snapshot := a.store.ExportState()
	ts := a.nowFn()
	infos := make([]blob.Info, 0, len(snapshot.Scopes))
	for scope, ss := range snapshot.Scopes {
		data, err := json.MarshalIndent(ss, "", "  ")
		if err != nil {
			return infos, err
		}
		info, err := a.blobs.Put(ctx, scopeKey(scope, ts), strings.NewReader(string(data)), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"scope": scope},
		})
		if err != nil {
			return infos, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// List returns archived snapshots for a scope, oldest first. An empty scope
// lists every snapshot.
func (a *Archiver) List(ctx context.Context, scope string) ([]blob.Info, error) {
	prefix := keyPrefix
	if scope != "" {
		prefix += scope + "/"
	}
	return a.blobs.List(ctx, prefix)
}

// Restore replaces a scope's committed state with the archived snapshot at
// key. Other scopes are untouched.
func (a *Archiver) Restore(ctx context.Context, key string) error {
	scope, err := scopeFromKey(key)
	if err != nil {
		return err
	}
	_, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	var ss core.ScopeSnapshot
	if err := json.Unmarshal(data, &ss); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	snapshot := a.store.ExportState()
	if snapshot.Scopes == nil {
		snapshot.Scopes = map[string]core.ScopeSnapshot{}
	}
	snapshot.Scopes[scope] = ss
	a.store.ImportState(snapshot)
	return nil
}

func scopeFromKey(key string) (string, error) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", fmt.Errorf("key %s is not a scope snapshot", key)
	}
	scope, _, ok := strings.Cut(rest, "/")
	if !ok || scope == "" {
		return "", fmt.Errorf("key %s is not a scope snapshot", key)
	}
	return scope, nil
}
