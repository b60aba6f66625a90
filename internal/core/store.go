package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"lineagecore/pkg/dag"
)

// memoryState holds every scope partition: node records plus the link set and
// the closure multiset. Links and closure entries are keyed by value, which
// makes exact-triple duplicate detection a map lookup.
type memoryState struct {
	nodes   map[string]dag.Node
	links   map[string]map[dag.Link]struct{}
	closure map[string]map[dag.ClosureEntry]struct{}
}

func newMemoryState() memoryState {
	return memoryState{
		nodes:   map[string]dag.Node{},
		links:   map[string]map[dag.Link]struct{}{},
		closure: map[string]map[dag.ClosureEntry]struct{}{},
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for id, n := range s.nodes {
		cloned.nodes[id] = n
	}
	for scope, links := range s.links {
		set := make(map[dag.Link]struct{}, len(links))
		for l := range links {
			set[l] = struct{}{}
		}
		cloned.links[scope] = set
	}
	for scope, entries := range s.closure {
		set := make(map[dag.ClosureEntry]struct{}, len(entries))
		for e := range entries {
			set[e] = struct{}{}
		}
		cloned.closure[scope] = set
	}
	return cloned
}

func (s memoryState) scopeLinks(scope string) map[dag.Link]struct{} {
	set, ok := s.links[scope]
	if !ok {
		set = map[dag.Link]struct{}{}
		s.links[scope] = set
	}
	return set
}

func (s memoryState) scopeClosure(scope string) map[dag.ClosureEntry]struct{} {
	set, ok := s.closure[scope]
	if !ok {
		set = map[dag.ClosureEntry]struct{}{}
		s.closure[scope] = set
	}
	return set
}

// ScopeSnapshot is the serialisable representation of one scope partition.
type ScopeSnapshot struct {
	Nodes   map[string]dag.Node `json:"nodes"`
	Links   []dag.Link          `json:"links"`
	Closure []dag.ClosureEntry  `json:"closure"`
}

// Snapshot is the serialisable representation of the full store state.
type Snapshot struct {
	Scopes map[string]ScopeSnapshot `json:"scopes"`
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{Scopes: map[string]ScopeSnapshot{}}
	scopeSnap := func(scope string) ScopeSnapshot {
		ss, ok := snap.Scopes[scope]
		if !ok {
			ss = ScopeSnapshot{Nodes: map[string]dag.Node{}}
		}
		return ss
	}
	for id, n := range state.nodes {
		ss := scopeSnap(n.Scope)
		ss.Nodes[id] = n
		snap.Scopes[n.Scope] = ss
	}
	for scope, links := range state.links {
		ss := scopeSnap(scope)
		for l := range links {
			ss.Links = append(ss.Links, l)
		}
		sortLinks(ss.Links)
		snap.Scopes[scope] = ss
	}
	for scope, entries := range state.closure {
		ss := scopeSnap(scope)
		for e := range entries {
			ss.Closure = append(ss.Closure, e)
		}
		sortClosureTriples(ss.Closure)
		snap.Scopes[scope] = ss
	}
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for scope, ss := range snap.Scopes {
		for id, n := range ss.Nodes {
			if n.ID == "" {
				n.ID = id
			}
			if n.Scope == "" {
				n.Scope = scope
			}
			state.nodes[n.ID] = n
		}
		links := state.scopeLinks(scope)
		for _, l := range ss.Links {
			links[l] = struct{}{}
		}
		entries := state.scopeClosure(scope)
		for _, e := range ss.Closure {
			entries[e] = struct{}{}
		}
	}
	return state
}

func sortLinks(links []dag.Link) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].ParentID != links[j].ParentID {
			return links[i].ParentID < links[j].ParentID
		}
		return links[i].ChildID < links[j].ChildID
	})
}

func sortClosureTriples(entries []dag.ClosureEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.AncestorID != b.AncestorID {
			return a.AncestorID < b.AncestorID
		}
		if a.DescendantID != b.DescendantID {
			return a.DescendantID < b.DescendantID
		}
		return a.Depth < b.Depth
	})
}

// MemoryStore provides the in-memory transactional closure store. Durable
// backends embed it and persist snapshots after successful transactions.
type MemoryStore struct {
	mu       sync.RWMutex
	state    memoryState
	engine   *dag.RulesEngine
	observer dag.Observer
	nowFn    func() time.Time
}

// NewMemoryStore constructs a store backed by the provided rules engine.
// A nil engine gets the default structural rule set.
func NewMemoryStore(engine *dag.RulesEngine) *MemoryStore {
	if engine == nil {
		engine = DefaultRulesEngine()
	}
	return &MemoryStore{
		state:    newMemoryState(),
		engine:   engine,
		observer: dag.NopObserver{},
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// Compile-time contract assertion.
var _ dag.PersistentStore = (*MemoryStore)(nil)

func (s *MemoryStore) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// SetObserver installs a trace sink notified after commits. Nil restores the
// no-op observer.
func (s *MemoryStore) SetObserver(o dag.Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		o = dag.NopObserver{}
	}
	s.observer = o
}

// RulesEngine returns the engine evaluated on every transaction.
func (s *MemoryStore) RulesEngine() *dag.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the store clock.
func (s *MemoryStore) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// ExportState returns a deep snapshot of committed state.
func (s *MemoryStore) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces committed state with the given snapshot.
func (s *MemoryStore) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// transaction applies mutations to a cloned state. Observer notifications are
// buffered and flushed only after commit so a rolled-back transaction leaves
// no trace.
type transaction struct {
	store   *MemoryStore
	state   memoryState
	changes []dag.Change
	events  []func(dag.Observer)
	now     time.Time
}

var _ dag.Transaction = (*transaction)(nil)

func (tx *transaction) recordChange(change dag.Change) { tx.changes = append(tx.changes, change) }
func (tx *transaction) notify(fn func(dag.Observer))   { tx.events = append(tx.events, fn) }

// Snapshot exposes the transactional state to rules and callers.
func (tx *transaction) Snapshot() dag.TransactionView { return &view{state: &tx.state} }

// FindNode retrieves a node from the transactional state.
func (tx *transaction) FindNode(id string) (dag.Node, bool) {
	n, ok := tx.state.nodes[id]
	return n, ok
}

// RunInTransaction executes fn within a transactional copy of the store
// state. The clone swap makes every mutation all-or-nothing: a returned error
// or blocking rule violation discards the clone.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(dag.Transaction) error) (dag.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{store: s, state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return dag.Result{}, err
	}

	var result dag.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.Snapshot(), tx.changes)
		if err != nil {
			return dag.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, dag.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	for _, fire := range tx.events {
		fire(s.observer)
	}
	return result, nil
}

// View executes fn against a read-only snapshot of committed state.
func (s *MemoryStore) View(_ context.Context, fn func(dag.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.state.clone()
	return fn(&view{state: &snapshot})
}
