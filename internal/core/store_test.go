package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"lineagecore/pkg/dag"
)

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	s := NewMemoryStore(nil)
	boom := fmt.Errorf("boom")
	_, err := s.RunInTransaction(context.Background(), func(tx dag.Transaction) error {
		if _, err := tx.CreateNode(dag.Node{ID: "A"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected user error to propagate, got %v", err)
	}
	if _, ok := s.FindNode("A"); ok {
		t.Fatalf("expected rollback to discard node A")
	}
}

func TestRunInTransactionBlocksOnRuleViolation(t *testing.T) {
	engine := dag.NewRulesEngine()
	engine.Register(blockingRule{})
	s := NewMemoryStore(engine)

	res, err := s.RunInTransaction(context.Background(), func(tx dag.Transaction) error {
		_, err := tx.CreateNode(dag.Node{ID: "A"})
		return err
	})
	var rve dag.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result, got %v", res)
	}
	if _, ok := s.FindNode("A"); ok {
		t.Fatalf("expected blocked transaction to discard node A")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "always_block" }

func (blockingRule) Evaluate(context.Context, dag.RuleView, []dag.Change) (dag.Result, error) {
	return dag.Result{Violations: []dag.Violation{{Rule: "always_block", Severity: dag.SeverityBlock, Message: "no"}}}, nil
}

type recordingObserver struct {
	linksCreated   []dag.Link
	linksRemoved   []dag.Link
	closureEntries []dag.ClosureEntry
	rebuilds       []string
	resets         []int
}

func (r *recordingObserver) LinkCreated(_ string, l dag.Link) { r.linksCreated = append(r.linksCreated, l) }
func (r *recordingObserver) LinkRemoved(_ string, l dag.Link) { r.linksRemoved = append(r.linksRemoved, l) }
func (r *recordingObserver) ClosureInserted(_ string, e dag.ClosureEntry) {
	r.closureEntries = append(r.closureEntries, e)
}
func (r *recordingObserver) RebuildStarted(string, string) {}
func (r *recordingObserver) RebuildFinished(_, rootID string, _ int) {
	r.rebuilds = append(r.rebuilds, rootID)
}
func (r *recordingObserver) ScopeReset(_ string, nodes int) { r.resets = append(r.resets, nodes) }

func TestObserverFiresOnlyAfterCommit(t *testing.T) {
	s := NewMemoryStore(nil)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	boom := fmt.Errorf("boom")
	_, err := s.RunInTransaction(context.Background(), func(tx dag.Transaction) error {
		if _, err := tx.CreateNode(dag.Node{ID: "A"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
	if len(obs.linksCreated) != 0 || len(obs.closureEntries) != 0 {
		t.Fatalf("expected no events from rolled-back transaction, got %+v", obs)
	}

	mustCreate(t, s, "A")
	if len(obs.linksCreated) != 1 || !obs.linksCreated[0].IsRootMarker() {
		t.Fatalf("expected root marker event, got %v", obs.linksCreated)
	}
	if len(obs.closureEntries) != 1 || !obs.closureEntries[0].IsSelf() {
		t.Fatalf("expected self closure event, got %v", obs.closureEntries)
	}
}

func TestObserverSeesUnlinkRebuild(t *testing.T) {
	s := NewMemoryStore(nil)
	buildDiamond(t, s)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	mustUnlink(t, s, "B", "D")
	if len(obs.rebuilds) == 0 {
		t.Fatalf("expected rebuild events after unlink")
	}
	if obs.rebuilds[0] != "A" {
		t.Fatalf("expected rebuild from root A, got %v", obs.rebuilds)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := NewMemoryStore(nil)
	buildDiamond(t, s)

	snapshot := s.ExportState()
	restored := NewMemoryStore(nil)
	restored.ImportState(snapshot)

	if got, want := closureOf(t, restored, dag.DefaultScope), closureOf(t, s, dag.DefaultScope); !reflect.DeepEqual(got, want) {
		t.Fatalf("closure mismatch after import:\nwant %v\ngot  %v", want, got)
	}
	if got, want := restored.Links(dag.DefaultScope, dag.LinkFilter{}), s.Links(dag.DefaultScope, dag.LinkFilter{}); !reflect.DeepEqual(got, want) {
		t.Fatalf("links mismatch after import:\nwant %v\ngot  %v", want, got)
	}
	if got, want := restored.ListNodes(dag.DefaultScope), s.ListNodes(dag.DefaultScope); !reflect.DeepEqual(got, want) {
		t.Fatalf("nodes mismatch after import:\nwant %v\ngot  %v", want, got)
	}
}

func TestSnapshotOutputIsDeterministic(t *testing.T) {
	s := NewMemoryStore(nil)
	buildDiamond(t, s)

	first := s.ExportState()
	second := s.ExportState()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic snapshots")
	}
	links := first.Scopes[dag.DefaultScope].Links
	for i := 1; i < len(links); i++ {
		prev, cur := links[i-1], links[i]
		if prev.ParentID > cur.ParentID || (prev.ParentID == cur.ParentID && prev.ChildID >= cur.ChildID) {
			t.Fatalf("links not sorted: %v", links)
		}
	}
}

func TestCreateNodeStampsClock(t *testing.T) {
	s := NewMemoryStore(nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.nowFn = func() time.Time { return fixed }

	mustCreate(t, s, "A")
	n, ok := s.FindNode("A")
	if !ok {
		t.Fatalf("node A missing")
	}
	if !n.CreatedAt.Equal(fixed) || !n.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected fixed timestamps, got %+v", n)
	}
	if n.Scope != dag.DefaultScope {
		t.Fatalf("expected default scope, got %q", n.Scope)
	}
}

func TestCreateNodeGeneratesID(t *testing.T) {
	s := NewMemoryStore(nil)
	var created dag.Node
	_, err := s.RunInTransaction(context.Background(), func(tx dag.Transaction) error {
		var err error
		created, err = tx.CreateNode(dag.Node{})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	if _, ok := s.FindNode(created.ID); !ok {
		t.Fatalf("generated node not committed")
	}
}

func TestViewSeesCommittedStateOnly(t *testing.T) {
	s := NewMemoryStore(nil)
	mustCreate(t, s, "A")

	err := s.View(context.Background(), func(v dag.TransactionView) error {
		if _, ok := v.FindNode("A"); !ok {
			t.Fatalf("expected committed node visible")
		}
		if scopes := v.ListScopes(); len(scopes) != 1 || scopes[0] != dag.DefaultScope {
			t.Fatalf("unexpected scopes %v", scopes)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
