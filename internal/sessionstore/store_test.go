package sessionstore

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/pkg/tau"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "session.jsonl"), atomicfile.LockOptions{WaitMs: 5000, StaleMs: 60000})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAppendMessagesAndLineage(t *testing.T) {
	s := newStore(t)
	head, err := s.AppendMessages(nil, []tau.Message{tau.NewTextMessage(tau.RoleSystem, "sys")})
	if err != nil {
		t.Fatal(err)
	}
	head, err = s.AppendMessages(&head, []tau.Message{tau.NewTextMessage(tau.RoleUser, "hi")})
	if err != nil {
		t.Fatal(err)
	}
	chain, err := s.LineageEntries(&head)
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[len(chain)-1].ID != head {
		t.Fatalf("chain = %+v", chain)
	}
	report := s.ValidationReport()
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}
}

// TestRepeatedOperationsDoNotDuplicateEntries verifies that a third
// AppendMessages on an already-populated store does not re-read and
// re-append the entries already on disk.
func TestRepeatedOperationsDoNotDuplicateEntries(t *testing.T) {
	s := newStore(t)
	head, err := s.AppendMessages(nil, []tau.Message{tau.NewTextMessage(tau.RoleSystem, "sys")})
	if err != nil {
		t.Fatal(err)
	}
	head, err = s.AppendMessages(&head, []tau.Message{tau.NewTextMessage(tau.RoleUser, "a")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessages(&head, []tau.Message{tau.NewTextMessage(tau.RoleAssistant, "b")}); err != nil {
		t.Fatal(err)
	}
	if len(s.entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(s.entries))
	}
	report := s.ValidationReport()
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}
}

// TestUsagePersistsAcrossReopen verifies that RecordUsageDelta's effect
// survives a fresh Open of the same path.
func TestUsagePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	opts := atomicfile.LockOptions{WaitMs: 5000, StaleMs: 60000}

	s, err := Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUsageDelta(tau.UsageDelta{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, EstimatedCostUSD: 0.02}); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordUsageDelta(tau.UsageDelta{InputTokens: 3, OutputTokens: 1, TotalTokens: 4}); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	got := reopened.Usage()
	if got.InputTokens != 13 || got.OutputTokens != 6 || got.TotalTokens != 19 {
		t.Fatalf("usage after reopen = %+v, want input=13 output=6 total=19", got)
	}
	if got.EstimatedCostUSD != 0.02 {
		t.Fatalf("estimated_cost_usd = %v, want 0.02", got.EstimatedCostUSD)
	}
}

// TestInvariantLockExclusion verifies that two concurrent appenders on the
// same session produce exactly N+M entries with contiguous IDs and a valid
// parent chain.
func TestInvariantLockExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	opts := atomicfile.LockOptions{WaitMs: 10000, StaleMs: 60000}

	const n, m = 15, 15
	var wg sync.WaitGroup
	wg.Add(n + m)
	for i := 0; i < n+m; i++ {
		go func() {
			defer wg.Done()
			s, err := Open(path, opts)
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			if _, err := s.AppendMessages(nil, []tau.Message{tau.NewTextMessage(tau.RoleUser, "x")}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := Open(path, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(final.entries) != n+m {
		t.Fatalf("entries = %d, want %d", len(final.entries), n+m)
	}
	seen := map[uint64]bool{}
	for _, e := range final.entries {
		if seen[e.ID] {
			t.Fatalf("duplicate id %d", e.ID)
		}
		seen[e.ID] = true
	}
	report := final.ValidationReport()
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}
}

func TestRepairDropsDuplicatesAndCycles(t *testing.T) {
	s := newStore(t)
	p1 := uint64(1)
	s.entries = []tau.SessionEntry{
		{ID: 1, Message: tau.NewTextMessage(tau.RoleSystem, "sys")},
		{ID: 2, ParentID: &p1, Message: tau.NewTextMessage(tau.RoleUser, "a")},
		{ID: 2, ParentID: &p1, Message: tau.NewTextMessage(tau.RoleUser, "dup")}, // duplicate id
	}
	s.nextID = 3
	report, err := s.Repair()
	if err != nil {
		t.Fatal(err)
	}
	if report.Duplicates != 1 {
		t.Fatalf("duplicates = %d, want 1", report.Duplicates)
	}
	final := s.ValidationReport()
	if !final.Clean() {
		t.Fatalf("expected clean after repair, got %+v", final)
	}
}

func TestRepairRemovesCycle(t *testing.T) {
	s := newStore(t)
	a, b, c := uint64(1), uint64(2), uint64(3)
	s.entries = []tau.SessionEntry{
		{ID: 1, ParentID: &c, Message: tau.NewTextMessage(tau.RoleUser, "a")},
		{ID: 2, ParentID: &a, Message: tau.NewTextMessage(tau.RoleUser, "b")},
		{ID: 3, ParentID: &b, Message: tau.NewTextMessage(tau.RoleUser, "c")},
	}
	s.nextID = 4
	report, err := s.Repair()
	if err != nil {
		t.Fatal(err)
	}
	if report.Cycles == 0 {
		t.Fatalf("expected cycle participants detected, got %+v", report)
	}
	if len(s.entries) != 0 {
		t.Fatalf("expected all cyclic entries removed, got %+v", s.entries)
	}
}

// TestImportMerge verifies that importing a snapshot in merge mode unions
// new entries into the existing lineage without dropping what was already
// there.
func TestImportMerge(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "session.jsonl"), atomicfile.LockOptions{WaitMs: 2000, StaleMs: 60000})
	if err != nil {
		t.Fatal(err)
	}
	head, _ := s.AppendMessages(nil, []tau.Message{tau.NewTextMessage(tau.RoleSystem, "sys")})
	head, _ = s.AppendMessages(&head, []tau.Message{tau.NewTextMessage(tau.RoleUser, "a")})
	_, err = s.AppendMessages(&head, []tau.Message{tau.NewTextMessage(tau.RoleAssistant, "b")})
	if err != nil {
		t.Fatal(err)
	}

	src, err := Open(filepath.Join(dir, "snapshot.jsonl"), atomicfile.LockOptions{WaitMs: 2000, StaleMs: 60000})
	if err != nil {
		t.Fatal(err)
	}
	srcHead, _ := src.AppendMessages(nil, []tau.Message{tau.NewTextMessage(tau.RoleSystem, "sys")})
	_, err = src.AppendMessages(&srcHead, []tau.Message{tau.NewTextMessage(tau.RoleUser, "x")})
	if err != nil {
		t.Fatal(err)
	}

	report, err := s.ImportSnapshot(filepath.Join(dir, "snapshot.jsonl"), tau.ImportMerge)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.entries) != 5 {
		t.Fatalf("entries = %d, want 5", len(s.entries))
	}
	if len(report.RemappedIDs) != 2 {
		t.Fatalf("remapped = %+v, want 2 entries", report.RemappedIDs)
	}
	head2, ok := s.entryByID(report.ActiveHead)
	if !ok || head2.Message.TextContent() != "x" {
		t.Fatalf("active head entry = %+v, ok=%v", head2, ok)
	}
}
