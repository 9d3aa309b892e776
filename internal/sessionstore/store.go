// Package sessionstore implements the durable, lock-protected session
// lineage forest: append-and-branch with merge/squash/compact/repair and
// usage accounting.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tauhq/tau/internal/atomicfile"
	"github.com/tauhq/tau/pkg/tau"
)

// ErrBackendNotImplemented is returned by Open for a path suffix (".sqlite",
// ".db") whose backend this build does not implement.
var ErrBackendNotImplemented = fmt.Errorf("sessionstore: backend not implemented for this path suffix")

type metaLine struct {
	SchemaVersion int                    `json:"schema_version"`
	Kind          string                 `json:"kind"`
	Usage         tau.SessionUsageSummary `json:"usage"`
}

const currentSchemaVersion = 1

// Store is one session's JSONL-backed lineage forest, guarded by a single
// advisory lock per operation.
type Store struct {
	path     string
	lockOpts atomicfile.LockOptions

	entries []tau.SessionEntry
	nextID  uint64
	usage   tau.SessionUsageSummary
}

// Open resolves the backend by path suffix and loads (or initializes) the
// store. Only the JSONL backend (any suffix other than .sqlite/.db) is
// implemented by this build.
func Open(path string, lockOpts atomicfile.LockOptions) (*Store, error) {
	if strings.HasSuffix(path, ".sqlite") || strings.HasSuffix(path, ".db") {
		return nil, ErrBackendNotImplemented
	}
	s := &Store{path: path, lockOpts: lockOpts, nextID: 1}
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadLocked (re)populates the store's in-memory state from disk. It is
// idempotent: every call first resets entries/nextID/usage to their
// zero state, so calling it more than once (withLock calls it before
// every operation) never duplicates entries or re-adds usage on top of
// itself.
func (s *Store) loadLocked() error {
	s.entries = nil
	s.nextID = 1
	s.usage = tau.SessionUsageSummary{}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil
	}
	var meta metaLine
	if err := json.Unmarshal([]byte(lines[0]), &meta); err != nil {
		return fmt.Errorf("sessionstore: invalid meta line: %w", err)
	}
	if meta.SchemaVersion != currentSchemaVersion {
		return fmt.Errorf("sessionstore: unsupported schema_version %d", meta.SchemaVersion)
	}
	s.usage = meta.Usage
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		var e tau.SessionEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return fmt.Errorf("sessionstore: invalid entry line: %w", err)
		}
		s.entries = append(s.entries, e)
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	return nil
}

func (s *Store) persistLocked() error {
	var b strings.Builder
	meta, _ := json.Marshal(metaLine{SchemaVersion: currentSchemaVersion, Kind: "meta", Usage: s.usage})
	b.Write(meta)
	b.WriteByte('\n')
	for _, e := range s.entries {
		line, err := json.Marshal(e)
		if err != nil {
			return err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return atomicfile.WriteFileAtomic(s.path, []byte(b.String()), 0o644)
}

func (s *Store) withLock(fn func() error) error {
	lk, err := atomicfile.AcquireLock(s.path, s.lockOpts)
	if err != nil {
		return err
	}
	defer lk.Release()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return s.persistLocked()
}

func (s *Store) entryByID(id uint64) (tau.SessionEntry, bool) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return tau.SessionEntry{}, false
}

// AppendMessages allocates contiguous IDs for msgs, parented on parentID
// (nil for a root), and returns the new head ID.
func (s *Store) AppendMessages(parentID *uint64, msgs []tau.Message) (uint64, error) {
	var head uint64
	err := s.withLock(func() error {
		if parentID != nil {
			if _, ok := s.entryByID(*parentID); !ok {
				return fmt.Errorf("sessionstore: parent %d does not exist", *parentID)
			}
		}
		parent := parentID
		for _, m := range msgs {
			id := s.nextID
			s.nextID++
			s.entries = append(s.entries, tau.SessionEntry{ID: id, ParentID: clonePtr(parent), Message: m})
			head = id
			parent = &id
		}
		return nil
	})
	return head, err
}

func clonePtr(p *uint64) *uint64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// EnsureInitialized appends a single system message if the store is empty
// and systemPrompt is non-empty.
func (s *Store) EnsureInitialized(systemPrompt string) error {
	return s.withLock(func() error {
		if len(s.entries) != 0 || systemPrompt == "" {
			return nil
		}
		id := s.nextID
		s.nextID++
		s.entries = append(s.entries, tau.SessionEntry{ID: id, Message: tau.NewTextMessage(tau.RoleSystem, systemPrompt)})
		return nil
	})
}

// RecordUsageDelta merges a usage delta into the session's summary.
func (s *Store) RecordUsageDelta(d tau.UsageDelta) error {
	return s.withLock(func() error {
		s.usage.Add(d)
		return nil
	})
}

// Usage returns a copy of the current usage summary.
func (s *Store) Usage() tau.SessionUsageSummary {
	return s.usage
}

// LineageEntries walks the parent chain from head (or the current branch
// tip, if head is nil) back to a root, returning root-to-head order.
// Returns an error if a cycle is detected.
func (s *Store) LineageEntries(head *uint64) ([]tau.SessionEntry, error) {
	var h uint64
	if head != nil {
		h = *head
	} else {
		tips := s.BranchTips()
		if len(tips) == 0 {
			return nil, nil
		}
		h = tips[len(tips)-1].ID
	}

	var chain []tau.SessionEntry
	seen := map[uint64]bool{}
	cur := h
	for {
		e, ok := s.entryByID(cur)
		if !ok {
			return nil, fmt.Errorf("sessionstore: entry %d not found", cur)
		}
		if seen[cur] {
			return nil, fmt.Errorf("sessionstore: cycle detected at entry %d", cur)
		}
		seen[cur] = true
		chain = append(chain, e)
		if e.ParentID == nil {
			break
		}
		cur = *e.ParentID
	}
	// reverse to root-to-head order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// BranchTips returns entries that are not referenced as any other entry's
// parent.
func (s *Store) BranchTips() []tau.SessionEntry {
	isParent := map[uint64]bool{}
	for _, e := range s.entries {
		if e.ParentID != nil {
			isParent[*e.ParentID] = true
		}
	}
	var tips []tau.SessionEntry
	for _, e := range s.entries {
		if !isParent[e.ID] {
			tips = append(tips, e)
		}
	}
	return tips
}

// ValidationReport counts duplicate IDs, entries with a missing parent,
// and entries participating in a cycle, without mutating the store.
func (s *Store) ValidationReport() tau.ValidationReport {
	report := tau.ValidationReport{Entries: len(s.entries)}
	seen := map[uint64]bool{}
	byID := map[uint64]tau.SessionEntry{}
	for _, e := range s.entries {
		if seen[e.ID] {
			report.Duplicates++
			continue
		}
		seen[e.ID] = true
		byID[e.ID] = e
	}
	for _, e := range byID {
		if e.ParentID != nil {
			if _, ok := byID[*e.ParentID]; !ok {
				report.InvalidParent++
			}
		}
	}
	report.Cycles = len(cycleParticipantIDs(byID))
	return report
}
