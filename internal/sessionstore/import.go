package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tauhq/tau/pkg/tau"
)

// loadSnapshot reads a standalone store file's entries without going
// through a full Store (no lock needed: it's a read of someone else's
// file, not this store's own path).
func loadSnapshot(path string) ([]tau.SessionEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, nil
	}
	var meta metaLine
	if err := json.Unmarshal([]byte(lines[0]), &meta); err != nil {
		return nil, fmt.Errorf("sessionstore: invalid snapshot meta: %w", err)
	}
	if meta.SchemaVersion != currentSchemaVersion {
		return nil, fmt.Errorf("sessionstore: unsupported snapshot schema_version %d", meta.SchemaVersion)
	}
	var entries []tau.SessionEntry
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		var e tau.SessionEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("sessionstore: invalid snapshot entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ExportLineage writes the lineage ending at head (or the current tip, if
// nil) to dest as a standalone valid store.
func (s *Store) ExportLineage(head *uint64, dest string) error {
	chain, err := s.LineageEntries(head)
	if err != nil {
		return err
	}
	dst := &Store{path: dest, lockOpts: s.lockOpts, entries: chain, nextID: 1}
	for _, e := range chain {
		if e.ID >= dst.nextID {
			dst.nextID = e.ID + 1
		}
	}
	return dst.persistLocked()
}

// ImportSnapshot loads src and merges or replaces it into this store.
// In Replace mode, src's entries overwrite this store's entirely. In
// Merge mode, any source ID colliding with an existing entry (or with
// another, earlier-imported source entry) is remapped to a new ID and
// its descendants' parent pointers are rewired accordingly.
func (s *Store) ImportSnapshot(src string, mode tau.ImportMode) (tau.ImportReport, error) {
	var report tau.ImportReport
	err := s.withLock(func() error {
		incoming, err := loadSnapshot(src)
		if err != nil {
			return err
		}

		if mode == tau.ImportReplace {
			s.entries = append([]tau.SessionEntry(nil), incoming...)
			s.nextID = 1
			for _, e := range s.entries {
				if e.ID >= s.nextID {
					s.nextID = e.ID + 1
				}
			}
			report = tau.ImportReport{Imported: len(incoming), Replaced: true}
			if len(s.entries) > 0 {
				report.ActiveHead = s.entries[len(s.entries)-1].ID
			}
			return nil
		}

		existingIDs := map[uint64]bool{}
		for _, e := range s.entries {
			existingIDs[e.ID] = true
		}

		remap := map[uint64]uint64{}
		for _, e := range incoming {
			newID := e.ID
			if existingIDs[newID] {
				newID = s.nextID
				s.nextID++
				remap[e.ID] = newID
			} else if newID >= s.nextID {
				s.nextID = newID + 1
			}
			existingIDs[newID] = true
		}

		for _, e := range incoming {
			newID := e.ID
			if remapped, ok := remap[e.ID]; ok {
				newID = remapped
			}
			newParent := e.ParentID
			if e.ParentID != nil {
				if remappedParent, ok := remap[*e.ParentID]; ok {
					newParent = &remappedParent
				}
			}
			s.entries = append(s.entries, tau.SessionEntry{ID: newID, ParentID: newParent, Message: e.Message})
		}

		finalID := lastImportedID(incoming, remap)
		report = tau.ImportReport{Imported: len(incoming), RemappedIDs: remap, ActiveHead: finalID}
		return nil
	})
	return report, err
}

func lastImportedID(incoming []tau.SessionEntry, remap map[uint64]uint64) uint64 {
	if len(incoming) == 0 {
		return 0
	}
	last := incoming[len(incoming)-1].ID
	if r, ok := remap[last]; ok {
		return r
	}
	return last
}

// CompactToLineage retains only the lineage to head (or the current tip,
// if nil), discarding all other branches, and rewrites atomically.
func (s *Store) CompactToLineage(head *uint64) error {
	return s.withLock(func() error {
		chain, err := s.lineageFromCurrentLocked(head)
		if err != nil {
			return err
		}
		s.entries = chain
		return nil
	})
}

func (s *Store) lineageFromCurrentLocked(head *uint64) ([]tau.SessionEntry, error) {
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
	return s.lineageLocked(&h)
}
