package sessionstore

import (
	"fmt"

	"github.com/tauhq/tau/pkg/tau"
)

// MergeBranches combines sourceHead's lineage into targetHead's using the
// given strategy, returning the new head ID.
func (s *Store) MergeBranches(sourceHead, targetHead uint64, strategy tau.MergeStrategy) (uint64, error) {
	var newHead uint64
	err := s.withLock(func() error {
		sourceLineage, err := s.lineageLocked(&sourceHead)
		if err != nil {
			return err
		}
		targetLineage, err := s.lineageLocked(&targetHead)
		if err != nil {
			return err
		}
		targetIDs := map[uint64]bool{}
		for _, e := range targetLineage {
			targetIDs[e.ID] = true
		}

		switch strategy {
		case tau.MergeFastForward:
			if !targetIDs[sourceHead] {
				return fmt.Errorf("sessionstore: fast_forward requires target to be an ancestor of source")
			}
			newHead = targetHead
			return nil
		case tau.MergeAppend:
			suffix := lineageSuffix(sourceLineage, targetIDs)
			parent := targetHead
			for _, e := range suffix {
				id := s.nextID
				s.nextID++
				p := parent
				s.entries = append(s.entries, tau.SessionEntry{ID: id, ParentID: &p, Message: e.Message})
				parent = id
			}
			newHead = parent
			return nil
		case tau.MergeSquash:
			suffix := lineageSuffix(sourceLineage, targetIDs)
			summary := buildSquashSummary(suffix)
			id := s.nextID
			s.nextID++
			p := targetHead
			s.entries = append(s.entries, tau.SessionEntry{ID: id, ParentID: &p, Message: tau.NewTextMessage(tau.RoleAssistant, summary)})
			newHead = id
			return nil
		default:
			return fmt.Errorf("sessionstore: unknown merge strategy %q", strategy)
		}
	})
	return newHead, err
}

// lineageLocked walks the parent chain without acquiring a new lock
// (caller already holds one via withLock).
func (s *Store) lineageLocked(head *uint64) ([]tau.SessionEntry, error) {
	var chain []tau.SessionEntry
	seen := map[uint64]bool{}
	cur := *head
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
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// lineageSuffix returns the entries in sourceLineage (root-to-head order)
// that are not already part of targetIDs, preserving order.
func lineageSuffix(sourceLineage []tau.SessionEntry, targetIDs map[uint64]bool) []tau.SessionEntry {
	var out []tau.SessionEntry
	for _, e := range sourceLineage {
		if !targetIDs[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// buildSquashSummary emits one assistant summary line listing up to six
// unique suffix entries.
func buildSquashSummary(suffix []tau.SessionEntry) string {
	const maxListed = 6
	n := len(suffix)
	if n > maxListed {
		n = maxListed
	}
	summary := "Merged branch summary:"
	for i := 0; i < n; i++ {
		text := suffix[i].Message.TextContent()
		summary += fmt.Sprintf("\n- [%s] %s", suffix[i].Message.Role, text)
	}
	if len(suffix) > maxListed {
		summary += fmt.Sprintf("\n… and %d more", len(suffix)-maxListed)
	}
	return summary
}
