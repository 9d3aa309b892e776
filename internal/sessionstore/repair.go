package sessionstore

import "github.com/tauhq/tau/pkg/tau"

// Repair sorts entries by ID, drops duplicates (keeping the first), then
// iteratively drops entries whose parent is missing until a fixpoint, then
// removes entries that participate in a cycle, and persists the result.
func (s *Store) Repair() (tau.ValidationReport, error) {
	var report tau.ValidationReport
	err := s.withLock(func() error {
		report = repairEntries(&s.entries)
		return nil
	})
	return report, err
}

func repairEntries(entries *[]tau.SessionEntry) tau.ValidationReport {
	report := tau.ValidationReport{Entries: len(*entries)}

	sorted := append([]tau.SessionEntry(nil), *entries...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].ID > sorted[j].ID; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	deduped := make([]tau.SessionEntry, 0, len(sorted))
	seen := map[uint64]bool{}
	for _, e := range sorted {
		if seen[e.ID] {
			report.Duplicates++
			continue
		}
		seen[e.ID] = true
		deduped = append(deduped, e)
	}

	for {
		byID := map[uint64]tau.SessionEntry{}
		for _, e := range deduped {
			byID[e.ID] = e
		}
		var next []tau.SessionEntry
		dropped := 0
		for _, e := range deduped {
			if e.ParentID != nil {
				if _, ok := byID[*e.ParentID]; !ok {
					dropped++
					report.InvalidParent++
					continue
				}
			}
			next = append(next, e)
		}
		deduped = next
		if dropped == 0 {
			break
		}
	}

	byID := map[uint64]tau.SessionEntry{}
	for _, e := range deduped {
		byID[e.ID] = e
	}
	cyclic := cycleParticipantIDs(byID)
	if len(cyclic) > 0 {
		var next []tau.SessionEntry
		for _, e := range deduped {
			if cyclic[e.ID] {
				report.Cycles++
				continue
			}
			next = append(next, e)
		}
		deduped = next

		// Removing the cycle can leave former cycle-ancestors pointing at
		// a now-missing parent; sweep those too, counting them as
		// invalid_parent rather than cycles since they were not
		// themselves part of the loop.
		for {
			byID := map[uint64]tau.SessionEntry{}
			for _, e := range deduped {
				byID[e.ID] = e
			}
			var next2 []tau.SessionEntry
			dropped := 0
			for _, e := range deduped {
				if e.ParentID != nil {
					if _, ok := byID[*e.ParentID]; !ok {
						dropped++
						report.InvalidParent++
						continue
					}
				}
				next2 = append(next2, e)
			}
			deduped = next2
			if dropped == 0 {
				break
			}
		}
	}

	*entries = deduped
	return report
}

// cycleParticipantIDs returns the set of entry IDs whose parent chain
// loops back on itself.
func cycleParticipantIDs(byID map[uint64]tau.SessionEntry) map[uint64]bool {
	state := map[uint64]int{} // 0=unvisited 1=in-progress 2=done
	result := map[uint64]bool{}
	var stack []uint64

	var visit func(id uint64)
	visit = func(id uint64) {
		if state[id] != 0 {
			return
		}
		state[id] = 1
		stack = append(stack, id)
		e, ok := byID[id]
		if ok && e.ParentID != nil {
			if _, parentExists := byID[*e.ParentID]; parentExists {
				if state[*e.ParentID] == 1 {
					// found the cycle: mark every id on the stack from
					// the repeated ancestor onward.
					start := indexOf(stack, *e.ParentID)
					for _, sid := range stack[start:] {
						result[sid] = true
					}
				} else {
					visit(*e.ParentID)
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = 2
	}
	for id := range byID {
		visit(id)
	}
	return result
}

func indexOf(s []uint64, v uint64) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
