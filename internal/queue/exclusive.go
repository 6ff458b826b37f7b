// Package queue - exclusive.go
// Cross-queue exclusivity rules and housekeeping.
package queue

// pairKey orders two queue IDs so exemptions are symmetric.
func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// conflicts reports whether membership in a forbids joining b.
// Caller must hold the mutex.
func (m *Manager) conflicts(a, b *Queue) bool {
	if a.ID == b.ID {
		return false
	}
	if !a.Format.Exclusive || !b.Format.Exclusive {
		return false
	}
	return !m.exempt[pairKey(a.ID, b.ID)]
}

// queuedElsewhere returns the first other queue holding player that
// conflicts with target. Caller must hold the mutex.
func (m *Manager) queuedElsewhere(target *Queue, player int64) (*Queue, bool) {
	for _, id := range m.order {
		other := m.queues[id]
		if other.ID == target.ID || indexOf(other, player) < 0 {
			continue
		}
		if m.conflicts(target, other) {
			return other, true
		}
	}
	return nil, false
}

// purgeElsewhere removes locked players (and their guests) from every queue
// except skip. It returns the IDs of queues that changed. Caller must hold
// the mutex.
func (m *Manager) purgeElsewhere(skip string, players []int64) []string {
	var changed []string
	for _, id := range m.order {
		if id == skip {
			continue
		}
		q := m.queues[id]
		before := len(q.Entries)
		for _, p := range players {
			if i := indexOf(q, p); i >= 0 {
				removeAt(q, i)
			}
			if g := guestOf(q, p); g >= 0 {
				removeAt(q, g)
			}
		}
		if len(q.Entries) != before {
			changed = append(changed, id)
		}
	}
	return changed
}
