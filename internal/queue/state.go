// Package queue - state.go
// Persistable view of the manager.
package queue

import (
	"time"

	"github.com/samber/lo"
)

// EntryState is the persisted form of an Entry.
type EntryState struct {
	Player   int64     `json:"player"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
	Host     int64     `json:"host,omitempty"`
	GuestMMR int       `json:"guest_mmr,omitempty"`
	Prompted time.Time `json:"prompted_at"`
}

// QueueState is the persisted form of a Queue.
type QueueState struct {
	ID      string       `json:"id"`
	Entries []EntryState `json:"entries"`
	Paused  bool         `json:"paused"`
	Test    bool         `json:"test"`
}

// State is everything needed to rebuild the manager after a restart.
type State struct {
	Queues   []QueueState     `json:"queues"`
	InMatch  map[int64]string `json:"in_match"`
	GuestSeq int64            `json:"guest_seq"`
}

// Snapshot captures the manager's state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{
		InMatch:  lo.Assign(m.inMatch),
		GuestSeq: m.guestSeq,
	}
	for _, id := range m.order {
		q := m.queues[id]
		st.Queues = append(st.Queues, QueueState{
			ID:     q.ID,
			Paused: q.Paused,
			Test:   q.Test,
			Entries: lo.Map(q.Entries, func(e Entry, _ int) EntryState {
				return EntryState{Player: e.Player, Name: e.Name, JoinedAt: e.JoinedAt, LastSeen: e.LastSeen, Host: e.Host, GuestMMR: e.GuestMMR, Prompted: e.PromptedAt}
			}),
		})
	}
	return st
}

// Restore loads st into queues that already exist. Unknown queue IDs are
// reported and skipped.
func (m *Manager) Restore(st State) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []string
	for _, qs := range st.Queues {
		q, ok := m.queues[qs.ID]
		if !ok {
			missing = append(missing, qs.ID)
			continue
		}
		q.Paused, q.Test = qs.Paused, qs.Test
		q.Entries = lo.Map(qs.Entries, func(e EntryState, _ int) Entry {
			return Entry{Player: e.Player, Name: e.Name, JoinedAt: e.JoinedAt, LastSeen: e.LastSeen, Host: e.Host, GuestMMR: e.GuestMMR, PromptedAt: e.Prompted}
		})
	}
	m.inMatch = lo.Assign(st.InMatch)
	m.guestSeq = st.GuestSeq
	return missing
}
