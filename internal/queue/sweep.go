// Package queue - sweep.go
// Inactivity housekeeping: prompt idle players, drop the ones who never answer.
package queue

import (
	"time"

	"go.uber.org/zap"
)

// SweepPolicy controls the inactivity check.
type SweepPolicy struct {
	Idle   time.Duration // idle time before a prompt is sent
	Window time.Duration // time to answer a prompt
}

var DefaultSweepPolicy = SweepPolicy{Idle: time.Hour, Window: 5 * time.Minute}

// Prompt asks a player to confirm they are still active.
type Prompt struct {
	Queue    string
	Player   int64
	Deadline time.Time
}

// Removal records an entry dropped for inactivity.
type Removal struct {
	Queue  string
	Player int64
	Reason string
}

// SweepResult is what a sweep did.
type SweepResult struct {
	Prompts  []Prompt
	Removals []Removal
}

// Touch resets player's activity clock in every queue and clears any
// pending prompt. It reports whether the player was found.
func (m *Manager) Touch(player int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	found := false
	for _, id := range m.order {
		q := m.queues[id]
		if i := indexOf(q, player); i >= 0 {
			q.Entries[i].LastSeen = now
			q.Entries[i].PromptedAt = time.Time{}
			found = true
		}
	}
	return found
}

// Decline removes player from every queue after they answered "no" to a prompt.
func (m *Manager) Decline(player int64) []Removal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Removal
	for _, id := range m.order {
		q := m.queues[id]
		if i := indexOf(q, player); i >= 0 {
			removeAt(q, i)
			if g := guestOf(q, player); g >= 0 {
				removeAt(q, g)
			}
			out = append(out, Removal{Queue: id, Player: player, Reason: "declined"})
		}
	}
	return out
}

// Sweep prompts players idle longer than the policy and removes players
// whose prompt expired. Guests follow their host.
func (m *Manager) Sweep() SweepResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res SweepResult
	now := m.now()
	for _, id := range m.order {
		q := m.queues[id]
		var expired []int64
		for i := range q.Entries {
			e := &q.Entries[i]
			if e.IsGuest() {
				continue
			}
			switch {
			case !e.PromptedAt.IsZero() && now.Sub(e.PromptedAt) >= m.policy.Window:
				expired = append(expired, e.Player)
			case e.PromptedAt.IsZero() && now.Sub(e.LastSeen) >= m.policy.Idle:
				e.PromptedAt = now
				res.Prompts = append(res.Prompts, Prompt{Queue: id, Player: e.Player, Deadline: now.Add(m.policy.Window)})
			}
		}
		for _, p := range expired {
			removeAt(q, indexOf(q, p))
			if g := guestOf(q, p); g >= 0 {
				removeAt(q, g)
			}
			res.Removals = append(res.Removals, Removal{Queue: id, Player: p, Reason: "inactive"})
		}
	}
	if len(res.Prompts) > 0 || len(res.Removals) > 0 {
		m.log.Info("inactivity sweep", zap.Int("prompts", len(res.Prompts)), zap.Int("removed", len(res.Removals)))
	}
	return res
}
