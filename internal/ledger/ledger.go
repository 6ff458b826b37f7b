// Package ledger talks to the external stats/rank system of record. The core
// only reads ratings and reports raw series outcomes; rank math lives there.
package ledger

import (
	"context"
	"sync"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

// DefaultRating is used for players the ledger has never rated.
const DefaultRating = 500

type lerr string

func (e lerr) Error() string { return string(e) }

var (
	ErrUnavailable = lerr("ledger unavailable")
	ErrQueued      = lerr("outcome queued for reconciliation")
)

// Ledger is the external stats/rank collaborator.
type Ledger interface {
	// Rating returns the player's MMR; ok is false for unrated players.
	Rating(ctx context.Context, player int64) (mmr int, ok bool, err error)
	Rank(ctx context.Context, player int64) (int, error)
	// RecordOutcome appends a finished series. Key makes retries idempotent.
	RecordOutcome(ctx context.Context, key string, s series.Series) error
}

// Memory is an in-process Ledger for tests and offline runs.
type Memory struct {
	mu       sync.Mutex
	ratings  map[int64]int
	ranks    map[int64]int
	recorded map[string]series.Series
	order    []string
	failures int
}

func NewMemory() *Memory {
	return &Memory{
		ratings:  map[int64]int{},
		ranks:    map[int64]int{},
		recorded: map[string]series.Series{},
	}
}

// SetRating stores mmr and rank for player.
func (m *Memory) SetRating(player int64, mmr, rank int) {
	m.mu.Lock()
	m.ratings[player], m.ranks[player] = mmr, rank
	m.mu.Unlock()
}

// FailNext makes the next n calls fail with ErrUnavailable.
func (m *Memory) FailNext(n int) {
	m.mu.Lock()
	m.failures = n
	m.mu.Unlock()
}

func (m *Memory) failLocked() bool {
	if m.failures > 0 {
		m.failures--
		return true
	}
	return false
}

func (m *Memory) Rating(_ context.Context, player int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLocked() {
		return 0, false, ErrUnavailable
	}
	r, ok := m.ratings[player]
	if !ok {
		return DefaultRating, false, nil
	}
	return r, true, nil
}

func (m *Memory) Rank(_ context.Context, player int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLocked() {
		return 0, ErrUnavailable
	}
	if r, ok := m.ranks[player]; ok {
		return r, nil
	}
	return 1, nil
}

func (m *Memory) RecordOutcome(_ context.Context, key string, s series.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLocked() {
		return ErrUnavailable
	}
	if _, dup := m.recorded[key]; dup {
		return nil
	}
	m.recorded[key] = s
	m.order = append(m.order, key)
	return nil
}

// Recorded returns the stored outcomes in write order.
func (m *Memory) Recorded() []series.Series {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]series.Series, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.recorded[k])
	}
	return out
}
