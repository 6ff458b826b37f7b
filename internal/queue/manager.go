package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
)

// Manager owns every queue. One mutex serializes all mutations so a join,
// the drain it triggers and the exclusivity purge are a single transaction.
type Manager struct {
	mu       sync.Mutex
	queues   map[string]*Queue
	order    []string
	exempt   map[[2]string]bool
	inMatch  map[int64]string // player -> match ID
	guestSeq int64
	policy   SweepPolicy
	now      func() time.Time
	newID    func() string
	log      *zap.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// WithSweepPolicy sets the inactivity thresholds.
func WithSweepPolicy(p SweepPolicy) Option { return func(m *Manager) { m.policy = p } }

// WithMatchIDs overrides match ID generation.
func WithMatchIDs(gen func() string) Option { return func(m *Manager) { m.newID = gen } }

// manager of queues
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		queues:  make(map[string]*Queue),
		exempt:  make(map[[2]string]bool),
		inMatch: make(map[int64]string),
		policy:  DefaultSweepPolicy,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// CreateQueue registers a queue for format under id.
func (m *Manager) CreateQueue(id string, f playlist.Format) (*Queue, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.queues[id]; exists {
		return nil, ErrExists
	}
	q := &Queue{
		ID:        id,
		Name:      f.Name,
		Format:    f,
		Entries:   []Entry{},
		CreatedAt: m.now(),
	}
	m.queues[id] = q
	m.order = append(m.order, id)
	return snapshot(q), nil
}

// Exempt lets a player sit in both queues at once.
func (m *Manager) Exempt(a, b string) {
	m.mu.Lock()
	m.exempt[pairKey(a, b)] = true
	m.mu.Unlock()
}

// JoinResult is the queue state after a successful join. Drained is set
// when the join filled the queue.
type JoinResult struct {
	Queue   *Queue
	Drained *Drained
}

// Join appends player to the queue and drains it if that filled it.
func (m *Manager) Join(queueID string, player int64, name string) (JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queueID]
	if !ok {
		return JoinResult{}, ErrNotFound
	}
	if err := m.admissibleLocked(q, player); err != nil {
		return JoinResult{}, err
	}
	if len(q.Entries) >= q.Capacity() {
		return JoinResult{}, ErrQueueFull
	}

	now := m.now()
	q.Entries = append(q.Entries, Entry{Player: player, Name: name, JoinedAt: now, LastSeen: now})
	m.log.Debug("queue join", zap.String("queue", q.ID), zap.Int64("player", player),
		zap.Int("size", len(q.Entries)), zap.Int("capacity", q.Capacity()))

	d, err := m.drainLocked(q)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Queue: snapshot(q), Drained: d}, nil
}

func (m *Manager) admissibleLocked(q *Queue, player int64) error {
	if q.Paused {
		return ErrQueueSuspended
	}
	if _, busy := m.inMatch[player]; busy {
		return ErrAlreadyInActiveMatch
	}
	if indexOf(q, player) >= 0 {
		return ErrAlreadyQueued
	}
	if other, clash := m.queuedElsewhere(q, player); clash {
		return fmt.Errorf("%w: %s", ErrAlreadyQueuedElsewhere, other.Name)
	}
	return nil
}

// Leave removes player (and any guest they host) from the queue.
func (m *Manager) Leave(queueID string, player int64) (*Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queueID]
	if !ok {
		return nil, ErrNotFound
	}
	if _, locked := m.inMatch[player]; locked {
		return nil, ErrLocked
	}
	i := indexOf(q, player)
	if i < 0 {
		return nil, ErrNotQueued
	}
	removeAt(q, i)
	if g := guestOf(q, player); g >= 0 {
		removeAt(q, g)
	}
	return snapshot(q), nil
}

// DrainIfFull drains q when it is exactly at capacity.
func (m *Manager) DrainIfFull(queueID string) (*Drained, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queueID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.drainLocked(q)
}

// drainLocked empties a full queue into a new match and locks its players.
// Caller must hold the mutex.
func (m *Manager) drainLocked(q *Queue) (*Drained, error) {
	if len(q.Entries) != q.Capacity() {
		return nil, nil
	}
	for _, e := range q.Entries {
		if id, dup := m.inMatch[e.Player]; dup {
			m.log.Error("double drain", zap.String("queue", q.ID), zap.Int64("player", e.Player), zap.String("match", id))
			return nil, fmt.Errorf("%w: player %d already locked in match %s", ErrInvariant, e.Player, id)
		}
	}

	d := &Drained{
		MatchID: m.newID(),
		Queue:   q.ID,
		Format:  q.Format,
		Test:    q.Test,
		Entries: append([]Entry(nil), q.Entries...),
	}
	q.Entries = []Entry{}
	players := d.Players()
	for _, p := range players {
		m.inMatch[p] = d.MatchID
	}
	changed := m.purgeElsewhere(q.ID, players)

	m.log.Info("queue drained", zap.String("queue", q.ID), zap.String("match", d.MatchID),
		zap.Int64s("players", players), zap.Strings("purged", changed))
	return d, nil
}

// Release unlocks every player of matchID so they may queue again.
func (m *Manager) Release(matchID string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int64
	for p, id := range m.inMatch {
		if id == matchID {
			delete(m.inMatch, p)
			out = append(out, p)
		}
	}
	return out
}

// MarkInMatch locks players into matchID, used when restoring state.
func (m *Manager) MarkInMatch(matchID string, players []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range players {
		m.inMatch[p] = matchID
	}
}

// InMatch returns the match a player is locked into.
func (m *Manager) InMatch(player int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.inMatch[player]
	return id, ok
}

// get a queue state
func (m *Manager) GetQueue(queueID string) (*Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, exists := m.queues[queueID]
	if !exists {
		return nil, ErrNotFound
	}
	return snapshot(q), nil
}

// Queues returns snapshots of every queue in creation order.
func (m *Manager) Queues() []*Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Queue, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, snapshot(m.queues[id]))
	}
	return out
}

// QueueOf returns the queue a waiting player is in.
func (m *Manager) QueueOf(player int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		if indexOf(m.queues[id], player) >= 0 {
			return id, true
		}
	}
	return "", false
}

func (m *Manager) mutate(queueID string, fn func(q *Queue) error) (*Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[queueID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(q); err != nil {
		return nil, err
	}
	return snapshot(q), nil
}

// Pause stops the queue from accepting joins.
func (m *Manager) Pause(queueID string) (*Queue, error) {
	return m.mutate(queueID, func(q *Queue) error { q.Paused = true; return nil })
}

// Resume reopens a paused queue.
func (m *Manager) Resume(queueID string) (*Queue, error) {
	return m.mutate(queueID, func(q *Queue) error { q.Paused = false; return nil })
}

// SetTest toggles test mode.
func (m *Manager) SetTest(queueID string, on bool) (*Queue, error) {
	return m.mutate(queueID, func(q *Queue) error { q.Test = on; return nil })
}

// Clear empties a queue and returns who was removed.
func (m *Manager) Clear(queueID string) ([]int64, error) {
	var removed []int64
	_, err := m.mutate(queueID, func(q *Queue) error {
		removed = q.Players()
		q.Entries = []Entry{}
		return nil
	})
	return removed, err
}

// Kick removes player regardless of lock state of other queues.
func (m *Manager) Kick(queueID string, player int64) (*Queue, error) {
	return m.mutate(queueID, func(q *Queue) error {
		i := indexOf(q, player)
		if i < 0 {
			return ErrNotQueued
		}
		removeAt(q, i)
		if g := guestOf(q, player); g >= 0 {
			removeAt(q, g)
		}
		return nil
	})
}

// AddGuest queues a synthetic guest for host rated at half hostMMR.
func (m *Manager) AddGuest(queueID string, host int64, hostName string, hostMMR int) (Entry, JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[queueID]
	if !ok {
		return Entry{}, JoinResult{}, ErrNotFound
	}
	// a guest on a one-player team would face their host
	if q.Format.TeamSize < 2 {
		return Entry{}, JoinResult{}, ErrGuestNotAllowed
	}
	if indexOf(q, host) < 0 {
		return Entry{}, JoinResult{}, ErrNotQueued
	}
	if guestOf(q, host) >= 0 {
		return Entry{}, JoinResult{}, ErrGuestExists
	}
	if q.Paused {
		return Entry{}, JoinResult{}, ErrQueueSuspended
	}
	if len(q.Entries) >= q.Capacity() {
		return Entry{}, JoinResult{}, ErrQueueFull
	}

	m.guestSeq++
	now := m.now()
	g := Entry{
		Player:   -m.guestSeq,
		Name:     hostName + "'s Guest",
		JoinedAt: now,
		LastSeen: now,
		Host:     host,
		GuestMMR: hostMMR / 2,
	}
	q.Entries = append(q.Entries, g)
	m.log.Info("guest added", zap.String("queue", q.ID), zap.Int64("host", host), zap.Int("mmr", g.GuestMMR))

	d, err := m.drainLocked(q)
	if err != nil {
		return Entry{}, JoinResult{}, err
	}
	return g, JoinResult{Queue: snapshot(q), Drained: d}, nil
}

// RemoveGuest drops host's guest from the queue.
func (m *Manager) RemoveGuest(queueID string, host int64) (*Queue, error) {
	return m.mutate(queueID, func(q *Queue) error {
		g := guestOf(q, host)
		if g < 0 {
			return ErrNoGuest
		}
		removeAt(q, g)
		return nil
	})
}
