package matchmaking

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
)

const persistTimeout = 5 * time.Second

func (c *Coordinator) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := c.Persist(ctx); err != nil {
		c.log.Error("persist state", zap.Error(err))
	}
}

// State captures queues, running series and counters. Matches that have
// not reached the series stage are not captured; their players are freed
// on restore.
func (c *Coordinator) State() store.State {
	c.mu.Lock()
	ms := lo.Values(c.matches)
	counters := store.Counters{Series: lo.Assign(c.counters.Series), Test: lo.Assign(c.counters.Test)}
	c.mu.Unlock()

	var running []series.Series
	for _, m := range ms {
		m.mu.Lock()
		if m.engine != nil && !m.engine.Ended() {
			running = append(running, m.engine.Snapshot())
		}
		m.mu.Unlock()
	}
	slices.SortFunc(running, func(a, b series.Series) int { return a.StartedAt.Compare(b.StartedAt) })
	return store.State{
		Queues:   c.deps.Queues.Snapshot(),
		Series:   running,
		Counters: counters,
		SavedAt:  c.now(),
	}
}

// Persist writes the current state.
func (c *Coordinator) Persist(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return c.deps.Snapshots.Save(ctx, c.State())
}

// Restore loads the last saved state: queue contents, running series and
// counters. Players locked into matches that were still forming are released.
func (c *Coordinator) Restore(ctx context.Context) error {
	st, ok, err := c.deps.Snapshots.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.counters = st.Counters
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if missing := c.deps.Queues.Restore(st.Queues); len(missing) > 0 {
		c.log.Warn("saved queues no longer configured", zap.Strings("queues", missing))
	}
	restored := map[string]bool{}
	for _, s := range st.Series {
		if err := c.restoreSeries(s); err != nil {
			c.log.Error("restore series", zap.String("match", s.ID), zap.Error(err))
			continue
		}
		restored[s.ID] = true
	}
	for _, id := range lo.Uniq(lo.Values(st.Queues.InMatch)) {
		if !restored[id] {
			freed := c.deps.Queues.Release(id)
			c.log.Info("released unrecoverable match", zap.String("match", id), zap.Int64s("players", freed))
		}
	}
	for _, q := range c.deps.Queues.Queues() {
		c.publishQueue(q)
	}
	c.log.Info("state restored", zap.Int("series", len(restored)), zap.Time("saved_at", st.SavedAt))
	return nil
}

func (c *Coordinator) restoreSeries(s series.Series) error {
	eng, err := series.Restore(s, series.WithLogger(c.log), series.WithClock(c.now))
	if err != nil {
		return err
	}
	players := s.Participants()
	entries := lo.Map(players, func(p int64, _ int) queue.Entry { return queue.Entry{Player: p} })
	ctx, cancel := context.WithCancel(c.root)
	m := &match{
		id:      s.ID,
		queue:   s.Queue,
		format:  s.Format,
		test:    s.Test,
		number:  s.Number,
		entries: entries,
		players: players,
		pairs:   s.Pairs,
		stage:   StageSeries,
		ctx:     ctx,
		cancel:  cancel,
		engine:  eng,
	}
	c.deps.Queues.MarkInMatch(m.id, players)
	c.mu.Lock()
	c.matches[m.id] = m
	c.mu.Unlock()
	events.Publish(c.deps.Bus, events.SeriesStarted{
		MatchID: m.id, Queue: m.queue, Label: s.Label(), Method: s.Method, TeamA: slices.Clone(s.Red), TeamB: slices.Clone(s.Blue),
	})
	return nil
}
