// Package pregame holds the readiness barrier between a queue drain and team
// selection: every matched player must show up at the rendezvous point
// before the deadline or the match is aborted.
package pregame

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type perr string

func (e perr) Error() string { return string(e) }

var ErrAlreadyRunning = perr("gate already running")

// Presence reports whether a player is at the rendezvous point.
type Presence interface {
	Present(ctx context.Context, player int64) (bool, error)
}

// PresenceFunc adapts a function to Presence.
type PresenceFunc func(ctx context.Context, player int64) (bool, error)

func (f PresenceFunc) Present(ctx context.Context, player int64) (bool, error) { return f(ctx, player) }

// Config bounds the wait.
type Config struct {
	Timeout  time.Duration
	Interval time.Duration
}

var DefaultConfig = Config{Timeout: 600 * time.Second, Interval: 5 * time.Second}

// Outcome is how the gate closed.
type Outcome struct {
	Ready     bool
	Cancelled bool
	Confirmed []int64
	NoShows   []int64
}

// Gate waits for every player to confirm presence.
type Gate struct {
	mu        sync.Mutex
	players   []int64
	confirmed map[int64]bool
	ready     chan struct{}
	cfg       Config
	presence  Presence
	escalate  func(pending []int64, remaining time.Duration)
	log       *zap.Logger
	running   atomic.Bool
}

// Option customizes a Gate.
type Option func(*Gate)

// WithEscalation is called once at the halfway point with the players
// still missing.
func WithEscalation(fn func(pending []int64, remaining time.Duration)) Option {
	return func(g *Gate) { g.escalate = fn }
}

func WithLogger(l *zap.Logger) Option { return func(g *Gate) { g.log = l } }

// New builds a gate for players. A nil presence means players only confirm
// through Confirm.
func New(players []int64, presence Presence, cfg Config, opts ...Option) *Gate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig.Interval
	}
	g := &Gate{
		players:   slices.Clone(players),
		confirmed: make(map[int64]bool, len(players)),
		ready:     make(chan struct{}),
		cfg:       cfg,
		presence:  presence,
		escalate:  func([]int64, time.Duration) {},
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	if len(g.players) == 0 {
		close(g.ready)
	}
	return g
}

// Confirm marks player present. It reports whether the player belongs to
// the gate. Readiness is re-evaluated immediately.
func (g *Gate) Confirm(player int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !slices.Contains(g.players, player) {
		return false
	}
	g.confirmLocked(player)
	return true
}

func (g *Gate) confirmLocked(player int64) {
	if g.confirmed[player] {
		return
	}
	g.confirmed[player] = true
	if len(g.confirmed) == len(g.players) {
		close(g.ready)
	}
}

// Pending returns players who have not confirmed, in match order.
func (g *Gate) Pending() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingLocked()
}

func (g *Gate) pendingLocked() []int64 {
	var out []int64
	for _, p := range g.players {
		if !g.confirmed[p] {
			out = append(out, p)
		}
	}
	return out
}

func (g *Gate) outcomeLocked() Outcome {
	var o Outcome
	for _, p := range g.players {
		if g.confirmed[p] {
			o.Confirmed = append(o.Confirmed, p)
		} else {
			o.NoShows = append(o.NoShows, p)
		}
	}
	o.Ready = len(o.NoShows) == 0
	return o
}

// poll asks Presence about every pending player concurrently.
func (g *Gate) poll(ctx context.Context) {
	if g.presence == nil {
		return
	}
	pending := g.Pending()
	eg, ctx := errgroup.WithContext(ctx)
	for _, p := range pending {
		eg.Go(func() error {
			ok, err := g.presence.Present(ctx, p)
			if err != nil {
				g.log.Warn("presence check failed", zap.Int64("player", p), zap.Error(err))
				return nil
			}
			if ok {
				g.Confirm(p)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

// Run blocks until every player confirmed, the timeout elapsed or ctx was
// cancelled. A confirmation that lands before the deadline is processed
// always wins over the deadline.
func (g *Gate) Run(ctx context.Context) (Outcome, error) {
	if g.running.Swap(true) {
		return Outcome{}, ErrAlreadyRunning
	}
	defer g.running.Store(false)

	deadline := time.NewTimer(g.cfg.Timeout)
	defer deadline.Stop()
	half := time.NewTimer(g.cfg.Timeout / 2)
	defer half.Stop()
	tick := time.NewTicker(g.cfg.Interval)
	defer tick.Stop()

	g.poll(ctx)
	for {
		select {
		case <-g.ready:
			g.mu.Lock()
			defer g.mu.Unlock()
			return g.outcomeLocked(), nil

		case <-tick.C:
			g.poll(ctx)

		case <-half.C:
			if pending := g.Pending(); len(pending) > 0 {
				g.log.Info("pregame escalation", zap.Int64s("pending", pending))
				g.escalate(pending, g.cfg.Timeout-g.cfg.Timeout/2)
			}

		case <-deadline.C:
			g.mu.Lock()
			defer g.mu.Unlock()
			o := g.outcomeLocked()
			if !o.Ready {
				g.log.Info("pregame timed out", zap.Int64s("no_shows", o.NoShows))
			}
			return o, nil

		case <-ctx.Done():
			g.mu.Lock()
			defer g.mu.Unlock()
			o := g.outcomeLocked()
			o.Ready = false
			o.Cancelled = true
			return o, ctx.Err()
		}
	}
}
