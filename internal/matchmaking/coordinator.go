// Package matchmaking ties the queue, selection and series state machines
// together. It owns every forming and running match, publishes state changes
// on the event bus and persists after each mutation.
package matchmaking

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ledger"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/metrics"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/pregame"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
)

// Config holds the timing knobs of a match.
type Config struct {
	Pregame      pregame.Config
	Countdown    time.Duration
	PingCooldown time.Duration
	LedgerWait   time.Duration // bound on a single outcome report, retries included
	Testers      []int64       // only these vote in test matches
}

var DefaultConfig = Config{
	Pregame:      pregame.DefaultConfig,
	Countdown:    15 * time.Second,
	PingCooldown: 15 * time.Minute,
	LedgerWait:   30 * time.Second,
}

// Deps are the collaborators of a Coordinator. Bus, Queues, Ratings,
// Recorder and Snapshots are required.
type Deps struct {
	Queues    *queue.Manager
	Bus       *events.Bus
	Ratings   *ledger.Ratings
	Recorder  *ledger.Recorder
	Snapshots *store.Snapshots
	Presence  pregame.Presence
	Metrics   metrics.Metrics
	Log       *zap.Logger
	Rand      *rand.Rand
}

// Coordinator drives matches from queue drain to series end.
type Coordinator struct {
	deps Deps
	cfg  Config
	log  *zap.Logger
	now  func() time.Time

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	matches  map[string]*match
	counters store.Counters
	pings    map[string]*rate.Limiter
	rngMu    sync.Mutex

	persistMu sync.Mutex
}

func New(deps Deps, cfg Config) *Coordinator {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultConfig.Countdown
	}
	if cfg.PingCooldown <= 0 {
		cfg.PingCooldown = DefaultConfig.PingCooldown
	}
	if cfg.LedgerWait <= 0 {
		cfg.LedgerWait = DefaultConfig.LedgerWait
	}
	root, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		deps:     deps,
		cfg:      cfg,
		log:      deps.Log,
		now:      time.Now,
		root:     root,
		cancel:   cancel,
		matches:  map[string]*match{},
		counters: store.NewCounters(),
		pings:    map[string]*rate.Limiter{},
	}
}

// Close stops every background task and waits for pending ledger writes.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until background tasks started so far have finished. Tests
// use it to observe the effect of asynchronous steps.
func (c *Coordinator) Wait() { c.wg.Wait() }

func (c *Coordinator) goBackground(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Coordinator) publishQueue(q *queue.Queue) {
	if q == nil {
		return
	}
	c.deps.Metrics.QueueSize(q.ID, len(q.Entries))
	events.Publish(c.deps.Bus, events.QueueUpdated{
		Queue:    q.ID,
		Players:  q.Players(),
		Capacity: q.Capacity(),
		Paused:   q.Paused,
		Test:     q.Test,
	})
}

func (c *Coordinator) publishQueueID(id string) {
	q, err := c.deps.Queues.GetQueue(id)
	if err == nil {
		c.publishQueue(q)
	}
}

// Join queues player and, when that fills the queue, starts a match.
func (c *Coordinator) Join(ctx context.Context, queueID string, player int64, name string) (*queue.Queue, error) {
	res, err := c.deps.Queues.Join(queueID, player, name)
	if err != nil {
		return nil, err
	}
	c.publishQueue(res.Queue)
	if !res.Queue.Test {
		if _, rated, err := c.deps.Ratings.Get(ctx, player); err == nil && !rated {
			events.Publish(c.deps.Bus, events.UnratedPlayerJoined{Queue: queueID, Player: player})
		}
	}
	if res.Drained != nil {
		c.OnDrain(res.Drained)
	}
	c.persist()
	return res.Queue, nil
}

// Leave removes player and their guest from the queue.
func (c *Coordinator) Leave(queueID string, player int64) (*queue.Queue, error) {
	q, err := c.deps.Queues.Leave(queueID, player)
	if err != nil {
		return nil, err
	}
	c.publishQueue(q)
	c.persist()
	return q, nil
}

// AddGuest queues a guest for host rated at half the host's rating.
func (c *Coordinator) AddGuest(ctx context.Context, queueID string, host int64, hostName string) (queue.Entry, error) {
	mmr, _, _ := c.deps.Ratings.Get(ctx, host)
	g, res, err := c.deps.Queues.AddGuest(queueID, host, hostName, mmr)
	if err != nil {
		return queue.Entry{}, err
	}
	c.publishQueue(res.Queue)
	if res.Drained != nil {
		c.OnDrain(res.Drained)
	}
	c.persist()
	return g, nil
}

func (c *Coordinator) RemoveGuest(queueID string, host int64) error {
	q, err := c.deps.Queues.RemoveGuest(queueID, host)
	if err != nil {
		return err
	}
	c.publishQueue(q)
	c.persist()
	return nil
}

func requireLevel(level, need perm.Permission) error {
	if !level.AtLeast(need) {
		return ErrForbidden
	}
	return nil
}

// Pause or resume a queue. Staff only.
func (c *Coordinator) SetPaused(queueID string, level perm.Permission, paused bool) error {
	if err := requireLevel(level, perm.Staff); err != nil {
		return err
	}
	op := c.deps.Queues.Resume
	if paused {
		op = c.deps.Queues.Pause
	}
	q, err := op(queueID)
	if err != nil {
		return err
	}
	c.publishQueue(q)
	c.persist()
	return nil
}

// SetTest toggles test mode on a queue. Admin only.
func (c *Coordinator) SetTest(queueID string, level perm.Permission, on bool) error {
	if err := requireLevel(level, perm.Admin); err != nil {
		return err
	}
	q, err := c.deps.Queues.SetTest(queueID, on)
	if err != nil {
		return err
	}
	c.publishQueue(q)
	c.persist()
	return nil
}

// Clear empties a queue. Staff only.
func (c *Coordinator) Clear(queueID string, level perm.Permission) ([]int64, error) {
	if err := requireLevel(level, perm.Staff); err != nil {
		return nil, err
	}
	removed, err := c.deps.Queues.Clear(queueID)
	if err != nil {
		return nil, err
	}
	c.log.Info("queue cleared", zap.String("queue", queueID), zap.Int64s("removed", removed))
	c.publishQueueID(queueID)
	c.persist()
	return removed, nil
}

// Kick removes a player from a queue. Staff only.
func (c *Coordinator) Kick(queueID string, level perm.Permission, player int64) error {
	if err := requireLevel(level, perm.Staff); err != nil {
		return err
	}
	q, err := c.deps.Queues.Kick(queueID, player)
	if err != nil {
		return err
	}
	c.publishQueue(q)
	c.persist()
	return nil
}

// Ping announces that queueID needs players. Each queue may be pinged once
// per cooldown.
func (c *Coordinator) Ping(queueID string, by int64) error {
	q, err := c.deps.Queues.GetQueue(queueID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	lim, ok := c.pings[queueID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.cfg.PingCooldown), 1)
		c.pings[queueID] = lim
	}
	c.mu.Unlock()
	if !lim.AllowN(c.now(), 1) {
		return ErrPingCooldown
	}
	events.Publish(c.deps.Bus, events.QueuePinged{Queue: queueID, By: by, Missing: q.Capacity() - len(q.Entries)})
	return nil
}

// Touch records activity for player in every queue they wait in.
func (c *Coordinator) Touch(player int64) bool {
	return c.deps.Queues.Touch(player)
}

// Decline drops player from every queue after they answered an inactivity
// prompt with "no".
func (c *Coordinator) Decline(player int64) {
	rm := c.deps.Queues.Decline(player)
	c.publishRemovals(rm)
	if len(rm) > 0 {
		c.persist()
	}
}

func (c *Coordinator) publishRemovals(rm []queue.Removal) {
	touched := map[string]bool{}
	for _, r := range rm {
		events.Publish(c.deps.Bus, events.InactivityRemoved{Queue: r.Queue, Player: r.Player, Reason: r.Reason})
		touched[r.Queue] = true
	}
	for id := range touched {
		c.publishQueueID(id)
	}
}

// Sweep runs one inactivity pass.
func (c *Coordinator) Sweep() queue.SweepResult {
	res := c.deps.Queues.Sweep()
	for _, p := range res.Prompts {
		events.Publish(c.deps.Bus, events.InactivityPrompt{Queue: p.Queue, Player: p.Player, Deadline: p.Deadline})
	}
	c.publishRemovals(res.Removals)
	if len(res.Prompts)+len(res.Removals) > 0 {
		c.persist()
	}
	return res
}

// Reconcile retries parked ledger writes.
func (c *Coordinator) Reconcile(ctx context.Context) (int, error) {
	n, err := c.deps.Recorder.Reconcile(ctx)
	if pending, perr := c.deps.Recorder.Pending(ctx); perr == nil {
		c.deps.Metrics.OutboxPending(pending)
	}
	return n, err
}

func (c *Coordinator) withRand(fn func(*rand.Rand)) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	fn(c.deps.Rand)
}
