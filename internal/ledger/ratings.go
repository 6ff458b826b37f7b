package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type cached struct {
	mmr   int
	rated bool
	at    time.Time
}

// Ratings caches ledger lookups for a short TTL and collapses concurrent
// lookups of the same player into one call.
type Ratings struct {
	ledger Ledger
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[int64]cached
}

func NewRatings(l Ledger, ttl time.Duration, log *zap.Logger) *Ratings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ratings{ledger: l, ttl: ttl, now: time.Now, log: log, cache: map[int64]cached{}}
}

// Get returns the player's rating. On a lookup failure mmr is still
// DefaultRating so balancing never blocks on the ledger.
func (r *Ratings) Get(ctx context.Context, player int64) (mmr int, rated bool, err error) {
	r.mu.RLock()
	c, ok := r.cache[player]
	r.mu.RUnlock()
	if ok && r.now().Sub(c.at) < r.ttl {
		return c.mmr, c.rated, nil
	}

	v, err, _ := r.group.Do(strconv.FormatInt(player, 10), func() (any, error) {
		mmr, rated, err := r.ledger.Rating(ctx, player)
		if err != nil {
			return nil, err
		}
		if !rated {
			mmr = DefaultRating
		}
		c := cached{mmr: mmr, rated: rated, at: r.now()}
		r.mu.Lock()
		r.cache[player] = c
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		r.log.Warn("rating lookup failed", zap.Int64("player", player), zap.Error(err))
		return DefaultRating, false, err
	}
	c = v.(cached)
	return c.mmr, c.rated, nil
}

// Lookup fetches ratings for players concurrently. unrated lists players
// the ledger answered for without a rating, in input order.
func (r *Ratings) Lookup(ctx context.Context, players []int64) (mmr map[int64]int, unrated []int64) {
	vals := make([]int, len(players))
	missing := make([]bool, len(players))
	var g errgroup.Group
	g.SetLimit(8)
	for i, p := range players {
		g.Go(func() error {
			v, rated, err := r.Get(ctx, p)
			vals[i], missing[i] = v, err == nil && !rated
			return nil
		})
	}
	_ = g.Wait()

	mmr = make(map[int64]int, len(players))
	for i, p := range players {
		mmr[p] = vals[i]
		if missing[i] {
			unrated = append(unrated, p)
		}
	}
	return mmr, unrated
}

// Invalidate drops cached ratings, e.g. after an outcome is recorded.
func (r *Ratings) Invalidate(players ...int64) {
	r.mu.Lock()
	for _, p := range players {
		delete(r.cache, p)
	}
	r.mu.Unlock()
}
