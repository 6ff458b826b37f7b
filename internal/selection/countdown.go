package selection

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/vote"
)

// Verdict is how a balanced-teams countdown ended.
type Verdict int

const (
	Accepted Verdict = iota + 1
	Rejected
)

func (v Verdict) String() string {
	if v == Rejected {
		return "rejected"
	}
	return "accepted"
}

// DefaultCountdown is the reject window for proposed balanced teams.
const DefaultCountdown = 15 * time.Second

// Countdown is the grace window after balanced teams are proposed. Reject
// votes reaching a participant majority, or two staff rejects, discard the
// teams. Otherwise the teams become final when the window elapses.
type Countdown struct {
	mu           sync.Mutex
	participants []int64
	ledger       *vote.Ledger[bool]
	deadline     time.Time
	verdict      Verdict
	done         chan struct{}
}

// NewCountdown opens a reject window of length window starting at now.
func NewCountdown(participants []int64, window time.Duration, now time.Time) *Countdown {
	return &Countdown{
		participants: append([]int64(nil), participants...),
		ledger:       vote.NewLedger[bool](),
		deadline:     now.Add(window),
		done:         make(chan struct{}),
	}
}

func (c *Countdown) Deadline() time.Time { return c.deadline }

// Reject toggles voter's reject vote. It reports whether the voter now holds
// a reject vote and whether the teams were rejected.
func (c *Countdown) Reject(voter int64, level perm.Permission) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verdict != 0 {
		return false, c.verdict == Rejected, ErrClosed
	}
	if !slices.Contains(c.participants, voter) && level < perm.Staff {
		return false, false, ErrNotEligible
	}
	held, err := c.ledger.Toggle(voter, level, true)
	if err != nil {
		return false, false, ErrClosed
	}
	if _, ok := c.ledger.Resolve(
		vote.Majority[bool](len(c.participants)),
		vote.PairAtLevel[bool](perm.Staff),
	); ok {
		c.finishLocked(Rejected)
		return held, true, nil
	}
	return held, false, nil
}

// Rejects returns the current reject vote count.
func (c *Countdown) Rejects() int { return c.ledger.Len() }

// Needed is the reject count that discards the teams.
func (c *Countdown) Needed() int { return len(c.participants)/2 + 1 }

func (c *Countdown) finishLocked(v Verdict) {
	if c.verdict != 0 {
		return
	}
	c.verdict = v
	c.ledger.Freeze()
	close(c.done)
}

// Wait blocks until the teams are rejected, the window elapses or ctx is
// cancelled. A rejection that lands before the timer is processed wins.
func (c *Countdown) Wait(ctx context.Context) (Verdict, error) {
	t := time.NewTimer(time.Until(c.deadline))
	defer t.Stop()
	select {
	case <-c.done:
	case <-t.C:
		c.mu.Lock()
		c.finishLocked(Accepted)
		c.mu.Unlock()
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verdict, nil
}
