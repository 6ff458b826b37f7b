// Package vote implements the toggle-vote ledger shared by team selection,
// end-series voting and balanced-teams reject voting.
package vote

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
)

type verr string

func (e verr) Error() string { return string(e) }

var ErrFrozen = verr("vote is closed")

// Ballot is one voter's current choice.
type Ballot[O comparable] struct {
	Voter  int64
	Option O
	Level  perm.Permission
	At     time.Time
}

// Ledger maps voter -> latest choice. A voter's latest vote supersedes the
// previous one. Once a rule resolves the ledger it is frozen.
type Ledger[O comparable] struct {
	mu       sync.Mutex
	ballots  map[int64]Ballot[O]
	order    []int64
	frozen   bool
	outcome  O
	resolved bool
	now      func() time.Time
}

func NewLedger[O comparable]() *Ledger[O] {
	return &Ledger[O]{
		ballots: make(map[int64]Ballot[O]),
		now:     time.Now,
	}
}

// Cast records or replaces voter's vote. It reports whether the ledger changed.
func (l *Ledger[O]) Cast(voter int64, level perm.Permission, o O) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return false, ErrFrozen
	}
	return l.castLocked(voter, level, o), nil
}

func (l *Ledger[O]) castLocked(voter int64, level perm.Permission, o O) bool {
	prev, ok := l.ballots[voter]
	if ok && prev.Option == o && prev.Level == level {
		return false
	}
	if !ok {
		l.order = append(l.order, voter)
	}
	l.ballots[voter] = Ballot[O]{Voter: voter, Option: o, Level: level, At: l.now()}
	return true
}

// Retract removes voter's vote. It reports whether a vote was removed.
func (l *Ledger[O]) Retract(voter int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return false, ErrFrozen
	}
	return l.retractLocked(voter), nil
}

func (l *Ledger[O]) retractLocked(voter int64) bool {
	if _, ok := l.ballots[voter]; !ok {
		return false
	}
	delete(l.ballots, voter)
	l.order = lo.Without(l.order, voter)
	return true
}

// Toggle casts o for voter, or retracts it when voter already chose o.
// It returns true when the voter holds a vote afterwards.
func (l *Ledger[O]) Toggle(voter int64, level perm.Permission, o O) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return false, ErrFrozen
	}
	if prev, ok := l.ballots[voter]; ok && prev.Option == o {
		l.retractLocked(voter)
		return false, nil
	}
	l.castLocked(voter, level, o)
	return true, nil
}

// Get returns voter's current ballot.
func (l *Ledger[O]) Get(voter int64) (Ballot[O], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.ballots[voter]
	return b, ok
}

func (l *Ledger[O]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ballots)
}

// Tally returns an immutable view of the current ballots in first-cast order.
func (l *Ledger[O]) Tally() Tally[O] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tallyLocked()
}

func (l *Ledger[O]) tallyLocked() Tally[O] {
	out := make([]Ballot[O], 0, len(l.order))
	for _, v := range l.order {
		out = append(out, l.ballots[v])
	}
	return Tally[O]{Ballots: out}
}

// Resolve evaluates rules in order and freezes the ledger on the first
// satisfied one.
func (l *Ledger[O]) Resolve(rules ...Rule[O]) (O, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.resolved {
		return l.outcome, true
	}
	t := l.tallyLocked()
	for _, r := range rules {
		if o, ok := r(t); ok {
			l.outcome, l.resolved, l.frozen = o, true, true
			return o, true
		}
	}
	var zero O
	return zero, false
}

// Freeze closes the ledger without an outcome.
func (l *Ledger[O]) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

func (l *Ledger[O]) Frozen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen
}

// Outcome returns the resolved option, if any.
func (l *Ledger[O]) Outcome() (O, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcome, l.resolved
}

// Reset clears every ballot and reopens the ledger.
func (l *Ledger[O]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	var zero O
	l.ballots = make(map[int64]Ballot[O])
	l.order = nil
	l.frozen, l.resolved, l.outcome = false, false, zero
}

// Ballots returns a copy of the current ballots keyed by voter.
func (l *Ledger[O]) Ballots() map[int64]O {
	l.mu.Lock()
	defer l.mu.Unlock()
	return lo.MapValues(l.ballots, func(b Ballot[O], _ int64) O { return b.Option })
}
