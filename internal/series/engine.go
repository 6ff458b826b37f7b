// Package series tracks an in-progress best-of-N series: the append-only game
// list, end-series voting, automatic termination and mid-series swaps.
package series

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mitchellh/copystructure"
	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/vote"
)

// testerEndVotes is the number of tester votes that end a test series.
const testerEndVotes = 2

// Params starts a new series.
type Params struct {
	ID      string
	Queue   string
	Format  playlist.Format
	Number  int
	Test    bool
	Method  string
	Red     []int64
	Blue    []int64
	Testers []int64
	Pairs   []balance.Pair // host/guest pairs that must stay on one team
}

// Engine owns one series. All methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	s        Series
	endVotes *vote.Ledger[bool]
	now      func() time.Time
	log      *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }
func WithLogger(l *zap.Logger) Option       { return func(e *Engine) { e.log = l } }

func newEngine(s Series, opts []Option) *Engine {
	e := &Engine{s: s, endVotes: vote.NewLedger[bool](), now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// New starts a series with the given rosters.
func New(p Params, opts ...Option) *Engine {
	e := newEngine(Series{
		ID:      p.ID,
		Queue:   p.Queue,
		Format:  p.Format,
		Number:  p.Number,
		Test:    p.Test,
		Method:  p.Method,
		Red:     slices.Clone(p.Red),
		Blue:    slices.Clone(p.Blue),
		Testers: slices.Clone(p.Testers),
		Pairs:   slices.Clone(p.Pairs),
		Games:   []Game{},
	}, opts)
	e.s.StartedAt = e.now()
	return e
}

// Restore rebuilds an engine from a snapshot, pending end votes included.
func Restore(s Series, opts ...Option) (*Engine, error) {
	cp, err := deepCopy(s)
	if err != nil {
		return nil, err
	}
	e := newEngine(cp, opts)
	for _, v := range e.s.EndVotes {
		_, _ = e.endVotes.Cast(v.Voter, v.Level, true)
	}
	e.s.EndVotes = nil
	if e.s.Ended {
		e.endVotes.Freeze()
	}
	return e, nil
}

func deepCopy(s Series) (Series, error) {
	v, err := copystructure.Copy(s)
	if err != nil {
		return Series{}, fmt.Errorf("copy series: %w", err)
	}
	return v.(Series), nil
}

// Result describes the effect of a mutation.
type Result struct {
	Game    int
	Ended   bool
	Summary Series
}

// RecordGame appends a game result. Recording on an ended series is an
// invariant violation.
func (e *Engine) RecordGame(winner Side, pick playlist.MapPick) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Ended {
		e.log.Error("record on ended series", zap.String("series", e.s.ID))
		return Result{}, fmt.Errorf("%w: record game on %s: %w", ErrInvariant, e.s.ID, ErrEnded)
	}
	if !winner.Valid() {
		return Result{}, ErrInvalidSide
	}
	e.s.Games = append(e.s.Games, Game{Winner: winner, Map: pick.Map, Gametype: pick.Gametype, At: e.now()})
	res := Result{Game: len(e.s.Games)}
	red, blue := e.s.Score()
	e.log.Info("game recorded", zap.String("series", e.s.ID), zap.Int("game", res.Game),
		zap.String("winner", string(winner)), zap.Int("red", red), zap.Int("blue", blue))

	if e.thresholdReachedLocked() {
		e.finishLocked(EndThreshold)
		res.Ended = true
	}
	res.Summary = e.snapshotLocked()
	return res, nil
}

func (e *Engine) thresholdReachedLocked() bool {
	t := e.s.Format.WinThreshold
	if e.s.Test || t <= 0 {
		return false
	}
	red, blue := e.s.Score()
	return red >= t || blue >= t
}

func (e *Engine) eligibleLocked(voter int64, level perm.Permission) bool {
	if e.s.Test {
		return slices.Contains(e.s.Testers, voter)
	}
	return slices.Contains(e.s.Red, voter) || slices.Contains(e.s.Blue, voter) || level >= perm.Staff
}

func (e *Engine) endRulesLocked() []vote.Rule[bool] {
	if e.s.Test {
		return []vote.Rule[bool]{vote.Threshold[bool](testerEndVotes)}
	}
	need := e.s.Format.EndVotes
	if need <= 0 {
		need = (len(e.s.Red)+len(e.s.Blue))/2 + 1
	}
	staff := e.s.Format.StaffEndVote
	if staff <= 0 {
		staff = 2
	}
	return []vote.Rule[bool]{
		vote.Threshold[bool](need),
		func(t vote.Tally[bool]) (bool, bool) { return true, t.LevelTotal(perm.Staff) >= staff },
	}
}

// VoteEnd toggles voter's end-series vote. It reports whether the voter
// holds a vote afterwards and whether the series ended.
func (e *Engine) VoteEnd(voter int64, level perm.Permission) (bool, Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Ended {
		return false, Result{}, ErrEnded
	}
	if !e.eligibleLocked(voter, level) {
		return false, Result{}, ErrNotEligible
	}
	held, err := e.endVotes.Toggle(voter, level, true)
	if err != nil {
		return false, Result{}, ErrEnded
	}
	res := Result{Game: len(e.s.Games)}
	if _, ok := e.endVotes.Resolve(e.endRulesLocked()...); ok {
		e.finishLocked(EndVote)
		res.Ended = true
	}
	res.Summary = e.snapshotLocked()
	return held, res, nil
}

// EndVotes returns the vote count and the total needed.
func (e *Engine) EndVotes() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Test {
		return e.endVotes.Len(), testerEndVotes
	}
	need := e.s.Format.EndVotes
	if need <= 0 {
		need = (len(e.s.Red)+len(e.s.Blue))/2 + 1
	}
	return e.endVotes.Len(), need
}

// Swap exchanges a red player with a blue player. Games and votes are kept.
// Hosts and guests cannot be swapped since that would split the pair.
func (e *Engine) Swap(red, blue int64) (Swap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Ended {
		return Swap{}, ErrEnded
	}
	ri, bi := slices.Index(e.s.Red, red), slices.Index(e.s.Blue, blue)
	var off []int64
	if ri < 0 {
		off = append(off, red)
	}
	if bi < 0 {
		off = append(off, blue)
	}
	if len(off) > 0 {
		return Swap{}, &ConstraintError{Err: ErrNotOnTeam, Players: off}
	}
	for _, pr := range e.s.Pairs {
		if slices.Contains([]int64{red, blue}, pr.Host) || slices.Contains([]int64{red, blue}, pr.Guest) {
			return Swap{}, &ConstraintError{Err: ErrPairSplit, Players: []int64{pr.Host, pr.Guest}}
		}
	}
	e.s.Red[ri], e.s.Blue[bi] = blue, red
	sw := Swap{Game: len(e.s.Games) + 1, RedToBlue: red, BlueToRed: blue, At: e.now()}
	e.s.Swaps = append(e.s.Swaps, sw)
	e.log.Info("players swapped", zap.String("series", e.s.ID), zap.Int64("red_to_blue", red), zap.Int64("blue_to_red", blue))
	return sw, nil
}

// CorrectGame changes the winner of game n (1-based) and re-checks the
// win threshold.
func (e *Engine) CorrectGame(n int, winner Side, by int64) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Ended {
		return Result{}, ErrEnded
	}
	if !winner.Valid() {
		return Result{}, ErrInvalidSide
	}
	if n < 1 || n > len(e.s.Games) {
		return Result{}, ErrNoSuchGame
	}
	g := &e.s.Games[n-1]
	e.s.Corrections = append(e.s.Corrections, Correction{Game: n, From: g.Winner, To: winner, By: by, At: e.now()})
	g.Winner = winner
	res := Result{Game: n}
	if e.thresholdReachedLocked() {
		e.finishLocked(EndThreshold)
		res.Ended = true
	}
	res.Summary = e.snapshotLocked()
	return res, nil
}

// AdminEnd terminates the series without a vote.
func (e *Engine) AdminEnd(by int64) (Series, error) {
	e.log.Info("admin end", zap.String("series", e.ID()), zap.Int64("by", by))
	return e.End(EndAdmin)
}

// Abort ends the series as cancelled. Cancelled series are not reported.
func (e *Engine) Abort() (Series, error) { return e.End(EndCancelled) }

// End terminates the series with reason. Ending twice returns ErrEnded.
func (e *Engine) End(reason string) (Series, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.s.Ended {
		return Series{}, ErrEnded
	}
	e.finishLocked(reason)
	return e.snapshotLocked(), nil
}

func (e *Engine) finishLocked(reason string) {
	red, blue := e.s.Score()
	switch {
	case red > blue:
		e.s.Winner = Red
	case blue > red:
		e.s.Winner = Blue
	default:
		e.s.Winner = Pending
	}
	e.s.Ended = true
	e.s.EndedAt = e.now()
	e.s.EndReason = reason
	e.endVotes.Freeze()
	e.log.Info("series ended", zap.String("series", e.s.ID), zap.String("winner", string(e.s.Winner)),
		zap.Int("red", red), zap.Int("blue", blue), zap.String("reason", reason))
}

// Ended reports whether the series is terminal.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Ended
}

// ID returns the series ID.
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.ID
}

// Summary returns the score and winner so far.
func (e *Engine) Summary() (red, blue int, winner Side) {
	e.mu.Lock()
	defer e.mu.Unlock()
	red, blue = e.s.Score()
	return red, blue, e.s.Winner
}

// Snapshot returns a deep copy of the series.
func (e *Engine) Snapshot() Series {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Series {
	cp, err := deepCopy(e.s)
	if err != nil {
		// copystructure only fails on unsupported kinds, none of which Series has
		panic(err)
	}
	for _, b := range e.endVotes.Tally().Ballots {
		cp.EndVotes = append(cp.EndVotes, EndBallot{Voter: b.Voter, Level: b.Level})
	}
	return cp
}
