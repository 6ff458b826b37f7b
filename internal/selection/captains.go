package selection

import (
	"math/rand"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

type pick struct {
	side    int
	players []int64
	poolIdx []int
}

// Draft is the captains draft. Two captains alternate picks from the pool;
// every pick is proposed then confirmed, and the last confirmed pick can be
// undone. A host and their guest are drafted together.
type Draft struct {
	mu       sync.Mutex
	teamSize int
	captains [2]int64
	teams    [2][]int64
	pool     []int64
	partner  map[int64]int64
	turn     int
	pending  []int64
	history  []pick
}

// NewDraft picks two captains uniformly at random among non-guest players
// and seats them (with any guest they host).
func NewDraft(players []int64, pairs []balance.Pair, teamSize int, rng *rand.Rand) (*Draft, error) {
	hosts := lo.Filter(players, func(p int64, _ int) bool { return !isGuest(p, pairs) })
	if len(hosts) < 2 {
		return nil, ErrUnknownPlayer
	}
	perm := rng.Perm(len(hosts))
	return NewDraftWithCaptains(players, pairs, teamSize, hosts[perm[0]], hosts[perm[1]])
}

// NewDraftWithCaptains starts a draft with fixed captains; a picks first.
func NewDraftWithCaptains(players []int64, pairs []balance.Pair, teamSize int, a, b int64) (*Draft, error) {
	if len(players) != 2*teamSize {
		return nil, ErrUnbalanced
	}
	if !slices.Contains(players, a) || !slices.Contains(players, b) || a == b {
		return nil, ErrUnknownPlayer
	}
	d := &Draft{
		teamSize: teamSize,
		captains: [2]int64{a, b},
		partner:  partners(pairs),
	}
	for side, c := range d.captains {
		d.teams[side] = d.unit(c)
	}
	seated := append(append([]int64(nil), d.teams[0]...), d.teams[1]...)
	d.pool = lo.Filter(players, func(p int64, _ int) bool { return !slices.Contains(seated, p) })
	if len(d.teams[0]) > teamSize || len(d.teams[1]) > teamSize {
		return nil, ErrRosterFull
	}
	return d, nil
}

func partners(pairs []balance.Pair) map[int64]int64 {
	out := make(map[int64]int64, 2*len(pairs))
	for _, p := range pairs {
		out[p.Host] = p.Guest
		out[p.Guest] = p.Host
	}
	return out
}

func isGuest(p int64, pairs []balance.Pair) bool {
	return lo.ContainsBy(pairs, func(x balance.Pair) bool { return x.Guest == p })
}

// unit returns p followed by their pairing partner, if any.
func (d *Draft) unit(p int64) []int64 {
	mate, ok := d.partner[p]
	if !ok {
		return []int64{p}
	}
	return []int64{p, mate}
}

func (d *Draft) sideOf(captain int64) int {
	for i, c := range d.captains {
		if c == captain {
			return i
		}
	}
	return -1
}

// Propose stages a pick for the captain whose turn it is. A new proposal
// replaces an unconfirmed one.
func (d *Draft) Propose(captain, player int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	side := d.sideOf(captain)
	if side < 0 {
		return ErrNotCaptain
	}
	if d.completeLocked() {
		return ErrClosed
	}
	if side != d.turn {
		return ErrNotYourTurn
	}
	if !slices.Contains(d.pool, player) {
		return ErrNotInPool
	}
	u := d.unit(player)
	if len(d.teams[side])+len(u) > d.teamSize {
		return ErrRosterFull
	}
	if !d.feasibleAfter(side, u) {
		return &ConstraintError{Err: ErrInfeasiblePick, Players: u}
	}
	d.pending = u
	return nil
}

// feasibleAfter reports whether the remaining pool still fits both rosters
// once u joins side.
func (d *Draft) feasibleAfter(side int, u []int64) bool {
	slots := [2]int{d.teamSize - len(d.teams[0]), d.teamSize - len(d.teams[1])}
	slots[side] -= len(u)
	singles, pairs := 0, 0
	seen := map[int64]bool{}
	for _, p := range d.pool {
		if slices.Contains(u, p) || seen[p] {
			continue
		}
		if mate, ok := d.partner[p]; ok {
			seen[mate] = true
			pairs++
		} else {
			singles++
		}
		seen[p] = true
	}
	for k := 0; k <= pairs; k++ {
		a, b := slots[0]-2*k, slots[1]-2*(pairs-k)
		if a >= 0 && b >= 0 && a+b == singles {
			return true
		}
	}
	return false
}

// Confirm commits the captain's staged pick and passes the turn.
func (d *Draft) Confirm(captain int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	side := d.sideOf(captain)
	if side < 0 {
		return ErrNotCaptain
	}
	if side != d.turn || d.pending == nil {
		return ErrNoPendingPick
	}
	p := pick{side: side, players: d.pending}
	for _, id := range d.pending {
		p.poolIdx = append(p.poolIdx, slices.Index(d.pool, id))
	}
	d.pool = lo.Without(d.pool, d.pending...)
	d.teams[side] = append(d.teams[side], d.pending...)
	d.history = append(d.history, p)
	d.pending = nil
	d.advanceLocked(side)
	return nil
}

func (d *Draft) advanceLocked(side int) {
	other := 1 - side
	if len(d.teams[other]) < d.teamSize {
		d.turn = other
	} else {
		d.turn = side
	}
}

// Cancel drops the captain's staged pick.
func (d *Draft) Cancel(captain int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sideOf(captain) < 0 {
		return ErrNotCaptain
	}
	if d.pending == nil || d.sideOf(captain) != d.turn {
		return ErrNoPendingPick
	}
	d.pending = nil
	return nil
}

// Undo reverts the most recent confirmed pick. Either captain may undo.
func (d *Draft) Undo(captain int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sideOf(captain) < 0 {
		return ErrNotCaptain
	}
	if len(d.history) == 0 {
		return ErrNothingToUndo
	}
	last := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]

	team := d.teams[last.side]
	d.teams[last.side] = team[:len(team)-len(last.players)]
	order := make([]int, len(last.players))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return last.poolIdx[a] - last.poolIdx[b] })
	for _, i := range order {
		d.pool = slices.Insert(d.pool, min(last.poolIdx[i], len(d.pool)), last.players[i])
	}
	d.turn = last.side
	d.pending = nil
	return nil
}

func (d *Draft) completeLocked() bool { return len(d.pool) == 0 }

// Complete reports whether every player has been drafted.
func (d *Draft) Complete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completeLocked()
}

// DraftState is a read-only view of the draft.
type DraftState struct {
	Captains [2]int64
	TeamA    []int64
	TeamB    []int64
	Pool     []int64
	Turn     int64
	Pending  []int64
}

// State returns a copy of the draft.
func (d *Draft) State() DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DraftState{
		Captains: d.captains,
		TeamA:    slices.Clone(d.teams[0]),
		TeamB:    slices.Clone(d.teams[1]),
		Pool:     slices.Clone(d.pool),
		Turn:     d.captains[d.turn],
		Pending:  slices.Clone(d.pending),
	}
}

// Teams returns both rosters once the draft is complete.
func (d *Draft) Teams() ([]int64, []int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.completeLocked() {
		return nil, nil, false
	}
	return slices.Clone(d.teams[0]), slices.Clone(d.teams[1]), true
}
