package selection

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

// Side is a team bucket.
type Side int

const (
	NoSide Side = iota
	SideA
	SideB
)

// Pick is free self-selection: participants move between buckets as often as
// they like and lock in. When everyone is locked in the buckets must be the
// same size, otherwise all lock-ins are cleared and they try again. Guests
// follow their host and never vote.
type Pick struct {
	mu       sync.Mutex
	teamSize int
	players  []int64
	partner  map[int64]int64
	guests   map[int64]bool
	side     map[int64]Side
	locked   map[int64]bool
	done     bool
}

// NewPick starts a players pick.
func NewPick(players []int64, pairs []balance.Pair, teamSize int) *Pick {
	p := &Pick{
		teamSize: teamSize,
		players:  slices.Clone(players),
		partner:  partners(pairs),
		guests:   map[int64]bool{},
		side:     map[int64]Side{},
		locked:   map[int64]bool{},
	}
	for _, pr := range pairs {
		p.guests[pr.Guest] = true
	}
	return p
}

func (p *Pick) voters() []int64 {
	return lo.Filter(p.players, func(id int64, _ int) bool { return !p.guests[id] })
}

// Choose moves player (and their guest) into side.
func (p *Pick) Choose(player int64, side Side) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return ErrClosed
	}
	if !slices.Contains(p.players, player) || p.guests[player] {
		return ErrNotParticipant
	}
	if side != SideA && side != SideB {
		return ErrNoSide
	}
	p.side[player] = side
	if mate, ok := p.partner[player]; ok {
		p.side[mate] = side
	}
	return nil
}

// PickOutcome is the result of a lock-in.
type PickOutcome struct {
	Done  bool // balanced and final
	Reset bool // everyone locked in but unbalanced; lock-ins cleared
}

// LockIn records player's lock-in and checks for completion.
func (p *Pick) LockIn(player int64) (PickOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return PickOutcome{Done: true}, ErrClosed
	}
	if !slices.Contains(p.players, player) || p.guests[player] {
		return PickOutcome{}, ErrNotParticipant
	}
	if p.side[player] == NoSide {
		return PickOutcome{}, ErrNoSide
	}
	p.locked[player] = true

	for _, v := range p.voters() {
		if !p.locked[v] {
			return PickOutcome{}, nil
		}
	}
	a, b := p.teamsLocked()
	if len(a) != p.teamSize || len(b) != p.teamSize {
		p.locked = map[int64]bool{}
		return PickOutcome{Reset: true}, nil
	}
	p.done = true
	return PickOutcome{Done: true}, nil
}

// Unlock withdraws player's lock-in.
func (p *Pick) Unlock(player int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return ErrClosed
	}
	delete(p.locked, player)
	return nil
}

func (p *Pick) teamsLocked() ([]int64, []int64) {
	var a, b []int64
	for _, id := range p.players {
		switch p.side[id] {
		case SideA:
			a = append(a, id)
		case SideB:
			b = append(b, id)
		}
	}
	return a, b
}

// Teams returns the current buckets and whether the pick is final.
func (p *Pick) Teams() ([]int64, []int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, b := p.teamsLocked()
	return a, b, p.done
}

// LockedIn returns how many voters are locked in, out of how many.
func (p *Pick) LockedIn() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locked), len(p.voters())
}
