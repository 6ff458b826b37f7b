// Package balance splits a matched player set into two equal teams with the
// smallest possible MMR difference. Host/guest pairs are never split.
package balance

import (
	"github.com/elliotchance/pie/v2"
)

// Pair binds a guest to their host; both always land on the same team.
type Pair struct {
	Host  int64 `json:"host"`
	Guest int64 `json:"guest"`
}

// Result is a finished partition. TeamA always has the higher (or equal)
// average MMR.
type Result struct {
	TeamA []int64
	TeamB []int64
	Diff  int
}

// RatingFunc returns a player's MMR.
type RatingFunc = func(int64) int

type unit struct {
	members []int64
	mmr     int
}

// frame is one node of the branch-and-assign search.
type frame struct {
	idx     int
	slotsA  int
	slotsB  int
	sumA    int
	sumB    int
	assignA []bool
}

// Balance enumerates every assignment of units (single players or host/guest
// pairs) to two teams of teamSize slots and returns the first one found with
// the minimum difference. Units are explored in input order, Team A first.
func Balance(players []int64, mmr RatingFunc, pairs []Pair, teamSize int) (Result, error) {
	if teamSize <= 0 || len(players) != 2*teamSize {
		return Result{}, ErrTeamSize
	}
	if dup := duplicates(players); len(dup) > 0 {
		return Result{}, &ConstraintError{Err: ErrDuplicatePlayer, Players: dup}
	}
	units, err := buildUnits(players, mmr, pairs)
	if err != nil {
		return Result{}, err
	}

	var (
		best     []bool
		bestDiff = -1
		stack    = []frame{{assignA: make([]bool, 0, len(units))}}
	)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.idx == len(units) {
			if f.slotsA != teamSize || f.slotsB != teamSize {
				continue
			}
			d := abs(f.sumA - f.sumB)
			if bestDiff < 0 || d < bestDiff {
				bestDiff = d
				best = append([]bool(nil), f.assignA...)
			}
			continue
		}

		u := units[f.idx]
		size := len(u.members)
		// push B first so A is explored first
		if f.slotsB+size <= teamSize {
			stack = append(stack, frame{
				idx: f.idx + 1, slotsA: f.slotsA, slotsB: f.slotsB + size,
				sumA: f.sumA, sumB: f.sumB + u.mmr,
				assignA: append(append([]bool(nil), f.assignA...), false),
			})
		}
		if f.slotsA+size <= teamSize {
			stack = append(stack, frame{
				idx: f.idx + 1, slotsA: f.slotsA + size, slotsB: f.slotsB,
				sumA: f.sumA + u.mmr, sumB: f.sumB,
				assignA: append(append([]bool(nil), f.assignA...), true),
			})
		}
	}
	if best == nil {
		return Result{}, &ConstraintError{Err: ErrNoPartition, Players: players}
	}

	var res Result
	for i, u := range units {
		if best[i] {
			res.TeamA = append(res.TeamA, u.members...)
		} else {
			res.TeamB = append(res.TeamB, u.members...)
		}
	}
	res.Diff = bestDiff
	return canonical(res, mmr), nil
}

func buildUnits(players []int64, mmr RatingFunc, pairs []Pair) ([]unit, error) {
	partner := make(map[int64]int64, 2*len(pairs))
	for _, p := range pairs {
		if p.Host == p.Guest {
			return nil, &ConstraintError{Err: ErrPairSplit, Players: []int64{p.Host}}
		}
		inH, inG := pie.Contains(players, p.Host), pie.Contains(players, p.Guest)
		if !inH && !inG {
			continue
		}
		if inH != inG {
			return nil, &ConstraintError{Err: ErrPairSplit, Players: []int64{p.Host, p.Guest}}
		}
		if _, dup := partner[p.Host]; dup {
			return nil, &ConstraintError{Err: ErrPairSplit, Players: []int64{p.Host}}
		}
		if _, dup := partner[p.Guest]; dup {
			return nil, &ConstraintError{Err: ErrPairSplit, Players: []int64{p.Guest}}
		}
		partner[p.Host] = p.Guest
		partner[p.Guest] = p.Host
	}

	placed := make(map[int64]bool, len(players))
	units := make([]unit, 0, len(players))
	for _, id := range players {
		if placed[id] {
			continue
		}
		members := []int64{id}
		if mate, ok := partner[id]; ok {
			members = append(members, mate)
		}
		for _, m := range members {
			placed[m] = true
		}
		units = append(units, unit{members: members, mmr: pie.Sum(pie.Map(members, mmr))})
	}
	return units, nil
}

// canonical labels the higher-average team as Team A. Teams are equal in
// size so comparing sums is enough.
func canonical(r Result, mmr RatingFunc) Result {
	if Sum(r.TeamB, mmr) > Sum(r.TeamA, mmr) {
		r.TeamA, r.TeamB = r.TeamB, r.TeamA
	}
	return r
}

// Sum totals the MMR of a roster.
func Sum(team []int64, mmr RatingFunc) int {
	return pie.Sum(pie.Map(team, mmr))
}

// Average returns the integer mean MMR of a roster, or 0 when empty.
func Average(team []int64, mmr RatingFunc) int {
	if len(team) == 0 {
		return 0
	}
	return Sum(team, mmr) / len(team)
}

func duplicates(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if seen[id] {
			out = append(out, id)
		}
		seen[id] = true
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
