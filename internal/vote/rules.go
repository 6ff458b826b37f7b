package vote

import (
	"slices"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
)

// Tally is a point-in-time view of a ledger.
type Tally[O comparable] struct {
	Ballots []Ballot[O]
}

func (t Tally[O]) Total() int { return len(t.Ballots) }

// Count returns the number of votes for o.
func (t Tally[O]) Count(o O) int {
	n := 0
	for _, b := range t.Ballots {
		if b.Option == o {
			n++
		}
	}
	return n
}

// CountAtLeast counts votes for o cast by voters at level min or higher.
func (t Tally[O]) CountAtLeast(o O, min perm.Permission) int {
	n := 0
	for _, b := range t.Ballots {
		if b.Option == o && b.Level >= min {
			n++
		}
	}
	return n
}

// LevelTotal counts every vote cast by voters at level min or higher.
func (t Tally[O]) LevelTotal(min perm.Permission) int {
	n := 0
	for _, b := range t.Ballots {
		if b.Level >= min {
			n++
		}
	}
	return n
}

// Options returns the distinct options in first-cast order.
func (t Tally[O]) Options() []O {
	var out []O
	for _, b := range t.Ballots {
		if !slices.Contains(out, b.Option) {
			out = append(out, b.Option)
		}
	}
	return out
}

// Counts returns votes per option.
func (t Tally[O]) Counts() map[O]int {
	out := make(map[O]int)
	for _, b := range t.Ballots {
		out[b.Option]++
	}
	return out
}

// Rule inspects a tally and returns the winning option when satisfied.
type Rule[O comparable] func(Tally[O]) (O, bool)

func firstWhere[O comparable](t Tally[O], ok func(O) bool) (O, bool) {
	for _, o := range t.Options() {
		if ok(o) {
			return o, true
		}
	}
	var zero O
	return zero, false
}

// PairAtLevel is satisfied when two distinct voters at level min or higher
// chose the same option.
func PairAtLevel[O comparable](min perm.Permission) Rule[O] {
	return func(t Tally[O]) (O, bool) {
		return firstWhere(t, func(o O) bool { return t.CountAtLeast(o, min) >= 2 })
	}
}

// Majority is satisfied when one option holds a strict majority of
// participants, counting every eligible voter.
func Majority[O comparable](participants int) Rule[O] {
	need := participants/2 + 1
	return Threshold[O](need)
}

// Threshold is satisfied when one option reaches n votes.
func Threshold[O comparable](n int) Rule[O] {
	return func(t Tally[O]) (O, bool) {
		if n <= 0 {
			var zero O
			return zero, false
		}
		return firstWhere(t, func(o O) bool { return t.Count(o) >= n })
	}
}

// Unanimous is satisfied when every member of voters voted and all chose
// the same option. Votes from outside the set are ignored.
func Unanimous[O comparable](voters []int64) Rule[O] {
	return func(t Tally[O]) (O, bool) {
		var zero O
		if len(voters) == 0 {
			return zero, false
		}
		var (
			pick O
			seen int
		)
		for _, b := range t.Ballots {
			if !slices.Contains(voters, b.Voter) {
				continue
			}
			if seen > 0 && b.Option != pick {
				return zero, false
			}
			pick = b.Option
			seen++
		}
		if seen != len(voters) {
			return zero, false
		}
		return pick, true
	}
}
