package selection

import (
	"slices"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

// ValidateTeams checks a submitted pair of rosters before any roster is
// touched: equal sizes of teamSize, no player on both teams, the union equal
// to players, and every host with their guest.
func ValidateTeams(players, a, b []int64, pairs []balance.Pair, teamSize int) error {
	if len(a) != teamSize || len(b) != teamSize {
		return &ConstraintError{Err: ErrUnbalanced}
	}
	seen := map[int64]int{}
	var dup []int64
	for side, team := range [][]int64{a, b} {
		for _, p := range team {
			if _, ok := seen[p]; ok {
				dup = append(dup, p)
			}
			seen[p] = side
		}
	}
	if len(dup) > 0 {
		return &ConstraintError{Err: ErrDuplicatePlayer, Players: dup}
	}
	var unknown []int64
	for p := range seen {
		if !slices.Contains(players, p) {
			unknown = append(unknown, p)
		}
	}
	for _, p := range players {
		if _, ok := seen[p]; !ok {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return &ConstraintError{Err: ErrUnknownPlayer, Players: unknown}
	}
	for _, pr := range pairs {
		host, okHost := seen[pr.Host]
		guest, okGuest := seen[pr.Guest]
		if !okHost && !okGuest {
			continue
		}
		if okHost != okGuest || host != guest {
			return &ConstraintError{Err: ErrPairSplit, Players: []int64{pr.Host, pr.Guest}}
		}
	}
	return nil
}
