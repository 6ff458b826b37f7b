package balance

import (
	"gonum.org/v1/gonum/stat/combin"
)

// BestSplit is the unpaired search: every teamSize-subset of players is
// tried as Team A and the search stops at the first zero-difference split.
func BestSplit(players []int64, mmr RatingFunc, teamSize int) (Result, error) {
	if teamSize <= 0 || len(players) != 2*teamSize {
		return Result{}, ErrTeamSize
	}
	if dup := duplicates(players); len(dup) > 0 {
		return Result{}, &ConstraintError{Err: ErrDuplicatePlayer, Players: dup}
	}

	ratings := make([]int, len(players))
	total := 0
	for i, p := range players {
		ratings[i] = mmr(p)
		total += ratings[i]
	}

	var (
		best     []int
		bestDiff = -1
	)
	for _, idx := range combin.Combinations(len(players), teamSize) {
		sumA := 0
		for _, i := range idx {
			sumA += ratings[i]
		}
		d := abs(2*sumA - total)
		if bestDiff < 0 || d < bestDiff {
			bestDiff = d
			best = idx
			if d == 0 {
				break
			}
		}
	}

	inA := make(map[int]bool, teamSize)
	for _, i := range best {
		inA[i] = true
	}
	var res Result
	for i, p := range players {
		if inA[i] {
			res.TeamA = append(res.TeamA, p)
		} else {
			res.TeamB = append(res.TeamB, p)
		}
	}
	res.Diff = bestDiff
	return canonical(res, mmr), nil
}
