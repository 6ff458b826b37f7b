// Package selection runs the protocols that turn a matched player set into
// two teams: the method vote, the balanced-teams reject window, the captains
// draft and free players pick.
package selection

import (
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

type serr string

func (e serr) Error() string { return string(e) }

var (
	ErrNotEligible     = serr("not eligible to vote")
	ErrClosed          = serr("selection is closed")
	ErrUnknownMethod   = serr("unknown team selection method")
	ErrNotCaptain      = serr("only a captain can do that")
	ErrNotYourTurn     = serr("not your turn to pick")
	ErrNotInPool       = serr("player already drafted or not in this match")
	ErrRosterFull      = serr("roster is full")
	ErrInfeasiblePick  = serr("pick leaves a host and guest unable to share a team")
	ErrNoPendingPick   = serr("no pick to confirm")
	ErrNothingToUndo   = serr("no pick to undo")
	ErrNotParticipant  = serr("not a participant")
	ErrNoSide          = serr("choose a team before locking in")
	ErrUnbalanced      = serr("teams are not the same size")
	ErrUnknownPlayer   = serr("player is not part of this match")
	ErrDuplicatePlayer = balance.ErrDuplicatePlayer
	ErrPairSplit       = balance.ErrPairSplit
)

// ConstraintError reports which constraint rejected a roster and who broke it.
type ConstraintError = balance.ConstraintError
