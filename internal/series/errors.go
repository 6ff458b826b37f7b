package series

import (
	"strconv"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

type serr string

func (e serr) Error() string { return string(e) }

var (
	// ErrInvariant marks caller sequencing bugs such as recording a game on
	// an ended series.
	ErrInvariant   = serr("series invariant violated")
	ErrEnded       = serr("series has ended")
	ErrInvalidSide = serr("winner must be RED or BLUE")
	ErrNotEligible = serr("not eligible to vote")
	ErrNotOnTeam   = serr("player is not on that team")
	ErrNoSuchGame  = serr("no such game")
)

// ErrPairSplit is returned when a roster change would separate a host and
// their guest.
var ErrPairSplit = balance.ErrPairSplit

// ConstraintError reports the rejected roster change.
type ConstraintError = balance.ConstraintError

func itoa(n int) string { return strconv.Itoa(n) }
