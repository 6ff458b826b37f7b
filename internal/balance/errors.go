package balance

import (
	"fmt"
	"strings"
)

type berr string

func (e berr) Error() string { return string(e) }

var (
	ErrTeamSize        = berr("player count does not fill two teams")
	ErrDuplicatePlayer = berr("player listed twice")
	ErrPairSplit       = berr("pairing constraint cannot be honored")
	ErrNoPartition     = berr("no valid partition")
)

// ConstraintError names the constraint that failed and the players involved.
type ConstraintError struct {
	Err     error
	Players []int64
}

func (e *ConstraintError) Error() string {
	ids := make([]string, len(e.Players))
	for i, p := range e.Players {
		ids[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s: %s", e.Err, strings.Join(ids, ","))
}

func (e *ConstraintError) Unwrap() error { return e.Err }
