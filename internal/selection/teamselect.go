package selection

import (
	"slices"
	"sync"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/vote"
)

// Method is how the two teams get formed.
type Method string

const (
	Balanced    Method = "balanced"
	Captains    Method = "captains"
	PlayersPick Method = "players_pick"
)

var Methods = []Method{Balanced, Captains, PlayersPick}

// Valid reports whether m is a known method.
func (m Method) Valid() bool { return slices.Contains(Methods, m) }

// TeamSelection is the method vote. Participants, staff and admins vote;
// resolution is checked after every change: an admin pair, then a staff
// pair, then a strict majority of the participant count. In test mode only
// the testers vote and they must agree unanimously.
type TeamSelection struct {
	mu           sync.Mutex
	participants []int64
	testers      []int64
	ledger       *vote.Ledger[Method]
}

// NewTeamSelection starts a vote. A non-empty testers list enables test mode.
func NewTeamSelection(participants, testers []int64) *TeamSelection {
	return &TeamSelection{
		participants: append([]int64(nil), participants...),
		testers:      append([]int64(nil), testers...),
		ledger:       vote.NewLedger[Method](),
	}
}

// TestMode reports whether the reduced tester quorum applies.
func (s *TeamSelection) TestMode() bool { return len(s.testers) > 0 }

// Eligible reports whether voter may vote.
func (s *TeamSelection) Eligible(voter int64, level perm.Permission) bool {
	if s.TestMode() {
		return slices.Contains(s.testers, voter)
	}
	return slices.Contains(s.participants, voter) || level >= perm.Staff
}

func (s *TeamSelection) rules() []vote.Rule[Method] {
	if s.TestMode() {
		return []vote.Rule[Method]{vote.Unanimous[Method](s.testers)}
	}
	return []vote.Rule[Method]{
		vote.PairAtLevel[Method](perm.Admin),
		vote.PairAtLevel[Method](perm.Staff),
		vote.Majority[Method](len(s.participants)),
	}
}

// Vote records voter's choice, replacing any earlier one, and returns the
// resolved method once a rule is satisfied.
func (s *TeamSelection) Vote(voter int64, level perm.Permission, m Method) (Method, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !m.Valid() {
		return "", false, ErrUnknownMethod
	}
	if !s.Eligible(voter, level) {
		return "", false, ErrNotEligible
	}
	if _, err := s.ledger.Cast(voter, level, m); err != nil {
		return "", false, ErrClosed
	}
	got, ok := s.ledger.Resolve(s.rules()...)
	return got, ok, nil
}

// Retract withdraws voter's choice.
func (s *TeamSelection) Retract(voter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ledger.Retract(voter); err != nil {
		return ErrClosed
	}
	return nil
}

// Resolved returns the winning method, if any.
func (s *TeamSelection) Resolved() (Method, bool) {
	return s.ledger.Outcome()
}

// Tally returns votes per method and the total.
func (s *TeamSelection) Tally() (map[string]int, int) {
	t := s.ledger.Tally()
	out := map[string]int{}
	for m, n := range t.Counts() {
		out[string(m)] = n
	}
	return out, t.Total()
}

// Needed is the participant vote count that resolves without a staff pair.
func (s *TeamSelection) Needed() int {
	if s.TestMode() {
		return len(s.testers)
	}
	return len(s.participants)/2 + 1
}

// Reopen discards every vote and returns to awaiting votes, used after
// proposed balanced teams were rejected.
func (s *TeamSelection) Reopen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Reset()
}

// Ballots returns voter -> method for persistence.
func (s *TeamSelection) Ballots() map[int64]Method { return s.ledger.Ballots() }
