package series

import (
	"time"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
)

// Side names a team. Red is the higher-seeded team.
type Side string

const (
	Red     Side = "RED"
	Blue    Side = "BLUE"
	Pending Side = "PENDING" // tied at termination; needs manual resolution
)

func (s Side) Valid() bool { return s == Red || s == Blue }

// Game is one recorded result.
type Game struct {
	Winner   Side      `json:"winner"`
	Map      string    `json:"map,omitempty"`
	Gametype string    `json:"gametype,omitempty"`
	At       time.Time `json:"at"`
}

// Swap is a mid-series roster exchange.
type Swap struct {
	Game      int       `json:"game"`
	RedToBlue int64     `json:"red_to_blue"`
	BlueToRed int64     `json:"blue_to_red"`
	At        time.Time `json:"at"`
}

// Correction is an audited change of a recorded game's winner.
type Correction struct {
	Game int       `json:"game"`
	From Side      `json:"from"`
	To   Side      `json:"to"`
	By   int64     `json:"by"`
	At   time.Time `json:"at"`
}

// EndBallot is a pending end-series vote.
type EndBallot struct {
	Voter int64           `json:"voter"`
	Level perm.Permission `json:"level"`
}

// End reasons.
const (
	EndThreshold = "threshold"
	EndVote      = "vote"
	EndAdmin     = "admin"
	EndCancelled = "cancelled"
)

// Series is the full persisted record of a match series.
type Series struct {
	ID          string          `json:"id"`
	Queue       string          `json:"queue"`
	Format      playlist.Format `json:"format"`
	Number      int             `json:"number"`
	Test        bool            `json:"test"`
	Method      string          `json:"method"`
	Red         []int64         `json:"red"`
	Blue        []int64         `json:"blue"`
	Testers     []int64         `json:"testers,omitempty"`
	Pairs       []balance.Pair  `json:"pairs,omitempty"`
	Games       []Game          `json:"games"`
	Swaps       []Swap          `json:"swaps,omitempty"`
	Corrections []Correction    `json:"corrections,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     time.Time       `json:"ended_at,omitempty"`
	Ended       bool            `json:"ended"`
	Winner      Side            `json:"winner,omitempty"`
	EndReason   string          `json:"end_reason,omitempty"`
	EndVotes    []EndBallot     `json:"end_votes,omitempty"`
}

// Label is the display name, "Series N" or "Test N".
func (s *Series) Label() string {
	if s.Test {
		return "Test " + itoa(s.Number)
	}
	return "Series " + itoa(s.Number)
}

// Score counts game wins per side.
func (s *Series) Score() (red, blue int) {
	for _, g := range s.Games {
		switch g.Winner {
		case Red:
			red++
		case Blue:
			blue++
		}
	}
	return red, blue
}

// Participants returns both rosters, red first.
func (s *Series) Participants() []int64 {
	return append(append([]int64(nil), s.Red...), s.Blue...)
}
