// Package events - types.go
package events

import "time"

// QueueUpdated is emitted after any change to a queue's membership or flags.
type QueueUpdated struct {
	Queue    string
	Players  []int64
	Capacity int
	Paused   bool
	Test     bool
}

// QueuePinged is emitted when someone pings the community to fill a queue.
type QueuePinged struct {
	Queue   string
	By      int64
	Missing int
}

// UnratedPlayerJoined asks staff to set a rating for Player.
type UnratedPlayerJoined struct {
	Queue  string
	Player int64
}

// InactivityPrompt asks Player to confirm they are still around before Deadline.
type InactivityPrompt struct {
	Queue    string
	Player   int64
	Deadline time.Time
}

// InactivityRemoved is emitted when an idle player is dropped from a queue.
type InactivityRemoved struct {
	Queue  string
	Player int64
	Reason string
}

// MatchFormed is emitted when a full queue drains into a new match.
type MatchFormed struct {
	MatchID string
	Queue   string
	Players []int64
}

// PregameEscalation reminds players who have not yet shown up.
type PregameEscalation struct {
	MatchID   string
	Pending   []int64
	Remaining time.Duration
}

// PlayerNoShow is emitted when a pregame gate times out.
type PlayerNoShow struct {
	MatchID  string
	Queue    string
	NoShows  []int64
	Released []int64
}

// VoteTallyChanged is emitted after every vote change.
type VoteTallyChanged struct {
	MatchID string
	Kind    string // "selection", "reject", "end"
	Counts  map[string]int
	Total   int
	Needed  int
}

// TeamsProposed opens the balanced-teams reject countdown.
type TeamsProposed struct {
	MatchID  string
	TeamA    []int64
	TeamB    []int64
	Diff     int
	Deadline time.Time
}

// TeamsRejected is emitted when proposed balanced teams are voted down.
type TeamsRejected struct {
	MatchID string
}

// DraftUpdated is emitted after each captains-draft or players-pick change.
type DraftUpdated struct {
	MatchID string
	Method  string
	TeamA   []int64
	TeamB   []int64
	Pool    []int64
	Turn    int64
	Pending int64
}

// SeriesStarted is emitted when final teams are set.
type SeriesStarted struct {
	MatchID  string
	Queue    string
	Label    string
	Method   string
	TeamA    []int64
	TeamB    []int64
	Map      string
	Gametype string
}

// GameRecorded is emitted for each appended game result.
type GameRecorded struct {
	MatchID string
	Game    int
	Winner  string
	ScoreA  int
	ScoreB  int
}

// PlayersSwapped is emitted after a mid-series swap.
type PlayersSwapped struct {
	MatchID string
	AToB    int64
	BToA    int64
}

// SeriesEnded is emitted once a series terminates.
type SeriesEnded struct {
	MatchID string
	Queue   string
	Label   string
	Winner  string // RED, BLUE or PENDING; TeamA is red
	ScoreA  int
	ScoreB  int
	Reason  string
	TeamA   []int64
	TeamB   []int64
}

// MatchCancelled is emitted after an admin tears a match down, or when the
// match could not form valid teams. Reason is set only in the latter case.
type MatchCancelled struct {
	MatchID string
	Queue   string
	By      int64
	Stage   string
	Reason  string
}

// LedgerWriteFailed is emitted when an outcome could not be recorded yet.
type LedgerWriteFailed struct {
	MatchID string
	Err     string
	Queued  bool
}
