// Package playlist holds the match formats the bot runs and their rules.
package playlist

import (
	"fmt"

	"github.com/samber/lo"
)

// ID identifies a playlist (exp: "mlg_4v4").
type ID string

const (
	MLG4v4       ID = "mlg_4v4"
	TeamHardcore ID = "team_hardcore"
	DoubleTeam   ID = "double_team"
	HeadToHead   ID = "head_to_head"
)

// Selection says how teams are formed once players are fixed.
type Selection int

const (
	SelectByVote Selection = iota // team selection vote
	SelectAutoBalance
	SelectNone // 1v1
)

// Format is the read-only rule set of a playlist.
type Format struct {
	ID           ID
	Name         string
	Capacity     int
	TeamSize     int
	Selection    Selection
	Hidden       bool // player names hidden while queued
	ShowMap      bool // random map/gametype announced at match start
	WinThreshold int  // 0 disables automatic termination
	EndVotes     int  // total end-series votes needed
	StaffEndVote int  // staff/admin end votes needed
	Exclusive    bool // counts for cross-queue exclusivity
}

// Formats is the built-in playlist table.
var Formats = map[ID]Format{
	MLG4v4: {
		ID: MLG4v4, Name: "MLG 4v4", Capacity: 8, TeamSize: 4,
		Selection: SelectByVote, WinThreshold: 4, EndVotes: 5, StaffEndVote: 2, Exclusive: true,
	},
	TeamHardcore: {
		ID: TeamHardcore, Name: "Team Hardcore", Capacity: 8, TeamSize: 4,
		Selection: SelectAutoBalance, Hidden: true, ShowMap: true, EndVotes: 5, StaffEndVote: 2, Exclusive: true,
	},
	DoubleTeam: {
		ID: DoubleTeam, Name: "Double Team", Capacity: 4, TeamSize: 2,
		Selection: SelectAutoBalance, Hidden: true, ShowMap: true, EndVotes: 3, StaffEndVote: 2, Exclusive: true,
	},
	HeadToHead: {
		ID: HeadToHead, Name: "Head to Head", Capacity: 2, TeamSize: 1,
		Selection: SelectNone, Hidden: true, ShowMap: true, EndVotes: 1, StaffEndVote: 2, Exclusive: false,
	},
}

// Lookup returns the format for id.
func Lookup(id ID) (Format, error) {
	f, ok := Formats[id]
	if !ok {
		return Format{}, fmt.Errorf("unknown playlist %q", id)
	}
	return f, nil
}

// Validate checks the format is internally consistent.
func (f Format) Validate() error {
	switch {
	case f.TeamSize <= 0:
		return fmt.Errorf("playlist %s: team size must be positive", f.ID)
	case f.Capacity != 2*f.TeamSize:
		return fmt.Errorf("playlist %s: capacity %d does not fit two teams of %d", f.ID, f.Capacity, f.TeamSize)
	case f.EndVotes <= 0:
		return fmt.Errorf("playlist %s: end votes must be positive", f.ID)
	}
	return nil
}

// MapPick is a map and gametype to play.
type MapPick struct {
	Map      string
	Gametype string
}

var mlgMaps = []MapPick{
	{"Midship", "MLG CTF5"},
	{"Midship", "MLG Team Slayer"},
	{"Midship", "MLG Oddball"},
	{"Midship", "MLG Bomb"},
	{"Beaver Creek", "MLG Team Slayer"},
	{"Lockout", "MLG Team Slayer"},
	{"Lockout", "MLG Oddball"},
	{"Warlock", "MLG Team Slayer"},
	{"Warlock", "MLG CTF5"},
	{"Sanctuary", "MLG CTF3"},
	{"Sanctuary", "MLG Team Slayer"},
}

var duelMaps = []string{"Midship", "Lockout", "Sanctuary"}

// RandomMap picks a map/gametype for playlists that announce one.
func RandomMap(id ID) (MapPick, bool) {
	switch id {
	case HeadToHead:
		return MapPick{Map: lo.Sample(duelMaps), Gametype: "1v1 Slayer"}, true
	case TeamHardcore, DoubleTeam:
		return lo.Sample(mlgMaps), true
	}
	return MapPick{}, false
}
