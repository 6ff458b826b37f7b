// internal/app/commands.go
package app

import (
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
)

func playlistChoices() []*discordgo.ApplicationCommandOptionChoice {
	ids := make([]string, 0, len(playlist.Formats))
	for id := range playlist.Formats {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(ids))
	for _, id := range ids {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: playlist.Formats[playlist.ID(id)].Name, Value: id})
	}
	return out
}

func playlistOpt() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "playlist", Description: "Playlist",
		Required: true, Choices: playlistChoices(),
	}
}

func userOpt(name, desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionUser, Name: name, Description: desc, Required: required}
}

func playerOpt() *discordgo.ApplicationCommandOption {
	return userOpt("player", "A player in the match (defaults to you)", false)
}

func winnerOpt() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "winner", Description: "Winning team", Required: true,
		Choices: []*discordgo.ApplicationCommandOptionChoice{{Name: "Red", Value: "red"}, {Name: "Blue", Value: "blue"}},
	}
}

func cmd(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: name, Description: desc, Type: discordgo.ChatApplicationCommand, Options: opts}
}

var commands = []*discordgo.ApplicationCommand{
	cmd("join", "Join a playlist queue", playlistOpt()),
	cmd("leave", "Leave a playlist queue", playlistOpt()),
	cmd("guest", "Bring a guest into a queue you are in", playlistOpt()),
	cmd("unguest", "Remove your guest from a queue", playlistOpt()),
	cmd("ping", "Ping everyone to fill a queue", playlistOpt()),
	cmd("queue", "Show every queue"),
	cmd("matches", "List live matches"),
	cmd("history", "Recent series of a playlist", playlistOpt()),

	cmd("pause", "Pause a queue (staff)", playlistOpt()),
	cmd("resume", "Resume a queue (staff)", playlistOpt()),
	cmd("clear", "Empty a queue (staff)", playlistOpt()),
	cmd("kick", "Remove a player from a queue (staff)", playlistOpt(), userOpt("user", "Player to remove", true)),
	cmd("testmode", "Toggle test mode (admin)", playlistOpt(), &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "On or off", Required: true,
	}),
	cmd("rating", "Set a player's rating (staff)", userOpt("user", "Player", true),
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "mmr", Description: "MMR", Required: true},
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "rank", Description: "Rank", Required: true},
	),

	cmd("cancel", "Cancel a match at any stage (staff)", playerOpt()),
	cmd("record", "Record a game result (staff)", winnerOpt(), playerOpt(),
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "map", Description: "Map played"},
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "gametype", Description: "Gametype played"},
	),
	cmd("correct", "Correct a recorded game (admin)",
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "game", Description: "Game number", Required: true},
		winnerOpt(), playerOpt(),
	),
	cmd("swap", "Swap a red and a blue player (staff)", userOpt("red", "Red player", true), userOpt("blue", "Blue player", true)),
	cmd("endseries", "End a series now (admin)", playerOpt()),
	cmd("setteams", "Set teams directly (admin)",
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "red", Description: "Red players as mentions", Required: true},
		&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "blue", Description: "Blue players as mentions", Required: true},
	),
}

// RegisterCommands creates (or updates) guild-level commands.
func RegisterCommands(s *discordgo.Session, appID, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(appID, guildID, commands)
	return err
}
