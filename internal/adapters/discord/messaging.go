package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

const ephemeralFlag = discordgo.MessageFlagsEphemeral

// SendEphemeral posts an ephemeral message only visible to the user who interacted.
func SendEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   ephemeralFlag,
		},
	})
	if err != nil {
		return fmt.Errorf("send ephemeral: %w", err)
	}
	return nil
}

// SendEphemeralEmbed responds with an ephemeral embed.
func SendEphemeralEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, emb *discordgo.MessageEmbed) error {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{emb},
			Flags:  ephemeralFlag,
		},
	})
	if err != nil {
		return fmt.Errorf("send ephemeral embed: %w", err)
	}
	return nil
}

// UserOf extracts the effective user from an interaction (guild or DM).
func UserOf(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// SafeName returns the member's display name, falling back to the username.
func SafeName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	u := UserOf(i)
	if u == nil {
		return "unknown"
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// UserID parses the caller's snowflake.
func UserID(i *discordgo.InteractionCreate) (int64, error) {
	u := UserOf(i)
	if u == nil {
		return 0, ErrUnknownUser
	}
	return ParseID(u.ID)
}

// ParseID parses a discord snowflake.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotSnowflake
	}
	return id, nil
}

// Mention renders a user mention for a snowflake.
func Mention(id int64) string { return "<@" + strconv.FormatInt(id, 10) + ">" }
