// internal/adapters/discord/policy.go
// Maps guild members to a permission level and applies the join role gates.

package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
)

type derr string

func (e derr) Error() string { return string(e) }

var (
	ErrBanned       = derr("banned from matchmaking")
	ErrMissingRole  = derr("missing a role required to queue")
	ErrNotInVoice   = derr("not in an allowed voice channel")
	ErrUnknownUser  = derr("could not identify the user")
	ErrNotSnowflake = derr("not a discord id")
)

// Policy turns member roles into a perm.Permission.
type Policy struct {
	roles    perm.Roles
	banned   map[string]struct{}
	required map[string]struct{}
}

func NewPolicy(admin, staff, banned, required []string) *Policy {
	return &Policy{
		roles:    perm.NewRoles(admin, staff),
		banned:   set(banned),
		required: set(required),
	}
}

func set(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}

// Level returns Admin for members with the Administrator permission,
// otherwise whatever their roles grant.
func (p *Policy) Level(m *discordgo.Member) perm.Permission {
	if m == nil {
		return perm.None
	}
	if m.Permissions&discordgo.PermissionAdministrator != 0 {
		return perm.Admin
	}
	return p.roles.Level(m.Roles)
}

// LevelOf is Level for the member behind an interaction. DMs have no member.
func (p *Policy) LevelOf(i *discordgo.InteractionCreate) perm.Permission {
	return p.Level(i.Member)
}

// CanJoin applies the banned and required role gates.
func (p *Policy) CanJoin(m *discordgo.Member) error {
	if m == nil {
		return ErrUnknownUser
	}
	hasRequired := len(p.required) == 0
	for _, r := range m.Roles {
		if _, ok := p.banned[r]; ok {
			return ErrBanned
		}
		if _, ok := p.required[r]; ok {
			hasRequired = true
		}
	}
	if !hasRequired {
		return ErrMissingRole
	}
	return nil
}
