// Voice presence: cache each member's last voice channel, decide whether a
// channel is an allowed matchmaking channel, and answer the pregame gate.

package discord

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// VoiceConfig is the voice allow-list. With no lists configured every
// non-AFK channel is allowed.
type VoiceConfig struct {
	GuildID         string
	RequireToJoin   bool
	CategoryIDs     []string
	ChannelPrefixes []string
	AFKChannelID    string
}

// ChannelSource resolves channels, from state or REST.
type ChannelSource func(channelID string) *discordgo.Channel

// SessionChannels looks channels up in the session state with a REST fallback.
func SessionChannels(s *discordgo.Session) ChannelSource {
	return func(id string) *discordgo.Channel {
		if ch, err := s.State.Channel(id); err == nil && ch != nil {
			return ch
		}
		ch, _ := s.Channel(id)
		return ch
	}
}

// Voice tracks voice states and implements pregame.Presence.
type Voice struct {
	cfg        VoiceConfig
	categories map[string]struct{}
	prefixes   []string
	channels   ChannelSource
	log        *zap.Logger

	// userID -> last voice channelID
	last sync.Map

	mu         sync.RWMutex
	onActivity func(player int64)
}

func NewVoice(cfg VoiceConfig, channels ChannelSource, log *zap.Logger) *Voice {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Voice{cfg: cfg, categories: set(cfg.CategoryIDs), channels: channels, log: log}
	for _, p := range cfg.ChannelPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			v.prefixes = append(v.prefixes, p)
		}
	}
	return v
}

// OnActivity registers fn to run when a member enters an allowed channel.
func (v *Voice) OnActivity(fn func(player int64)) {
	v.mu.Lock()
	v.onActivity = fn
	v.mu.Unlock()
}

// RequireToJoin reports whether joins must come from an allowed channel.
func (v *Voice) RequireToJoin() bool { return v.cfg.RequireToJoin }

// Track keeps the cache fresh. Register it with Session.AddHandler.
func (v *Voice) Track(_ *discordgo.Session, ev *discordgo.VoiceStateUpdate) {
	if ev == nil || ev.VoiceState == nil {
		return
	}
	vs := ev.VoiceState
	if v.cfg.GuildID != "" && vs.GuildID != v.cfg.GuildID {
		return
	}
	v.last.Store(vs.UserID, vs.ChannelID)
	if !v.ChannelAllowed(vs.ChannelID) {
		return
	}
	id, err := strconv.ParseInt(vs.UserID, 10, 64)
	if err != nil {
		return
	}
	v.mu.RLock()
	fn := v.onActivity
	v.mu.RUnlock()
	if fn != nil {
		fn(id)
	}
}

func (v *Voice) lastChannel(userID string) string {
	if ch, ok := v.last.Load(userID); ok {
		return ch.(string)
	}
	return ""
}

// InAllowed reports whether userID currently sits in an allowed channel.
func (v *Voice) InAllowed(userID string) bool {
	return v.ChannelAllowed(v.lastChannel(userID))
}

// Present implements pregame.Presence.
func (v *Voice) Present(_ context.Context, player int64) (bool, error) {
	return v.InAllowed(strconv.FormatInt(player, 10)), nil
}

// ChannelAllowed applies the allow-lists to channelID.
func (v *Voice) ChannelAllowed(channelID string) bool {
	if channelID == "" || channelID == v.cfg.AFKChannelID {
		return false
	}
	if len(v.categories) == 0 && len(v.prefixes) == 0 {
		return true
	}
	if v.channels == nil {
		return false
	}
	ch := v.channels(channelID)
	if ch == nil {
		v.log.Debug("voice channel not resolvable", zap.String("channel", channelID))
		return false
	}
	name := strings.ToLower(ch.Name)
	for _, pref := range v.prefixes {
		if strings.HasPrefix(name, pref) {
			return true
		}
	}
	_, ok := v.categories[ch.ParentID]
	return ok && ch.ParentID != ""
}
