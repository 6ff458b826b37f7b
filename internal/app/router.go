// internal/app/router.go
package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	d "github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/adapters/discord"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/matchmaking"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/selection"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ui"
)

// interactionTimeout keeps work inside discord's three second reply window.
const interactionTimeout = 2500 * time.Millisecond

// caller is who triggered an interaction.
type caller struct {
	id    int64
	name  string
	level perm.Permission
}

func (b *Bot) callerOf(i *discordgo.InteractionCreate) (caller, error) {
	id, err := d.UserID(i)
	if err != nil {
		return caller{}, err
	}
	return caller{id: id, name: d.SafeName(i), level: b.Policy.LevelOf(i)}, nil
}

func (b *Bot) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// reply answers ephemeral with msg, or with the explanation of err.
func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, msg string, err error) {
	if err != nil {
		msg = explain(err)
	}
	if err := d.SendEphemeral(s, i, msg); err != nil {
		b.Log.Warn("interaction response failed", zap.String("op", "reply"), zap.Error(err))
	}
}

// explain turns a core error into something a player can act on.
func explain(err error) string {
	var ce *selection.ConstraintError
	switch {
	case errors.Is(err, d.ErrBanned):
		return "⛔ You are banned from matchmaking."
	case errors.Is(err, d.ErrMissingRole):
		return "⛔ You don't have a role that can queue."
	case errors.Is(err, d.ErrNotInVoice):
		return "🔇 You must be in an allowed voice channel to join."
	case errors.Is(err, queue.ErrAlreadyQueued):
		return "You're already in this queue."
	case errors.Is(err, queue.ErrAlreadyQueuedElsewhere):
		return "You're already in another queue. Leave it first."
	case errors.Is(err, queue.ErrAlreadyInActiveMatch), errors.Is(err, queue.ErrLocked):
		return "You're in a match right now."
	case errors.Is(err, queue.ErrQueueSuspended):
		return "⏸ This queue is paused."
	case errors.Is(err, queue.ErrQueueFull):
		return "This queue is full."
	case errors.Is(err, queue.ErrNotQueued):
		return "You're not in that queue."
	case errors.Is(err, queue.ErrGuestNotAllowed):
		return "Guests can't join 1v1 playlists."
	case errors.Is(err, matchmaking.ErrForbidden):
		return "⛔ You don't have permission for this action."
	case errors.Is(err, matchmaking.ErrNoMatch):
		return "⚠️ No live match found."
	case errors.Is(err, matchmaking.ErrWrongStage):
		return "⚠️ The match has moved on, that button is stale."
	case errors.Is(err, matchmaking.ErrPingCooldown):
		return "⏳ This queue was pinged recently."
	case errors.As(err, &ce):
		return fmt.Sprintf("⚠️ %s (players: %s)", ce.Err, idList(ce.Players))
	}
	return "⚠️ " + err.Error()
}

func idList(ids []int64) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id > 0 {
			out[i] = d.Mention(id)
		} else {
			out[i] = "guest"
		}
	}
	return strings.Join(out, ", ")
}

var mentionRe = regexp.MustCompile(`<@!?(\d+)>`)

// parseMentions extracts user IDs from a string of mentions.
func parseMentions(s string) ([]int64, error) {
	ms := mentionRe.FindAllStringSubmatch(s, -1)
	out := make([]int64, 0, len(ms))
	for _, m := range ms {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no players mentioned in %q", s)
	}
	return out, nil
}

func sideOf(arg string) (series.Side, error) {
	switch arg {
	case ui.SideRed:
		return series.Red, nil
	case ui.SideBlue:
		return series.Blue, nil
	}
	return "", series.ErrInvalidSide
}

// ------------------- Slash -------------------

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(i *discordgo.InteractionCreate) options {
	out := options{}
	for _, o := range i.ApplicationCommandData().Options {
		out[o.Name] = o
	}
	return out
}

func (o options) str(name string) string {
	if v, ok := o[name]; ok {
		return v.StringValue()
	}
	return ""
}

func (o options) user(name string) (int64, bool) {
	v, ok := o[name]
	if !ok {
		return 0, false
	}
	id, err := d.ParseID(fmt.Sprint(v.Value))
	return id, err == nil
}

// matchFor resolves the match of the "player" option or the caller.
func (b *Bot) matchFor(o options, c caller) (string, error) {
	p := c.id
	if id, ok := o.user("player"); ok {
		p = id
	}
	m, ok := b.Coordinator.MatchOf(p)
	if !ok {
		return "", matchmaking.ErrNoMatch
	}
	return m, nil
}

func (b *Bot) handleSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	c, err := b.callerOf(i)
	if err != nil {
		b.reply(s, i, "", err)
		return
	}
	o := optionsOf(i)
	name := i.ApplicationCommandData().Name
	q := o.str("playlist")
	b.Log.Debug("slash", zap.String("cmd", name), zap.Int64("user", c.id), zap.String("level", c.level.String()))

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	switch name {
	case "join":
		b.reply(s, i, "🙌 Joined!", b.join(ctx, i, q, c))
	case "leave":
		_, err := b.Coordinator.Leave(q, c.id)
		b.reply(s, i, "👋 Left.", err)
	case "guest":
		e, err := b.Coordinator.AddGuest(ctx, q, c.id, c.name)
		if err == nil {
			b.names.Put(e.Player, e.Name)
		}
		b.reply(s, i, "➕ Guest added.", err)
	case "unguest":
		b.reply(s, i, "➖ Guest removed.", b.Coordinator.RemoveGuest(q, c.id))
	case "ping":
		b.reply(s, i, "📣 Pinged.", b.Coordinator.Ping(q, c.id))
	case "queue":
		b.showQueues(s, i)
	case "matches":
		b.showMatches(s, i)
	case "history":
		b.showHistory(ctx, s, i, q)

	case "pause", "resume":
		b.reply(s, i, "✅ Done.", b.Coordinator.SetPaused(q, c.level, name == "pause"))
	case "clear":
		removed, err := b.Coordinator.Clear(q, c.level)
		b.reply(s, i, fmt.Sprintf("🧹 Removed %d.", len(removed)), err)
	case "kick":
		p, _ := o.user("user")
		b.reply(s, i, "✅ Player kicked.", b.Coordinator.Kick(q, c.level, p))
	case "testmode":
		on := o["enabled"].BoolValue()
		b.reply(s, i, fmt.Sprintf("🧪 Test mode %v.", on), b.Coordinator.SetTest(q, c.level, on))
	case "rating":
		b.setRating(ctx, s, i, o, c)

	case "cancel":
		m, err := b.matchFor(o, c)
		if err == nil {
			err = b.Coordinator.CancelMatch(m, c.id, c.level)
		}
		b.reply(s, i, "🛑 Match cancelled.", err)
	case "record":
		m, err := b.matchFor(o, c)
		var w series.Side
		if err == nil {
			w, err = sideOf(o.str("winner"))
		}
		if err == nil {
			err = b.Coordinator.RecordGame(m, c.level, w, playlist.MapPick{Map: o.str("map"), Gametype: o.str("gametype")})
		}
		b.reply(s, i, "📝 Game recorded.", err)
	case "correct":
		m, err := b.matchFor(o, c)
		var w series.Side
		if err == nil {
			w, err = sideOf(o.str("winner"))
		}
		if err == nil {
			err = b.Coordinator.CorrectGame(m, c.id, c.level, int(o["game"].IntValue()), w)
		}
		b.reply(s, i, "✏️ Game corrected.", err)
	case "swap":
		red, _ := o.user("red")
		blue, _ := o.user("blue")
		m, ok := b.Coordinator.MatchOf(red)
		err := error(matchmaking.ErrNoMatch)
		if ok {
			err = b.Coordinator.Swap(m, c.level, red, blue)
		}
		b.reply(s, i, "🔁 Players swapped.", err)
	case "endseries":
		m, err := b.matchFor(o, c)
		if err == nil {
			err = b.Coordinator.AdminEnd(m, c.id, c.level)
		}
		b.reply(s, i, "🏁 Series ended.", err)
	case "setteams":
		b.reply(s, i, "✅ Teams set.", b.setTeams(o, c))
	default:
		b.reply(s, i, "Unknown command.", nil)
	}
}

// join applies the discord-side gates before queueing.
func (b *Bot) join(ctx context.Context, i *discordgo.InteractionCreate, queueID string, c caller) error {
	if err := b.Policy.CanJoin(i.Member); err != nil {
		return err
	}
	if b.Voice.RequireToJoin() && !b.Voice.InAllowed(strconv.FormatInt(c.id, 10)) {
		return d.ErrNotInVoice
	}
	if !b.allowJoin(c.id) {
		return errors.New("slow down, try again in a moment")
	}
	b.names.Put(c.id, c.name)
	_, err := b.Coordinator.Join(ctx, queueID, c.id, c.name)
	return err
}

func (b *Bot) setTeams(o options, c caller) error {
	red, err := parseMentions(o.str("red"))
	if err != nil {
		return err
	}
	blue, err := parseMentions(o.str("blue"))
	if err != nil {
		return err
	}
	m, ok := b.Coordinator.MatchOf(red[0])
	if !ok {
		return matchmaking.ErrNoMatch
	}
	return b.Coordinator.SetTeams(m, c.level, red, blue)
}

func (b *Bot) setRating(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, o options, c caller) {
	if !c.level.AtLeast(perm.Staff) {
		b.reply(s, i, "", matchmaking.ErrForbidden)
		return
	}
	if b.Raters == nil {
		b.reply(s, i, "⚠️ Ratings are managed by the stats site.", nil)
		return
	}
	p, _ := o.user("user")
	err := b.Raters.SetRating(ctx, p, int(o["mmr"].IntValue()), int(o["rank"].IntValue()))
	if err == nil {
		b.Ratings.Invalidate(p)
	}
	b.reply(s, i, "✅ Rating saved.", err)
}

func (b *Bot) showQueues(s *discordgo.Session, i *discordgo.InteractionCreate) {
	qs := b.Queues.Queues()
	embeds := make([]*discordgo.MessageEmbed, 0, len(qs))
	for _, q := range qs {
		embeds = append(embeds, ui.QueueEmbed(q, b.names.Mention, b.now()))
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: embeds, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.Log.Warn("queue listing failed", zap.Error(err))
	}
}

func (b *Bot) showMatches(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ms := b.Coordinator.Matches()
	if len(ms) == 0 {
		b.reply(s, i, "No live matches.", nil)
		return
	}
	var sb strings.Builder
	for _, m := range ms {
		label := fmt.Sprintf("#%d", m.Number)
		if m.Series != nil {
			label = m.Series.Label()
		}
		fmt.Fprintf(&sb, "**%s** • %s • %s • %d players\n", b.queueName(m.Queue), label, m.Stage, len(m.Players))
	}
	b.reply(s, i, sb.String(), nil)
}

func (b *Bot) showHistory(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, queueID string) {
	past, err := b.Snapshots.History(ctx, playlist.ID(queueID))
	if err != nil {
		b.reply(s, i, "", err)
		return
	}
	if err := d.SendEphemeralEmbed(s, i, ui.HistoryEmbed(b.queueName(queueID), past, 10, b.names.Mention)); err != nil {
		b.Log.Warn("interaction response failed", zap.String("op", "history"), zap.Error(err))
	}
}

// ------------------- Components -------------------

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	c, err := b.callerOf(i)
	if err != nil {
		b.reply(s, i, "", err)
		return
	}
	data := i.MessageComponentData()
	action, args := ui.ParseCustomID(data.CustomID)
	b.Log.Debug("component", zap.String("id", data.CustomID), zap.Int64("user", c.id))
	if len(args) == 0 {
		b.reply(s, i, "⚠️ Invalid button.", nil)
		return
	}
	arg := args[0]

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	// selected value for select menus
	value := func() (int64, error) {
		if len(data.Values) == 0 {
			return 0, errors.New("nothing selected")
		}
		return strconv.ParseInt(data.Values[0], 10, 64)
	}

	switch action {
	case ui.ActJoin:
		b.reply(s, i, "🙌 Joined!", b.join(ctx, i, arg, c))
	case ui.ActLeave:
		_, err := b.Coordinator.Leave(arg, c.id)
		b.reply(s, i, "👋 Left.", err)
	case ui.ActGuest:
		e, err := b.Coordinator.AddGuest(ctx, arg, c.id, c.name)
		if err == nil {
			b.names.Put(e.Player, e.Name)
		}
		b.reply(s, i, "➕ Guest added.", err)
	case ui.ActPing:
		b.reply(s, i, "📣 Pinged.", b.Coordinator.Ping(arg, c.id))
	case ui.ActKick:
		p, err := value()
		if err == nil {
			err = b.Coordinator.Kick(arg, c.level, p)
		}
		b.reply(s, i, "✅ Player kicked.", err)
	case ui.ActActive:
		if arg == "no" {
			b.Coordinator.Decline(c.id)
			b.reply(s, i, "👋 Removed you from your queues.", nil)
			return
		}
		if !b.Coordinator.Touch(c.id) {
			b.reply(s, i, "You're not queued anymore.", nil)
			return
		}
		b.reply(s, i, "👍 Thanks, you keep your spot.", nil)

	case ui.ActReady:
		b.reply(s, i, "✅ Ready.", b.Coordinator.Confirm(arg, c.id))
	case ui.ActSelect:
		if len(args) < 2 {
			b.reply(s, i, "⚠️ Invalid button.", nil)
			return
		}
		err := b.Coordinator.VoteSelection(arg, c.id, c.level, selection.Method(args[1]))
		b.reply(s, i, "🗳 Vote counted.", err)
	case ui.ActReject:
		held, err := b.Coordinator.RejectTeams(arg, c.id, c.level)
		msg := "👎 Reject withdrawn."
		if held {
			msg = "👎 Reject counted."
		}
		b.reply(s, i, msg, err)
	case ui.ActDraft:
		p, err := value()
		if err == nil {
			err = b.Coordinator.DraftPropose(arg, c.id, p)
		}
		b.reply(s, i, "Pick proposed, confirm it.", err)
	case ui.ActDraftConfirm:
		b.reply(s, i, "✅ Pick confirmed.", b.Coordinator.DraftConfirm(arg, c.id))
	case ui.ActDraftCancel:
		b.reply(s, i, "Pick cancelled.", b.Coordinator.DraftCancel(arg, c.id))
	case ui.ActDraftUndo:
		b.reply(s, i, "↩️ Last pick undone.", b.Coordinator.DraftUndo(arg, c.id))
	case ui.ActPick:
		side, err := ui.PickSide(argAt(args, 1))
		if err == nil {
			err = b.Coordinator.PickSide(arg, c.id, side)
		}
		b.reply(s, i, "Side chosen.", err)
	case ui.ActLock:
		reset, err := b.Coordinator.LockIn(arg, c.id)
		msg := "🔒 Locked in."
		if reset {
			msg = "Teams were uneven, everyone has to lock in again."
		}
		b.reply(s, i, msg, err)

	case ui.ActWin:
		w, err := sideOf(argAt(args, 1))
		if err == nil {
			err = b.Coordinator.RecordGame(arg, c.level, w, playlist.MapPick{})
		}
		b.reply(s, i, "📝 Game recorded.", err)
	case ui.ActEnd:
		held, err := b.Coordinator.VoteEnd(arg, c.id, c.level)
		msg := "End vote withdrawn."
		if held {
			msg = "🏁 End vote counted."
		}
		b.reply(s, i, msg, err)
	default:
		b.reply(s, i, "⚠️ Unknown action.", nil)
	}
}

func argAt(args []string, n int) string {
	if n < len(args) {
		return args[n]
	}
	return ""
}
