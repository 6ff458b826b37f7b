// internal/ui/components.go
// Build Discord components (buttons/select-menus) for queue panels and match cards.

package ui

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/selection"
)

// selectLimit is discord's cap on select menu options.
const selectLimit = 25

func row(cs ...discordgo.MessageComponent) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: cs}
}

func button(label, emoji string, style discordgo.ButtonStyle, id string) discordgo.Button {
	b := discordgo.Button{Label: label, Style: style, CustomID: id}
	if emoji != "" {
		b.Emoji = &discordgo.ComponentEmoji{Name: emoji}
	}
	return b
}

// QueueComponents returns the queue panel rows:
//   - Row 1: Join / Leave / Guest / Ping
//   - Row 2: Kick select, only when someone is waiting
func QueueComponents(q *queue.Queue, name func(queue.Entry) string) []discordgo.MessageComponent {
	join := button("Join", "🎮", discordgo.PrimaryButton, CustomID(ActJoin, q.ID))
	join.Disabled = q.Paused
	guest := button("Guest", "➕", discordgo.SecondaryButton, CustomID(ActGuest, q.ID))
	guest.Disabled = q.Format.TeamSize < 2
	comps := []discordgo.MessageComponent{
		row(
			join,
			button("Leave", "👋", discordgo.SecondaryButton, CustomID(ActLeave, q.ID)),
			guest,
			button("Ping", "📣", discordgo.SecondaryButton, CustomID(ActPing, q.ID)),
		),
	}
	if opts := kickOptions(q, name); len(opts) > 0 {
		comps = append(comps, row(discordgo.SelectMenu{
			CustomID:    CustomID(ActKick, q.ID),
			Placeholder: "Kick a player… (staff)",
			Options:     opts,
		}))
	}
	return comps
}

func kickOptions(q *queue.Queue, name func(queue.Entry) string) []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, min(len(q.Entries), selectLimit))
	for _, e := range q.Entries {
		if e.IsGuest() {
			continue
		}
		opts = append(opts, discordgo.SelectMenuOption{
			Label: "Kick " + name(e),
			Value: strconv.FormatInt(e.Player, 10),
		})
		if len(opts) == selectLimit {
			break
		}
	}
	return opts
}

// InactivityComponents asks a queued player whether they are still around.
func InactivityComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{row(
		button("Still here", "✋", discordgo.SuccessButton, CustomID(ActActive, "yes")),
		button("Leave queue", "", discordgo.DangerButton, CustomID(ActActive, "no")),
	)}
}

// ReadyComponents is the pregame confirm button.
func ReadyComponents(matchID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{row(
		button("Ready", "✅", discordgo.SuccessButton, CustomID(ActReady, matchID)),
	)}
}

var methodLabels = map[selection.Method]string{
	selection.Balanced:    "Balanced",
	selection.Captains:    "Captains",
	selection.PlayersPick: "Players pick",
}

// SelectionComponents offers every team-selection method.
func SelectionComponents(matchID string) []discordgo.MessageComponent {
	bs := make([]discordgo.MessageComponent, 0, len(selection.Methods))
	for _, m := range selection.Methods {
		bs = append(bs, button(methodLabels[m], "", discordgo.PrimaryButton, CustomID(ActSelect, matchID, string(m))))
	}
	return []discordgo.MessageComponent{row(bs...)}
}

// RejectComponents is the balanced-teams reject button.
func RejectComponents(matchID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{row(
		button("Reject teams", "👎", discordgo.DangerButton, CustomID(ActReject, matchID)),
	)}
}

// DraftComponents lets the captain on the clock propose, confirm, cancel or undo.
func DraftComponents(matchID string, pool []int64, name func(int64) string) []discordgo.MessageComponent {
	var comps []discordgo.MessageComponent
	if len(pool) > 0 {
		opts := make([]discordgo.SelectMenuOption, 0, min(len(pool), selectLimit))
		for _, p := range pool[:min(len(pool), selectLimit)] {
			opts = append(opts, discordgo.SelectMenuOption{Label: name(p), Value: strconv.FormatInt(p, 10)})
		}
		comps = append(comps, row(discordgo.SelectMenu{
			CustomID:    CustomID(ActDraft, matchID),
			Placeholder: "Propose a pick…",
			Options:     opts,
		}))
	}
	return append(comps, row(
		button("Confirm", "", discordgo.SuccessButton, CustomID(ActDraftConfirm, matchID)),
		button("Cancel", "", discordgo.SecondaryButton, CustomID(ActDraftCancel, matchID)),
		button("Undo", "↩️", discordgo.SecondaryButton, CustomID(ActDraftUndo, matchID)),
	))
}

// PickComponents are the players-pick side and lock-in buttons.
func PickComponents(matchID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{row(
		button("Red", "🔴", discordgo.DangerButton, CustomID(ActPick, matchID, SideRed)),
		button("Blue", "🔵", discordgo.PrimaryButton, CustomID(ActPick, matchID, SideBlue)),
		button("Lock in", "🔒", discordgo.SuccessButton, CustomID(ActLock, matchID)),
	)}
}

// Side arguments used by pick and win buttons.
const (
	SideRed  = "red"
	SideBlue = "blue"
)

// SeriesComponents are the result buttons (staff) and the end vote.
func SeriesComponents(matchID string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{row(
		button("Red won", "🔴", discordgo.DangerButton, CustomID(ActWin, matchID, SideRed)),
		button("Blue won", "🔵", discordgo.PrimaryButton, CustomID(ActWin, matchID, SideBlue)),
		button("Vote end", "🏁", discordgo.SecondaryButton, CustomID(ActEnd, matchID)),
	)}
}

// PickSide maps a button argument to a players-pick bucket.
func PickSide(arg string) (selection.Side, error) {
	switch arg {
	case SideRed:
		return selection.SideA, nil
	case SideBlue:
		return selection.SideB, nil
	}
	return selection.NoSide, fmt.Errorf("unknown side %q", arg)
}
