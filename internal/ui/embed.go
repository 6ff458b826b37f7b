package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

// Namer renders a player for display.
type Namer func(player int64) string

// QueueEmbed renders one playlist queue. Hidden playlists only show a count.
func QueueEmbed(q *queue.Queue, name Namer, now time.Time) *discordgo.MessageEmbed {
	state, color := "🔓 Open", colorOpen
	switch {
	case q.Paused:
		state, color = "⏸ Paused", colorPaused
	case q.Test:
		state, color = "🧪 Test mode", colorTest
	}

	emb := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s (%d/%d) • %s", q.Name, len(q.Entries), q.Capacity(), state),
		Color: color,
	}

	var b strings.Builder
	switch {
	case len(q.Entries) == 0:
		b.WriteString("_(empty)_")
	case q.Format.Hidden:
		fmt.Fprintf(&b, "%d searching…", len(q.Entries))
	default:
		for i, e := range q.Entries {
			who := name(e.Player)
			if e.IsGuest() {
				who = e.Name + " _(guest of " + name(e.Host) + ")_"
			}
			fmt.Fprintf(&b, "%d) %s • %s\n", i+1, who, humanSince(e.JoinedAt, now))
		}
	}
	emb.Description = strings.TrimRight(b.String(), "\n")
	return emb
}

// PregameEmbed lists who still has to show up.
func PregameEmbed(queueName string, players, pending []int64, name Namer) *discordgo.MessageEmbed {
	waiting := map[int64]bool{}
	for _, p := range pending {
		waiting[p] = true
	}
	var b strings.Builder
	for _, p := range players {
		mark := "✅"
		if waiting[p] {
			mark = "⏳"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, name(p))
	}
	return &discordgo.MessageEmbed{
		Title:       queueName + " • Match found",
		Description: "Join a matchmaking voice channel or press **Ready**.\n\n" + strings.TrimRight(b.String(), "\n"),
		Color:       colorPending,
	}
}

// TallyEmbed shows a running vote.
func TallyEmbed(title string, counts map[string]int, total, needed int) *discordgo.MessageEmbed {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "**%s**: %d\n", k, counts[k])
	}
	fmt.Fprintf(&b, "\n%d voted • %d needed", total, needed)
	return &discordgo.MessageEmbed{Title: title, Description: b.String(), Color: colorPending}
}

func teamFields(red, blue []int64, name Namer) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		{Name: "🔴 Red", Value: quoteBlock(bulletList(red, name)), Inline: true},
		{Name: "🔵 Blue", Value: quoteBlock(bulletList(blue, name)), Inline: true},
	}
}

// ProposalEmbed shows balanced teams during the reject countdown.
func ProposalEmbed(ev events.TeamsProposed, name Namer) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Balanced teams",
		Description: fmt.Sprintf("Rating difference %d. Teams lock <t:%d:R> unless a majority rejects.", ev.Diff, ev.Deadline.Unix()),
		Color:       colorPending,
		Fields:      teamFields(ev.TeamA, ev.TeamB, name),
	}
}

// DraftEmbed shows a captains draft or a players-pick round.
func DraftEmbed(ev events.DraftUpdated, name Namer) *discordgo.MessageEmbed {
	emb := &discordgo.MessageEmbed{Color: colorPending, Fields: teamFields(ev.TeamA, ev.TeamB, name)}
	switch ev.Method {
	case "captains":
		emb.Title = "Captains draft"
		var b strings.Builder
		if ev.Turn != 0 {
			fmt.Fprintf(&b, "On the clock: %s\n", name(ev.Turn))
		}
		if ev.Pending != 0 {
			fmt.Fprintf(&b, "Proposed: %s (confirm or cancel)\n", name(ev.Pending))
		}
		emb.Description = b.String()
	default:
		emb.Title = "Players pick"
		emb.Description = "Pick a side, then lock in. Teams must end up even."
	}
	if len(ev.Pool) > 0 {
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{Name: "Available", Value: bulletList(ev.Pool, name)})
	}
	return emb
}

// SeriesEmbed renders a running or finished series.
func SeriesEmbed(queueName string, s series.Series, name Namer) *discordgo.MessageEmbed {
	red, blue := s.Score()
	color := colorPending
	if s.Test {
		color = colorTest
	}
	desc := scoreLine(red, blue)
	if s.Format.WinThreshold > 0 && !s.Test {
		desc += fmt.Sprintf("\nFirst to %d", s.Format.WinThreshold)
	}
	if s.Ended {
		color = colorDone
		desc += "\n" + winnerLine(s.Winner)
	}
	emb := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s • %s", queueName, s.Label()),
		Description: desc,
		Color:       color,
		Fields:      teamFields(s.Red, s.Blue, name),
	}
	if len(s.Games) > 0 {
		var b strings.Builder
		for i, g := range s.Games {
			fmt.Fprintf(&b, "%d. %s", i+1, g.Winner)
			if g.Map != "" {
				fmt.Fprintf(&b, " • %s %s", safe(g.Map), g.Gametype)
			}
			b.WriteString("\n")
		}
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{Name: "Games", Value: b.String()})
	}
	return emb
}

// StartEmbed announces a series with its optional map pick.
func StartEmbed(queueName string, ev events.SeriesStarted, name Namer) *discordgo.MessageEmbed {
	desc := "Teams set by " + ev.Method
	if ev.Map != "" {
		desc += fmt.Sprintf("\nMap: **%s** • %s", ev.Map, ev.Gametype)
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s • %s", queueName, ev.Label),
		Description: desc,
		Color:       colorPending,
		Fields:      teamFields(ev.TeamA, ev.TeamB, name),
	}
}

// EndedEmbed is the final card of a series.
func EndedEmbed(queueName string, ev events.SeriesEnded, name Namer) *discordgo.MessageEmbed {
	color := colorDone
	switch series.Side(ev.Winner) {
	case series.Red:
		color = colorRed
	case series.Blue:
		color = colorBlue
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s • %s finished", queueName, ev.Label),
		Description: scoreLine(ev.ScoreA, ev.ScoreB) + "\n" + winnerLine(series.Side(ev.Winner)) + "\nEnded by " + ev.Reason,
		Color:       color,
		Fields:      teamFields(ev.TeamA, ev.TeamB, name),
	}
}

// CancelledEmbed replaces a match card that was torn down.
func CancelledEmbed(queueName, why string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: queueName + " • Match cancelled", Description: why, Color: colorPaused}
}

// HistoryEmbed lists the most recent archived series of a playlist.
func HistoryEmbed(queueName string, past []series.Series, limit int, name Namer) *discordgo.MessageEmbed {
	emb := &discordgo.MessageEmbed{Title: queueName + " • Recent series", Color: colorDone}
	if len(past) == 0 {
		emb.Description = "_No series yet_"
		return emb
	}
	sort.Slice(past, func(i, j int) bool { return past[i].EndedAt.After(past[j].EndedAt) })
	if len(past) > limit {
		past = past[:limit]
	}
	for _, s := range past {
		red, blue := s.Score()
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{
			Name:  s.Label() + zwsp,
			Value: fmt.Sprintf("%s • %s\n🔴 %s\n🔵 %s", scoreLine(red, blue), winnerLine(s.Winner), mentions(s.Red, name), mentions(s.Blue, name)),
		})
	}
	return emb
}
