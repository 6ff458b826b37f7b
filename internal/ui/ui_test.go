package ui

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/selection"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

func plainName(p int64) string { return "p" + strconv.FormatInt(p, 10) }

func entryName(e queue.Entry) string { return e.Name }

func TestCustomIDRoundTrip(t *testing.T) {
	id := CustomID(ActSelect, "match-1", string(selection.Captains))
	action, args := ParseCustomID(id)
	assert.Equal(t, ActSelect, action)
	assert.Equal(t, []string{"match-1", "captains"}, args)

	action, args = ParseCustomID("ready")
	assert.Equal(t, "ready", action)
	assert.Empty(t, args)
}

func testQueue(id playlist.ID, n int) *queue.Queue {
	f := playlist.Formats[id]
	q := &queue.Queue{ID: string(id), Name: f.Name, Format: f}
	now := time.Now()
	for i := 1; i <= n; i++ {
		q.Entries = append(q.Entries, queue.Entry{Player: int64(i), Name: "n" + strconv.Itoa(i), JoinedAt: now})
	}
	return q
}

func TestQueueEmbedVisibility(t *testing.T) {
	now := time.Now()

	open := QueueEmbed(testQueue(playlist.MLG4v4, 2), plainName, now)
	assert.Contains(t, open.Title, "(2/8)")
	assert.Contains(t, open.Description, "p1")
	assert.Contains(t, open.Description, "p2")

	hidden := QueueEmbed(testQueue(playlist.TeamHardcore, 3), plainName, now)
	assert.NotContains(t, hidden.Description, "p1")
	assert.Contains(t, hidden.Description, "3 searching")

	q := testQueue(playlist.MLG4v4, 0)
	q.Paused = true
	paused := QueueEmbed(q, plainName, now)
	assert.Contains(t, paused.Title, "Paused")
	assert.Equal(t, "_(empty)_", paused.Description)
}

func TestQueueEmbedGuest(t *testing.T) {
	q := testQueue(playlist.MLG4v4, 1)
	q.Entries = append(q.Entries, queue.Entry{Player: -1, Name: "p1's guest", Host: 1})
	emb := QueueEmbed(q, plainName, time.Now())
	assert.Contains(t, emb.Description, "guest of p1")
}

func TestQueueComponents(t *testing.T) {
	q := testQueue(playlist.MLG4v4, 3)
	q.Entries = append(q.Entries, queue.Entry{Player: -1, Name: "g", Host: 1})
	comps := QueueComponents(q, entryName)
	require.Len(t, comps, 2)

	buttons := comps[0].(discordgo.ActionsRow).Components
	join := buttons[0].(discordgo.Button)
	assert.Equal(t, "join:mlg_4v4", join.CustomID)
	assert.False(t, join.Disabled)

	kick := comps[1].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Len(t, kick.Options, 3, "guests are not kickable on their own")

	q.Paused = true
	empty := testQueue(playlist.MLG4v4, 0)
	empty.Paused = true
	comps = QueueComponents(empty, entryName)
	require.Len(t, comps, 1)
	assert.True(t, comps[0].(discordgo.ActionsRow).Components[0].(discordgo.Button).Disabled)

	assert.False(t, buttons[2].(discordgo.Button).Disabled)
	solo := QueueComponents(testQueue(playlist.HeadToHead, 1), entryName)
	assert.True(t, solo[0].(discordgo.ActionsRow).Components[2].(discordgo.Button).Disabled, "no guests in 1v1")
}

func TestDraftComponentsCapsOptions(t *testing.T) {
	pool := make([]int64, 30)
	for i := range pool {
		pool[i] = int64(i + 1)
	}
	comps := DraftComponents("m", pool, plainName)
	require.Len(t, comps, 2)
	menu := comps[0].(discordgo.ActionsRow).Components[0].(discordgo.SelectMenu)
	assert.Len(t, menu.Options, selectLimit)

	assert.Len(t, DraftComponents("m", nil, plainName), 1)
}

func TestPickSide(t *testing.T) {
	s, err := PickSide(SideRed)
	require.NoError(t, err)
	assert.Equal(t, selection.SideA, s)
	s, err = PickSide(SideBlue)
	require.NoError(t, err)
	assert.Equal(t, selection.SideB, s)
	_, err = PickSide("green")
	assert.Error(t, err)
}

func TestSeriesEmbed(t *testing.T) {
	s := series.Series{
		Format: playlist.Formats[playlist.MLG4v4], Number: 12,
		Red: []int64{1, 2}, Blue: []int64{3, 4},
		Games: []series.Game{{Winner: series.Red, Map: "Midship", Gametype: "MLG CTF5"}, {Winner: series.Blue}},
	}
	emb := SeriesEmbed("MLG 4v4", s, plainName)
	assert.Equal(t, "MLG 4v4 • Series 12", emb.Title)
	assert.Contains(t, emb.Description, "1 – 1")
	assert.Contains(t, emb.Description, "First to 4")
	require.Len(t, emb.Fields, 3)
	assert.Contains(t, emb.Fields[2].Value, "Midship")

	s.Ended, s.Winner = true, series.Pending
	emb = SeriesEmbed("MLG 4v4", s, plainName)
	assert.Contains(t, emb.Description, "pending staff review")
}

func TestEndedEmbedColors(t *testing.T) {
	ev := events.SeriesEnded{Label: "Series 3", Winner: string(series.Blue), ScoreA: 1, ScoreB: 4, Reason: series.EndThreshold}
	emb := EndedEmbed("MLG 4v4", ev, plainName)
	assert.Equal(t, colorBlue, emb.Color)
	assert.Contains(t, emb.Description, "Blue wins")
}

func TestHistoryEmbedNewestFirst(t *testing.T) {
	base := time.Now()
	past := []series.Series{
		{Number: 1, EndedAt: base.Add(-time.Hour), Winner: series.Red},
		{Number: 2, EndedAt: base, Winner: series.Blue},
		{Number: 3, EndedAt: base.Add(-2 * time.Hour), Winner: series.Red},
	}
	emb := HistoryEmbed("MLG 4v4", past, 2, plainName)
	require.Len(t, emb.Fields, 2)
	assert.True(t, strings.HasPrefix(emb.Fields[0].Name, "Series 2"))
	assert.True(t, strings.HasPrefix(emb.Fields[1].Name, "Series 1"))

	assert.Contains(t, HistoryEmbed("x", nil, 5, plainName).Description, "No series")
}

func TestTallyEmbedSorted(t *testing.T) {
	emb := TallyEmbed("Team selection", map[string]int{"captains": 2, "balanced": 1}, 3, 5)
	assert.Less(t, strings.Index(emb.Description, "balanced"), strings.Index(emb.Description, "captains"))
	assert.Contains(t, emb.Description, "3 voted • 5 needed")
}
