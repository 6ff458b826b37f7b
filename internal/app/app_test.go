package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	disc "github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/adapters/discord"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ledger"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/matchmaking"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/pregame"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/selection"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/pkg/config"
)

type said struct {
	channel string
	text    string
}

type fakeAPI struct {
	mu    sync.Mutex
	next  int
	sent  map[string]*discordgo.MessageSend // messageID -> first send
	edits map[string]int
	said  []said
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sent: map[string]*discordgo.MessageSend{}, edits: map[string]int{}}
}

func (f *fakeAPI) ChannelMessages(string, int, string, string, string, ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return nil, nil
}

func (f *fakeAPI) ChannelMessageSend(ch, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, said{ch, content})
	return &discordgo.Message{}, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(ch string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data.Embeds) == 0 {
		f.said = append(f.said, said{ch, data.Content})
		return &discordgo.Message{}, nil
	}
	f.next++
	id := fmt.Sprintf("m%d", f.next)
	f.sent[id] = data
	return &discordgo.Message{ID: id}, nil
}

func (f *fakeAPI) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[m.ID]++
	return &discordgo.Message{ID: m.ID}, nil
}

// panels returns footer keys of every created panel.
func (f *fakeAPI) panels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, strings.TrimPrefix(s.Embeds[0].Footer.Text, disc.FooterPrefix+" "))
	}
	return out
}

func (f *fakeAPI) saidIn(ch string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.said {
		if s.channel == ch {
			out = append(out, s.text)
		}
	}
	return out
}

type fixture struct {
	bot   *Bot
	api   *fakeAPI
	coord *matchmaking.Coordinator
	q     *queue.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := events.New(nil)
	qm := queue.NewManager()
	for id, f := range map[string]playlist.ID{"mlg": playlist.MLG4v4, "h2h": playlist.HeadToHead} {
		_, err := qm.CreateQueue(id, playlist.Formats[f])
		require.NoError(t, err)
	}
	kv := store.NewMemoryKV()
	led := ledger.NewKVLedger(kv)
	ratings := ledger.NewRatings(led, time.Minute, nil)
	coord := matchmaking.New(matchmaking.Deps{
		Queues:    qm,
		Bus:       bus,
		Ratings:   ratings,
		Recorder:  ledger.NewRecorder(led, kv, ledger.RecorderConfig{Timeout: time.Second, Retries: 1}, nil),
		Snapshots: store.NewSnapshots(kv),
		Presence:  pregame.PresenceFunc(func(context.Context, int64) (bool, error) { return true, nil }),
	}, matchmaking.Config{Pregame: pregame.Config{Timeout: time.Second, Interval: 10 * time.Millisecond}, Countdown: 50 * time.Millisecond})
	t.Cleanup(coord.Close)

	api := newFakeAPI()
	b := NewBot(Deps{
		Config:      &config.Config{QueueChannelID: "queue", StaffChannelID: "staff", SweepIntervalSec: 60},
		Coordinator: coord,
		Queues:      qm,
		Bus:         bus,
		Policy:      disc.NewPolicy(nil, nil, nil, nil),
		Voice:       disc.NewVoice(disc.VoiceConfig{}, nil, nil),
		Publisher:   disc.NewPublisher(api, nil, nil),
		Ratings:     ratings,
		Raters:      led,
		Snapshots:   store.NewSnapshots(kv),
	})
	b.cancelBus = b.StartEventSubscribers()
	t.Cleanup(b.Stop)
	return &fixture{bot: b, api: api, coord: coord, q: qm}
}

func TestQueuePanelCreatedOnceThenEdited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Join(ctx, "mlg", 1, "one")
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, "mlg", 2, "two")
	require.NoError(t, err)
	f.bot.flush()

	assert.Equal(t, []string{"queue:mlg"}, f.api.panels())
	assert.Equal(t, 1, f.api.edits["m1"])
	assert.Equal(t, "one", f.bot.names.Name(1))
}

func TestUnratedJoinAlertsStaff(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Join(context.Background(), "mlg", 5, "five")
	require.NoError(t, err)
	f.bot.flush()

	staff := f.api.saidIn("staff")
	require.Len(t, staff, 1)
	assert.Contains(t, staff[0], "<@5>")
	assert.Contains(t, staff[0], "MLG 4v4")
}

func TestHeadToHeadCardLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.coord.Join(ctx, "h2h", 1, "one")
	require.NoError(t, err)
	_, err = f.coord.Join(ctx, "h2h", 2, "two")
	require.NoError(t, err)

	id, ok := f.coord.MatchOf(1)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		v, err := f.coord.Match(id)
		return err == nil && v.Stage == matchmaking.StageSeries
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, f.coord.RecordGame(id, perm.Staff, series.Red, playlist.MapPick{}))
	require.NoError(t, f.coord.AdminEnd(id, 99, perm.Admin))
	f.coord.Wait()
	f.bot.flush()

	assert.ElementsMatch(t, []string{"queue:h2h", "match:" + id}, f.api.panels())
	assert.True(t, slicesContain(f.api.saidIn("queue"), "match is ready"))
}

func slicesContain(ss []string, sub string) bool {
	for _, s := range ss {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func TestPingGoesToQueueChannel(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Join(context.Background(), "mlg", 1, "one")
	require.NoError(t, err)
	require.NoError(t, f.coord.Ping("mlg", 1))
	f.bot.flush()

	assert.True(t, slicesContain(f.api.saidIn("queue"), "needs 7 more"))
	assert.ErrorIs(t, f.coord.Ping("mlg", 1), matchmaking.ErrPingCooldown)
}

func TestStopDropsLateEvents(t *testing.T) {
	f := newFixture(t)
	f.bot.Stop()
	events.Publish(f.bot.Bus, events.QueueUpdated{Queue: "mlg"})
	f.bot.enqueue(func() { t.Fatal("rendered after stop") })
	assert.Empty(t, f.api.panels())
}

func TestExplain(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{queue.ErrAlreadyQueuedElsewhere, "another queue"},
		{fmt.Errorf("join: %w", queue.ErrQueueSuspended), "paused"},
		{matchmaking.ErrForbidden, "permission"},
		{queue.ErrGuestNotAllowed, "1v1"},
		{disc.ErrBanned, "banned"},
		{&selection.ConstraintError{Err: selection.ErrUnbalanced, Players: []int64{3, -1}}, "<@3>, guest"},
		{errors.New("boom"), "⚠️ boom"},
	}
	for _, c := range cases {
		assert.Contains(t, explain(c.err), c.want)
	}
}

func TestParseMentions(t *testing.T) {
	ids, err := parseMentions("<@1> <@!22>  <@333>")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22, 333}, ids)

	_, err = parseMentions("nobody")
	assert.Error(t, err)
}

func TestRoster(t *testing.T) {
	r := newRoster()
	r.Put(7, "seven")
	r.Put(8, "")
	assert.Equal(t, "seven", r.Name(7))
	assert.Equal(t, "8", r.Name(8))
	assert.Equal(t, "guest", r.Name(-3))
	assert.Equal(t, "<@7>", r.Mention(7))
	r.Put(-3, "seven's guest")
	assert.Equal(t, "seven's guest", r.Mention(-3))
}

func TestSweeperRunsAndStops(t *testing.T) {
	var fast, failing atomic.Int32
	s := NewSweeper(nil,
		Task{Name: "fast", Every: 5 * time.Millisecond, Run: func(context.Context) error { fast.Inc(); return nil }},
		Task{Name: "failing", Every: 5 * time.Millisecond, Run: func(context.Context) error { failing.Inc(); return errors.New("nope") }},
		Task{Name: "disabled", Every: 0, Run: func(context.Context) error { t.Fatal("disabled task ran"); return nil }},
	)
	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return fast.Load() >= 3 && failing.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	n := s.Runs()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, s.Runs())
}
