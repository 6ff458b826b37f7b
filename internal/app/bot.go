package app

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	disc "github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/adapters/discord"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ledger"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/matchmaking"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/pkg/config"
)

// RatingSetter lets staff assign a rating to an unrated player.
type RatingSetter interface {
	SetRating(ctx context.Context, player int64, mmr, rank int) error
}

// Deps is everything the bot wires together.
type Deps struct {
	Session     *discordgo.Session
	Config      *config.Config
	Coordinator *matchmaking.Coordinator
	Queues      *queue.Manager
	Bus         *events.Bus
	Policy      *disc.Policy
	Voice       *disc.Voice
	Publisher   *disc.Publisher
	Ratings     *ledger.Ratings
	Raters      RatingSetter
	Snapshots   *store.Snapshots
	Log         *zap.Logger
}

// joinRate throttles join/leave spam per user.
var joinRate = rate.Every(2 * time.Second)

const joinBurst = 3

type Bot struct {
	Deps
	names *roster
	now   func() time.Time

	joins sync.Map // userID -> *rate.Limiter

	renderMu  sync.RWMutex
	render    chan func()
	closed    bool
	renderWG  sync.WaitGroup
	cancelBus func()
	sweeper   *Sweeper
}

func NewBot(deps Deps) *Bot {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Bot{
		Deps:   deps,
		names:  newRoster(),
		now:    time.Now,
		render: make(chan func(), 256),
	}
}

// RegisterHandlers wires discord handlers, bus subscribers and slash commands.
func (b *Bot) RegisterHandlers() error {
	b.Voice.OnActivity(func(p int64) { b.Coordinator.Touch(p) })
	b.Session.AddHandler(b.Voice.Track)
	b.Session.AddHandler(b.HandleInteraction)
	b.cancelBus = b.StartEventSubscribers()
	return RegisterCommands(b.Session, b.Config.AppID, b.Config.GuildID)
}

// Start renders every queue panel and starts the background sweeper with
// the built-in tasks plus extra.
func (b *Bot) Start(ctx context.Context, extra ...Task) {
	for _, q := range b.Queues.Queues() {
		b.enqueue(func() { b.renderQueue(q.ID) })
	}
	tasks := append([]Task{
		{Name: "inactivity", Every: b.Config.SweepInterval(), Run: func(context.Context) error {
			b.Coordinator.Sweep()
			return nil
		}},
		{Name: "ledger-outbox", Every: 5 * b.Config.SweepInterval(), Run: func(ctx context.Context) error {
			_, err := b.Coordinator.Reconcile(ctx)
			return err
		}},
	}, extra...)
	b.sweeper = NewSweeper(b.Log.Named("sweeper"), tasks...)
	b.sweeper.Start(ctx)
}

// Stop unsubscribes from the bus, stops the sweeper and drains pending renders.
func (b *Bot) Stop() {
	if b.sweeper != nil {
		b.sweeper.Stop()
	}
	if b.cancelBus != nil {
		b.cancelBus()
		b.cancelBus = nil
		b.renderMu.Lock()
		b.closed = true
		close(b.render)
		b.renderMu.Unlock()
		b.renderWG.Wait()
	}
}

func (b *Bot) allowJoin(userID int64) bool {
	v, _ := b.joins.LoadOrStore(userID, rate.NewLimiter(joinRate, joinBurst))
	return v.(*rate.Limiter).Allow()
}
