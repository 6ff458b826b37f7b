// Command bot starts the matchmaking bot process
//
// this binary:
//  1. loads config from environment variables (.env during dev)
//  2. opens storage (redis when configured, memory otherwise) and takes the instance lock
//  3. builds queues, the match coordinator and the discord adapters
//  4. opens the gateway and waits for a signal from the OS to exit
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	disc "github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/adapters/discord"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/app"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ledger"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/matchmaking"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/metrics"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/pregame"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/pkg/config"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/pkg/logger"
)

const (
	lockKey = "instance"
	lockTTL = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer lg.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// storage: one bot instance per redis keyspace
	var (
		kv    store.KV = store.NewMemoryKV()
		lock  *store.Lock
		extra []app.Task
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			lg.Fatal("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		lock, err = store.AcquireLock(ctx, client, cfg.RedisKeyPrefix+lockKey, lockTTL)
		if errors.Is(err, store.ErrLockNotAcquired) {
			lg.Fatal("another instance holds the lock")
		}
		if err != nil {
			lg.Fatal("acquire lock", zap.Error(err))
		}
		kv = store.NewRedisKV(client, cfg.RedisKeyPrefix)
		extra = append(extra, app.Task{Name: "instance-lock", Every: lockTTL / 3, Run: lock.Refresh})
	}

	// metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mets := metrics.New(registry)
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("metrics server", zap.Error(err))
		}
	}()

	// queues
	queues := queue.NewManager(
		queue.WithLogger(lg.Named("queue")),
		queue.WithSweepPolicy(queue.SweepPolicy{Idle: cfg.InactivityIdle(), Window: cfg.InactivityWindow()}),
	)
	for _, id := range []playlist.ID{playlist.MLG4v4, playlist.TeamHardcore, playlist.DoubleTeam, playlist.HeadToHead} {
		if _, err := queues.CreateQueue(string(id), playlist.Formats[id]); err != nil {
			lg.Fatal("create queue", zap.String("queue", string(id)), zap.Error(err))
		}
	}
	pairs, _ := cfg.ExemptPairs()
	for _, p := range pairs {
		queues.Exempt(p[0], p[1])
	}

	// discord session
	//  the prefix "Bot " is required for bot tokens
	sess, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		lg.Fatal("discord session error", zap.Error(err))
	}
	sess.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates | // voice presence for pregame and inactivity
		discordgo.IntentsGuildMembers

	// matchmaking core
	bus := events.New(lg.Named("bus"))
	led := ledger.NewKVLedger(kv)
	ratings := ledger.NewRatings(led, 5*time.Minute, lg.Named("ratings"))
	recorder := ledger.NewRecorder(led, kv, ledger.RecorderConfig{
		Timeout: cfg.LedgerTimeout(),
		Retries: cfg.LedgerRetries,
		Backoff: time.Second,
	}, lg.Named("ledger"))
	snapshots := store.NewSnapshots(kv)
	voice := disc.NewVoice(disc.VoiceConfig{
		GuildID:         cfg.GuildID,
		RequireToJoin:   cfg.VoiceRequireToJoin,
		CategoryIDs:     cfg.VoiceCategoryIDs,
		ChannelPrefixes: cfg.VoiceChannelPrefixes,
		AFKChannelID:    cfg.AFKChannelID,
	}, disc.SessionChannels(sess), lg.Named("voice"))

	testers, _ := cfg.Testers()
	coord := matchmaking.New(matchmaking.Deps{
		Queues:    queues,
		Bus:       bus,
		Ratings:   ratings,
		Recorder:  recorder,
		Snapshots: snapshots,
		Presence:  voice,
		Metrics:   mets,
		Log:       lg.Named("matchmaking"),
	}, matchmaking.Config{
		Pregame:      pregame.Config{Timeout: cfg.PregameTimeout(), Interval: cfg.PregameInterval()},
		Countdown:    cfg.Countdown(),
		PingCooldown: cfg.PingCooldown(),
		LedgerWait:   time.Duration(cfg.LedgerRetries+1) * cfg.LedgerTimeout(),
		Testers:      testers,
	})
	if err := coord.Restore(ctx); err != nil {
		lg.Warn("restore failed, starting empty", zap.Error(err))
	}

	// instance the app Bot and register all handlers
	// this layer keeps wiring separate from domain
	b := app.NewBot(app.Deps{
		Session:     sess,
		Config:      cfg,
		Coordinator: coord,
		Queues:      queues,
		Bus:         bus,
		Policy:      disc.NewPolicy(cfg.AdminRoleIDs, cfg.StaffRoleIDs, cfg.BannedRoleIDs, cfg.RequiredRoleIDs),
		Voice:       voice,
		Publisher:   disc.NewPublisher(sess, disc.SessionBotID(sess), lg.Named("publisher")),
		Ratings:     ratings,
		Raters:      led,
		Snapshots:   snapshots,
		Log:         lg.Named("app"),
	})

	// open websocket gateway
	if err := sess.Open(); err != nil {
		lg.Fatal("open gateway error", zap.Error(err))
	}
	defer sess.Close()

	if err := b.RegisterHandlers(); err != nil {
		lg.Fatal("register commands", zap.Error(err))
	}
	b.Start(ctx, extra...)

	lg.Info("🤖 bot ready", zap.String("config", cfg.Redacted()))

	// block the process till SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	lg.Info("shutting down")

	b.Stop()
	cancel()

	shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := coord.Persist(shutdown); err != nil {
		lg.Error("persist state", zap.Error(err))
	}
	coord.Close()
	_ = srv.Shutdown(shutdown)
	if lock != nil {
		if err := lock.Release(shutdown); err != nil {
			lg.Warn("release lock", zap.Error(err))
		}
	}
}
