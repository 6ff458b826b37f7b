package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

type Config struct {
	Token   string `env:"DISCORD_BOT_TOKEN"`
	AppID   string `env:"DISCORD_APP_ID"`
	GuildID string `env:"DISCORD_GUILD_ID"`

	// Channels
	QueueChannelID string `env:"DISCORD_QUEUE_CHANNEL_ID"` // queue panels and match cards
	StaffChannelID string `env:"DISCORD_STAFF_CHANNEL_ID"` // unrated players, ledger failures

	AdminRoleIDs    []string `env:"ADMIN_ROLE_IDS" envSeparator:","`
	StaffRoleIDs    []string `env:"STAFF_ROLE_IDS" envSeparator:","`
	BannedRoleIDs   []string `env:"BANNED_ROLE_IDS" envSeparator:","`
	RequiredRoleIDs []string `env:"REQUIRED_ROLE_IDS" envSeparator:","`
	TesterUserIDs   []string `env:"TESTER_USER_IDS" envSeparator:","`

	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"h2mm:"`

	// Timings, all in seconds
	PregameTimeoutSec   int `env:"PREGAME_TIMEOUT_SECONDS" envDefault:"600"`
	PregameIntervalSec  int `env:"PREGAME_INTERVAL_SECONDS" envDefault:"5"`
	CountdownSec        int `env:"COUNTDOWN_SECONDS" envDefault:"15"`
	InactivityIdleSec   int `env:"INACTIVITY_IDLE_SECONDS" envDefault:"3600"`
	InactivityWindowSec int `env:"INACTIVITY_WINDOW_SECONDS" envDefault:"300"`
	SweepIntervalSec    int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	LedgerTimeoutSec    int `env:"LEDGER_TIMEOUT_SECONDS" envDefault:"5"`
	LedgerRetries       int `env:"LEDGER_RETRIES" envDefault:"3"`
	PingCooldownSec     int `env:"PING_COOLDOWN_SECONDS" envDefault:"900"`

	// Voice presence
	VoiceRequireToJoin   bool     `env:"VOICE_REQUIRE_TO_JOIN" envDefault:"false"`
	VoiceCategoryIDs     []string `env:"VOICE_ALLOWED_CATEGORY_IDS" envSeparator:","`
	VoiceChannelPrefixes []string `env:"VOICE_ALLOWED_CHANNEL_PREFIXES" envSeparator:","`
	AFKChannelID         string   `env:"AFK_CHANNEL_ID"`

	// Queue pairs a player may sit in at once, "a/b" each.
	ExemptQueuePairs []string `env:"EXEMPT_QUEUE_PAIRS" envSeparator:","`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9100"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("missing DISCORD_BOT_TOKEN")
	}
	if c.AppID == "" {
		return errors.New("missing DISCORD_APP_ID")
	}
	if c.GuildID == "" {
		return errors.New("missing DISCORD_GUILD_ID")
	}
	if c.QueueChannelID == "" {
		return errors.New("missing DISCORD_QUEUE_CHANNEL_ID")
	}
	if c.PregameIntervalSec <= 0 || c.PregameTimeoutSec < c.PregameIntervalSec {
		return fmt.Errorf("pregame timeout %ds must cover interval %ds", c.PregameTimeoutSec, c.PregameIntervalSec)
	}
	if c.SweepIntervalSec <= 0 {
		return errors.New("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if _, err := c.Testers(); err != nil {
		return err
	}
	if _, err := c.ExemptPairs(); err != nil {
		return err
	}
	return nil
}

// ExemptPairs parses EXEMPT_QUEUE_PAIRS.
func (c *Config) ExemptPairs() ([][2]string, error) {
	var out [][2]string
	for _, raw := range c.ExemptQueuePairs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		a, b, ok := strings.Cut(raw, "/")
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf("EXEMPT_QUEUE_PAIRS: %q is not a queue pair", raw)
		}
		out = append(out, [2]string{a, b})
	}
	return out, nil
}

// Testers parses TESTER_USER_IDS as discord snowflakes.
func (c *Config) Testers() ([]int64, error) {
	out := make([]int64, 0, len(c.TesterUserIDs))
	for _, raw := range c.TesterUserIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TESTER_USER_IDS: %q is not a user id", raw)
		}
		out = append(out, id)
	}
	return out, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) PregameTimeout() time.Duration   { return seconds(c.PregameTimeoutSec) }
func (c *Config) PregameInterval() time.Duration  { return seconds(c.PregameIntervalSec) }
func (c *Config) Countdown() time.Duration        { return seconds(c.CountdownSec) }
func (c *Config) InactivityIdle() time.Duration   { return seconds(c.InactivityIdleSec) }
func (c *Config) InactivityWindow() time.Duration { return seconds(c.InactivityWindowSec) }
func (c *Config) SweepInterval() time.Duration    { return seconds(c.SweepIntervalSec) }
func (c *Config) LedgerTimeout() time.Duration    { return seconds(c.LedgerTimeoutSec) }
func (c *Config) PingCooldown() time.Duration     { return seconds(c.PingCooldownSec) }

func (c *Config) Redacted() string {
	tok := "[set]"
	if c.Token == "" {
		tok = "[empty]"
	}
	redis := "memory"
	if c.RedisAddr != "" {
		redis = fmt.Sprintf("%s/%d", c.RedisAddr, c.RedisDB)
	}
	return fmt.Sprintf(
		"appID=%s guildID=%s queueChannelID=%s staffChannelID=%s redis=%s adminRoles=%d staffRoles=%d testers=%d token=%s",
		c.AppID, c.GuildID, c.QueueChannelID, c.StaffChannelID, redis,
		len(c.AdminRoleIDs), len(c.StaffRoleIDs), len(c.TesterUserIDs), tok,
	)
}
