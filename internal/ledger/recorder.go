package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
)

const outboxPrefix = "outbox:"

// RecorderConfig bounds each write attempt.
type RecorderConfig struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// DefaultRecorderConfig tries three times with a 5s budget each.
var DefaultRecorderConfig = RecorderConfig{Timeout: 5 * time.Second, Retries: 3, Backoff: 500 * time.Millisecond}

type outboxEntry struct {
	Key      string        `json:"key"`
	Series   series.Series `json:"series"`
	Attempts int           `json:"attempts"`
	LastErr  string        `json:"last_err"`
	QueuedAt time.Time     `json:"queued_at"`
}

// Recorder writes finished series to the ledger. Writes that still fail after
// the retry budget are parked in the KV outbox for Reconcile; the series
// itself stays finished either way.
type Recorder struct {
	ledger Ledger
	kv     store.KV
	cfg    RecorderConfig
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRecorder(l Ledger, kv store.KV, cfg RecorderConfig, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{
		ledger:  l,
		kv:      kv,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

func (r *Recorder) newKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(r.now()), r.entropy).String()
}

func (r *Recorder) attempt(ctx context.Context, key string, s series.Series) error {
	var err error
	for i := range max(r.cfg.Retries, 1) {
		if i > 0 && r.cfg.Backoff > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(err, ctx.Err())
			case <-time.After(r.cfg.Backoff * time.Duration(i)):
			}
		}
		actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		err = r.ledger.RecordOutcome(actx, key, s)
		cancel()
		if err == nil {
			return nil
		}
		r.log.Warn("ledger write attempt failed", zap.String("series", s.ID), zap.Int("attempt", i+1), zap.Error(err))
	}
	return err
}

// Record reports s. A non-nil error wraps ErrQueued when the outcome was
// parked for reconciliation.
func (r *Recorder) Record(ctx context.Context, s series.Series) error {
	key := r.newKey()
	err := r.attempt(ctx, key, s)
	if err == nil {
		r.log.Info("outcome recorded", zap.String("series", s.ID), zap.String("key", key))
		return nil
	}
	r.log.Error("ledger write failed", zap.String("series", s.ID), zap.String("key", key), zap.Error(err))

	raw, merr := json.Marshal(outboxEntry{Key: key, Series: s, Attempts: r.cfg.Retries, LastErr: err.Error(), QueuedAt: r.now()})
	if merr != nil {
		return fmt.Errorf("encode outbox entry: %w", merr)
	}
	if perr := r.kv.Set(context.WithoutCancel(ctx), outboxPrefix+key, raw); perr != nil {
		r.log.Error("outbox write failed", zap.String("series", s.ID), zap.Error(perr))
		return errors.Join(err, perr)
	}
	return fmt.Errorf("%w: %s: %w", ErrQueued, s.ID, err)
}

// Pending returns the number of parked outcomes.
func (r *Recorder) Pending(ctx context.Context) (int, error) {
	keys, err := r.kv.Keys(ctx, outboxPrefix)
	return len(keys), err
}

// Reconcile retries every parked outcome once, oldest first. It returns how
// many were delivered.
func (r *Recorder) Reconcile(ctx context.Context) (int, error) {
	keys, err := r.kv.Keys(ctx, outboxPrefix)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		raw, err := r.kv.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return done, err
		}
		var e outboxEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			r.log.Error("dropping corrupt outbox entry", zap.String("key", k), zap.Error(err))
			_ = r.kv.Delete(ctx, k)
			continue
		}
		actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		werr := r.ledger.RecordOutcome(actx, e.Key, e.Series)
		cancel()
		if werr != nil {
			e.Attempts++
			e.LastErr = werr.Error()
			if raw, err := json.Marshal(e); err == nil {
				_ = r.kv.Set(ctx, k, raw)
			}
			r.log.Warn("reconcile failed", zap.String("series", e.Series.ID), zap.Int("attempts", e.Attempts), zap.Error(werr))
			continue
		}
		if err := r.kv.Delete(ctx, k); err != nil {
			return done, err
		}
		done++
		r.log.Info("outcome reconciled", zap.String("series", e.Series.ID), zap.String("key", strings.TrimPrefix(k, outboxPrefix)))
	}
	return done, nil
}
