package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
)

// rating is the stored form of a player's standing.
type rating struct {
	MMR  int `json:"mmr"`
	Rank int `json:"rank"`
}

// KVLedger keeps ratings and outcomes in a store.KV. It is the system of
// record when no external stats service is configured.
type KVLedger struct {
	kv store.KV
}

func NewKVLedger(kv store.KV) *KVLedger { return &KVLedger{kv: kv} }

func ratingKey(player int64) string { return "rating:" + strconv.FormatInt(player, 10) }
func outcomeKey(key string) string  { return "outcome:" + key }

func (l *KVLedger) load(ctx context.Context, player int64) (rating, bool, error) {
	raw, err := l.kv.Get(ctx, ratingKey(player))
	if errors.Is(err, store.ErrNotFound) {
		return rating{MMR: DefaultRating, Rank: 1}, false, nil
	}
	if err != nil {
		return rating{}, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var r rating
	if err := json.Unmarshal(raw, &r); err != nil {
		return rating{}, false, fmt.Errorf("decode rating %d: %w", player, err)
	}
	return r, true, nil
}

func (l *KVLedger) Rating(ctx context.Context, player int64) (int, bool, error) {
	r, ok, err := l.load(ctx, player)
	return r.MMR, ok, err
}

func (l *KVLedger) Rank(ctx context.Context, player int64) (int, error) {
	r, _, err := l.load(ctx, player)
	return r.Rank, err
}

// SetRating stores a staff-assigned rating.
func (l *KVLedger) SetRating(ctx context.Context, player int64, mmr, rank int) error {
	if mmr <= 0 || rank <= 0 {
		return fmt.Errorf("rating for %d must be positive", player)
	}
	raw, err := json.Marshal(rating{MMR: mmr, Rank: rank})
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, ratingKey(player), raw)
}

// RecordOutcome stores s once per key.
func (l *KVLedger) RecordOutcome(ctx context.Context, key string, s series.Series) error {
	k := outcomeKey(key)
	if _, err := l.kv.Get(ctx, k); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := l.kv.Set(ctx, k, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Outcomes returns every recorded outcome in key order.
func (l *KVLedger) Outcomes(ctx context.Context) ([]series.Series, error) {
	keys, err := l.kv.Keys(ctx, "outcome:")
	if err != nil {
		return nil, err
	}
	out := make([]series.Series, 0, len(keys))
	for _, k := range keys {
		raw, err := l.kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		var s series.Series
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		out = append(out, s)
	}
	return out, nil
}
