package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

const (
	stateKey      = "state"
	historyPrefix = "history:"
)

// Counters numbers series per playlist. Test series have their own sequence.
type Counters struct {
	Series map[playlist.ID]int `json:"series"`
	Test   map[playlist.ID]int `json:"test"`
}

// NewCounters returns empty counters.
func NewCounters() Counters {
	return Counters{Series: map[playlist.ID]int{}, Test: map[playlist.ID]int{}}
}

// Next increments and returns the counter for id.
func (c Counters) Next(id playlist.ID, test bool) int {
	m := c.Series
	if test {
		m = c.Test
	}
	m[id]++
	return m[id]
}

// State is everything needed to resume after a restart.
type State struct {
	Queues   queue.State     `json:"queues"`
	Series   []series.Series `json:"series"`
	Counters Counters        `json:"counters"`
	SavedAt  time.Time       `json:"saved_at"`
}

// Snapshots saves and loads State and archives finished series.
type Snapshots struct {
	kv KV
}

func NewSnapshots(kv KV) *Snapshots { return &Snapshots{kv: kv} }

// Save writes st in full.
func (s *Snapshots) Save(ctx context.Context, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return s.kv.Set(ctx, stateKey, raw)
}

// Load reads the last saved State. A missing state yields empty counters
// and ok=false.
func (s *Snapshots) Load(ctx context.Context) (State, bool, error) {
	raw, err := s.kv.Get(ctx, stateKey)
	if errors.Is(err, ErrNotFound) {
		return State{Counters: NewCounters()}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("decode state: %w", err)
	}
	if st.Counters.Series == nil {
		st.Counters.Series = map[playlist.ID]int{}
	}
	if st.Counters.Test == nil {
		st.Counters.Test = map[playlist.ID]int{}
	}
	return st, true, nil
}

func historyKey(id playlist.ID, match string) string {
	return historyPrefix + string(id) + ":" + match
}

// Archive stores a finished series under history:<playlist>:<match>.
func (s *Snapshots) Archive(ctx context.Context, sr series.Series) error {
	raw, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("encode series %s: %w", sr.ID, err)
	}
	return s.kv.Set(ctx, historyKey(sr.Format.ID, sr.ID), raw)
}

// History returns archived series of a playlist ordered by key.
func (s *Snapshots) History(ctx context.Context, id playlist.ID) ([]series.Series, error) {
	keys, err := s.kv.Keys(ctx, historyPrefix+string(id)+":")
	if err != nil {
		return nil, err
	}
	out := make([]series.Series, 0, len(keys))
	for _, k := range keys {
		raw, err := s.kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		var sr series.Series
		if err := json.Unmarshal(raw, &sr); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		out = append(out, sr)
	}
	return out, nil
}
