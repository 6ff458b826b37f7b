package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/store"
)

var fast = RecorderConfig{Timeout: time.Second, Retries: 2}

func TestRecordSuccess(t *testing.T) {
	mem := NewMemory()
	rec := NewRecorder(mem, store.NewMemoryKV(), fast, nil)
	require.NoError(t, rec.Record(context.Background(), series.Series{ID: "m1", Winner: series.Red}))
	got := mem.Recorded()
	require.Len(t, got, 1)
	assert.Equal(t, series.Red, got[0].Winner)
}

func TestRecordRetries(t *testing.T) {
	mem := NewMemory()
	mem.FailNext(1)
	rec := NewRecorder(mem, store.NewMemoryKV(), fast, nil)
	require.NoError(t, rec.Record(context.Background(), series.Series{ID: "m1"}))
	assert.Len(t, mem.Recorded(), 1)
}

func TestRecordFailureQueuesAndReconciles(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mem := NewMemory()
	mem.FailNext(2)
	kv := store.NewMemoryKV()
	rec := NewRecorder(mem, kv, fast, zap.New(core))
	ctx := context.Background()

	err := rec.Record(ctx, series.Series{ID: "m7", Winner: series.Blue})
	require.ErrorIs(t, err, ErrQueued)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, mem.Recorded())
	assert.Equal(t, 1, logs.FilterMessage("ledger write failed").Len())

	n, err := rec.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mem.FailNext(1)
	done, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	done, err = rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	require.Len(t, mem.Recorded(), 1)
	assert.Equal(t, "m7", mem.Recorded()[0].ID)

	n, _ = rec.Pending(ctx)
	assert.Zero(t, n)
}

func TestRecordKeysAreOrdered(t *testing.T) {
	rec := NewRecorder(NewMemory(), store.NewMemoryKV(), fast, nil)
	a, b := rec.newKey(), rec.newKey()
	assert.Less(t, a, b)
}

type countingLedger struct {
	*Memory
	calls atomic.Int32
	gate  chan struct{}
}

func (c *countingLedger) Rating(ctx context.Context, player int64) (int, bool, error) {
	c.calls.Add(1)
	<-c.gate
	return c.Memory.Rating(ctx, player)
}

func TestRatingsCollapseConcurrentLookups(t *testing.T) {
	l := &countingLedger{Memory: NewMemory(), gate: make(chan struct{})}
	l.SetRating(1, 1400, 20)
	r := NewRatings(l, time.Minute, nil)

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, _ = r.Get(context.Background(), 1)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 1400, v)
	}
	assert.LessOrEqual(t, l.calls.Load(), int32(8))

	before := l.calls.Load()
	mmr, rated, err := r.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, rated)
	assert.Equal(t, 1400, mmr)
	assert.Equal(t, before, l.calls.Load(), "cached")
}

func TestLookupDefaults(t *testing.T) {
	mem := NewMemory()
	mem.SetRating(1, 1200, 10)
	r := NewRatings(mem, time.Minute, nil)

	mmr, unrated := r.Lookup(context.Background(), []int64{1, 2, 3})
	assert.Equal(t, map[int64]int{1: 1200, 2: DefaultRating, 3: DefaultRating}, mmr)
	assert.Equal(t, []int64{2, 3}, unrated)

	mem.SetRating(2, 900, 5)
	r.Invalidate(2)
	mmr, unrated = r.Lookup(context.Background(), []int64{2})
	assert.Equal(t, 900, mmr[2])
	assert.Empty(t, unrated)
}

func TestLookupFailureIsNotUnrated(t *testing.T) {
	mem := NewMemory()
	mem.FailNext(1)
	r := NewRatings(mem, time.Minute, nil)
	mmr, unrated := r.Lookup(context.Background(), []int64{4})
	assert.Equal(t, DefaultRating, mmr[4])
	assert.Empty(t, unrated)
}
