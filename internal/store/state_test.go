package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_, err := kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	buf := []byte("x")
	require.NoError(t, kv.Set(ctx, "a:2", buf))
	buf[0] = 'y'
	require.NoError(t, kv.Set(ctx, "a:1", []byte("z")))
	require.NoError(t, kv.Set(ctx, "b", []byte("z")))

	v, err := kv.Get(ctx, "a:2")
	require.NoError(t, err)
	assert.Equal(t, "x", string(v))

	keys, err := kv.Keys(ctx, "a:")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "a:2"}, keys)

	require.NoError(t, kv.Delete(ctx, "a:1"))
	keys, _ = kv.Keys(ctx, "a:")
	assert.Equal(t, []string{"a:2"}, keys)
}

func TestCountersPerPlaylist(t *testing.T) {
	c := NewCounters()
	assert.Equal(t, 1, c.Next(playlist.MLG4v4, false))
	assert.Equal(t, 2, c.Next(playlist.MLG4v4, false))
	assert.Equal(t, 1, c.Next(playlist.DoubleTeam, false))
	assert.Equal(t, 1, c.Next(playlist.MLG4v4, true))
	assert.Equal(t, 3, c.Next(playlist.MLG4v4, false))
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	snaps := NewSnapshots(NewMemoryKV())

	st, ok, err := snaps.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, st.Counters.Next(playlist.MLG4v4, false))

	now := time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)
	want := State{
		Queues: queue.State{
			Queues: []queue.QueueState{{
				ID:      "mlg",
				Entries: []queue.EntryState{{Player: 1, Name: "one", JoinedAt: now, LastSeen: now}},
				Paused:  true,
			}},
			InMatch:  map[int64]string{5: "m1"},
			GuestSeq: 3,
		},
		Series: []series.Series{{
			ID: "m1", Queue: "mlg", Format: playlist.Formats[playlist.MLG4v4], Number: 4,
			Red: []int64{5, 6, 7, 8}, Blue: []int64{9, 10, 11, 12},
			Games:     []series.Game{{Winner: series.Red, Map: "Warlock", At: now}},
			StartedAt: now,
		}},
		Counters: Counters{Series: map[playlist.ID]int{playlist.MLG4v4: 4}, Test: map[playlist.ID]int{}},
		SavedAt:  now,
	}
	require.NoError(t, snaps.Save(ctx, want))

	got, ok, err := snaps.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	snaps := NewSnapshots(NewMemoryKV())
	mlg := playlist.Formats[playlist.MLG4v4]
	h2h := playlist.Formats[playlist.HeadToHead]

	require.NoError(t, snaps.Archive(ctx, series.Series{ID: "b", Format: mlg, Winner: series.Blue}))
	require.NoError(t, snaps.Archive(ctx, series.Series{ID: "a", Format: mlg, Winner: series.Red}))
	require.NoError(t, snaps.Archive(ctx, series.Series{ID: "c", Format: h2h}))

	got, err := snaps.History(ctx, playlist.MLG4v4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, series.Blue, got[1].Winner)
}
