package queue

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
)

func invariant(t *testing.T, m *Manager) {
	t.Helper()
	qs := m.Queues()
	// 1) capacity: a queue never rests at or above capacity
	for _, q := range qs {
		if len(q.Entries) >= q.Capacity() {
			t.Fatalf("queue %s resting at %d/%d", q.ID, len(q.Entries), q.Capacity())
		}
	}
	// 2) no duplicates within a queue, no locked player left waiting
	for _, q := range qs {
		seen := map[int64]bool{}
		for _, e := range q.Entries {
			if seen[e.Player] {
				t.Fatalf("duplicate player %d in %s", e.Player, q.ID)
			}
			seen[e.Player] = true
			if id, busy := m.InMatch(e.Player); busy {
				t.Fatalf("player %d waiting in %s while locked in %s", e.Player, q.ID, id)
			}
		}
	}
}

func newTestManager(t *testing.T, ids ...playlist.ID) *Manager {
	t.Helper()
	n := 0
	m := NewManager(WithMatchIDs(func() string { n++; return fmt.Sprintf("m%d", n) }))
	for _, id := range ids {
		_, err := m.CreateQueue(string(id), playlist.Formats[id])
		require.NoError(t, err)
	}
	return m
}

func TestJoinLeaveBasic(t *testing.T) {
	m := newTestManager(t, playlist.MLG4v4)

	for p := int64(1); p <= 3; p++ {
		res, err := m.Join("mlg_4v4", p, "u")
		require.NoError(t, err)
		assert.Nil(t, res.Drained)
	}
	_, err := m.Join("mlg_4v4", 2, "u")
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	q, err := m.Leave("mlg_4v4", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, q.Players())

	_, err = m.Leave("mlg_4v4", 1)
	assert.ErrorIs(t, err, ErrNotQueued)
	_, err = m.Join("nope", 1, "u")
	assert.ErrorIs(t, err, ErrNotFound)
	invariant(t, m)
}

func TestDrainOnFull(t *testing.T) {
	m := newTestManager(t, playlist.DoubleTeam)

	var drained *Drained
	for p := int64(1); p <= 4; p++ {
		res, err := m.Join("double_team", p, "u")
		require.NoError(t, err)
		drained = res.Drained
	}
	require.NotNil(t, drained)
	assert.Equal(t, "m1", drained.MatchID)
	assert.Equal(t, []int64{1, 2, 3, 4}, drained.Players())

	q, _ := m.GetQueue("double_team")
	assert.Empty(t, q.Entries)

	// locked players cannot leave or rejoin
	_, err := m.Leave("double_team", 1)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = m.Join("double_team", 1, "u")
	assert.ErrorIs(t, err, ErrAlreadyInActiveMatch)

	// fresh queue accepts new players immediately
	res, err := m.Join("double_team", 5, "u")
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, res.Queue.Players())

	released := m.Release("m1")
	assert.ElementsMatch(t, []int64{1, 2, 3, 4}, released)
	_, err = m.Join("double_team", 1, "u")
	assert.NoError(t, err)
	invariant(t, m)
}

func TestQueueExclusivity(t *testing.T) {
	m := newTestManager(t, playlist.MLG4v4, playlist.TeamHardcore, playlist.HeadToHead)

	_, err := m.Join("mlg_4v4", 1, "u")
	require.NoError(t, err)

	_, err = m.Join("team_hardcore", 1, "u")
	assert.ErrorIs(t, err, ErrAlreadyQueuedElsewhere)

	// head to head is not exclusive
	_, err = m.Join("head_to_head", 1, "u")
	assert.NoError(t, err)

	_, err = m.Leave("mlg_4v4", 1)
	require.NoError(t, err)
	_, err = m.Join("team_hardcore", 1, "u")
	assert.NoError(t, err)
}

func TestExemptPair(t *testing.T) {
	m := newTestManager(t, playlist.MLG4v4, playlist.DoubleTeam)
	m.Exempt("double_team", "mlg_4v4")

	_, err := m.Join("mlg_4v4", 1, "u")
	require.NoError(t, err)
	_, err = m.Join("double_team", 1, "u")
	assert.NoError(t, err)
}

func TestDrainPurgesOtherQueues(t *testing.T) {
	m := newTestManager(t, playlist.HeadToHead, playlist.DoubleTeam)

	_, err := m.Join("head_to_head", 1, "u")
	require.NoError(t, err)
	for p := int64(1); p <= 4; p++ {
		_, err := m.Join("double_team", p, "u")
		require.NoError(t, err)
	}
	q, _ := m.GetQueue("head_to_head")
	assert.Empty(t, q.Entries, "locked player removed from other queues")
	invariant(t, m)
}

func TestPauseAndClear(t *testing.T) {
	m := newTestManager(t, playlist.MLG4v4)

	_, err := m.Pause("mlg_4v4")
	require.NoError(t, err)
	_, err = m.Join("mlg_4v4", 1, "u")
	assert.ErrorIs(t, err, ErrQueueSuspended)

	_, _ = m.Resume("mlg_4v4")
	_, err = m.Join("mlg_4v4", 1, "u")
	assert.NoError(t, err)

	removed, err := m.Clear("mlg_4v4")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, removed)
}

func TestGuests(t *testing.T) {
	m := newTestManager(t, playlist.DoubleTeam)

	_, _, err := m.AddGuest("double_team", 1, "host", 1400)
	assert.ErrorIs(t, err, ErrNotQueued)

	_, err = m.Join("double_team", 1, "host")
	require.NoError(t, err)
	g, res, err := m.AddGuest("double_team", 1, "host", 1400)
	require.NoError(t, err)
	assert.Equal(t, 700, g.GuestMMR)
	assert.Equal(t, "host's Guest", g.Name)
	assert.Less(t, g.Player, int64(0))
	assert.Nil(t, res.Drained)

	_, _, err = m.AddGuest("double_team", 1, "host", 1400)
	assert.ErrorIs(t, err, ErrGuestExists)

	// host leaving takes the guest along
	q, err := m.Leave("double_team", 1)
	require.NoError(t, err)
	assert.Empty(t, q.Entries)

	_, err = m.RemoveGuest("double_team", 1)
	assert.ErrorIs(t, err, ErrNoGuest)
}

func TestGuestRejectedInHeadToHead(t *testing.T) {
	m := newTestManager(t, playlist.HeadToHead)
	_, err := m.Join("head_to_head", 1, "u")
	require.NoError(t, err)

	_, _, err = m.AddGuest("head_to_head", 1, "u", 1400)
	assert.ErrorIs(t, err, ErrGuestNotAllowed)

	q, _ := m.GetQueue("head_to_head")
	assert.Len(t, q.Entries, 1)
}

func TestGuestFillsQueue(t *testing.T) {
	m := newTestManager(t, playlist.DoubleTeam)
	for p := int64(1); p <= 3; p++ {
		_, err := m.Join("double_team", p, "u")
		require.NoError(t, err)
	}
	g, res, err := m.AddGuest("double_team", 2, "two", 1000)
	require.NoError(t, err)
	require.NotNil(t, res.Drained)
	pairs := Pairs(res.Drained.Entries)
	require.Len(t, pairs, 1)
	assert.Equal(t, int64(2), pairs[0].Host)
	assert.Equal(t, g.Player, pairs[0].Guest)
	assert.Equal(t, map[int64]int{g.Player: 500}, GuestRatings(res.Drained.Entries))
}

func TestDoubleDrainIsInvariantViolation(t *testing.T) {
	m := newTestManager(t, playlist.HeadToHead)
	_, err := m.Join("head_to_head", 1, "u")
	require.NoError(t, err)
	m.MarkInMatch("other", []int64{2})

	// bypass join admission to simulate a caller sequencing bug
	m.mu.Lock()
	q := m.queues["head_to_head"]
	q.Entries = append(q.Entries, Entry{Player: 2})
	m.mu.Unlock()

	_, err = m.DrainIfFull("head_to_head")
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestRaceRandomOps(t *testing.T) {
	m := newTestManager(t, playlist.MLG4v4, playlist.DoubleTeam, playlist.HeadToHead)
	ids := []string{"mlg_4v4", "double_team", "head_to_head"}

	var (
		wg      sync.WaitGroup
		dmu     sync.Mutex
		drained = map[int64]int{}
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(gid)))
			for j := 0; j < 200; j++ {
				p := int64(1 + rng.Intn(26))
				q := ids[rng.Intn(len(ids))]
				switch rng.Intn(3) {
				case 0, 1:
					res, err := m.Join(q, p, "u")
					if err == nil && res.Drained != nil {
						dmu.Lock()
						for _, id := range res.Drained.Players() {
							drained[id]++
						}
						dmu.Unlock()
						m.Release(res.Drained.MatchID)
						dmu.Lock()
						for _, id := range res.Drained.Players() {
							drained[id]--
						}
						dmu.Unlock()
					}
					if err != nil && errors.Is(err, ErrInvariant) {
						t.Errorf("invariant: %v", err)
					}
				default:
					_, _ = m.Leave(q, p)
				}
			}
		}(g)
	}
	wg.Wait()

	invariant(t, m)
	for p, n := range drained {
		assert.Zero(t, n, "player %d", p)
	}
}
