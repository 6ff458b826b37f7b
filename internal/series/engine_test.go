package series

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
)

var at = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newMLG(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return at })}, opts...)
	return New(Params{
		ID:     "m1",
		Queue:  "mlg",
		Format: playlist.Formats[playlist.MLG4v4],
		Number: 7,
		Method: "balanced",
		Red:    []int64{1, 2, 3, 4},
		Blue:   []int64{5, 6, 7, 8},
	}, opts...)
}

func record(t *testing.T, e *Engine, w Side, pick playlist.MapPick) Result {
	t.Helper()
	res, err := e.RecordGame(w, pick)
	require.NoError(t, err)
	return res
}

func TestAutoThreshold(t *testing.T) {
	e := newMLG(t)
	for i, w := range []Side{Red, Red, Blue, Red} {
		res, err := e.RecordGame(w, playlist.MapPick{})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.Game)
		assert.False(t, res.Ended)
	}
	res, err := e.RecordGame(Red, playlist.MapPick{Map: "Midship", Gametype: "Team Slayer"})
	require.NoError(t, err)
	require.True(t, res.Ended)
	assert.Equal(t, Red, res.Summary.Winner)
	assert.Equal(t, EndThreshold, res.Summary.EndReason)
	red, blue := res.Summary.Score()
	assert.Equal(t, 4, red)
	assert.Equal(t, 1, blue)
	assert.Equal(t, "Series 7", res.Summary.Label())
	assert.Equal(t, "Midship", res.Summary.Games[4].Map)
}

func TestRecordAfterEnd(t *testing.T) {
	e := newMLG(t)
	_, err := e.AdminEnd(100)
	require.NoError(t, err)

	_, err = e.RecordGame(Blue, playlist.MapPick{})
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorIs(t, err, ErrEnded)
	assert.Empty(t, e.Snapshot().Games)

	_, err = e.End(EndAdmin)
	assert.ErrorIs(t, err, ErrEnded)
}

func TestInvalidWinner(t *testing.T) {
	e := newMLG(t)
	_, err := e.RecordGame(Pending, playlist.MapPick{})
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestTieEndsPending(t *testing.T) {
	e := newMLG(t)
	record(t, e, Red, playlist.MapPick{})
	record(t, e, Blue, playlist.MapPick{})
	red, blue, w := e.Summary()
	assert.Equal(t, [3]any{1, 1, Side("")}, [3]any{red, blue, w})
	s, err := e.End(EndAdmin)
	require.NoError(t, err)
	assert.Equal(t, Pending, s.Winner)
}

func TestVoteEndByParticipants(t *testing.T) {
	e := newMLG(t)
	record(t, e, Blue, playlist.MapPick{})

	_, _, err := e.VoteEnd(99, perm.Participant)
	assert.ErrorIs(t, err, ErrNotEligible)

	for _, v := range []int64{1, 2, 3, 5} {
		held, res, err := e.VoteEnd(v, perm.Participant)
		require.NoError(t, err)
		assert.True(t, held)
		assert.False(t, res.Ended)
	}
	// toggling retracts
	held, _, err := e.VoteEnd(5, perm.Participant)
	require.NoError(t, err)
	assert.False(t, held)
	n, need := e.EndVotes()
	assert.Equal(t, 3, n)
	assert.Equal(t, 5, need)

	_, _, _ = e.VoteEnd(5, perm.Participant)
	_, res, err := e.VoteEnd(6, perm.Participant)
	require.NoError(t, err)
	require.True(t, res.Ended)
	assert.Equal(t, EndVote, res.Summary.EndReason)
	assert.Equal(t, Blue, res.Summary.Winner)

	_, _, err = e.VoteEnd(7, perm.Participant)
	assert.ErrorIs(t, err, ErrEnded)
}

func TestVoteEndByStaff(t *testing.T) {
	e := newMLG(t)
	_, res, err := e.VoteEnd(100, perm.Staff)
	require.NoError(t, err)
	assert.False(t, res.Ended)
	_, res, err = e.VoteEnd(101, perm.Admin)
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Equal(t, Pending, res.Summary.Winner)
}

func TestTestSeries(t *testing.T) {
	e := New(Params{
		ID: "t1", Format: playlist.Formats[playlist.MLG4v4], Number: 2, Test: true,
		Red: []int64{1, 2, 3, 4}, Blue: []int64{5, 6, 7, 8}, Testers: []int64{1, 9},
	})
	for range 5 {
		res := record(t, e, Red, playlist.MapPick{})
		assert.False(t, res.Ended, "test series never auto-ends")
	}
	snap := e.Snapshot()
	assert.Equal(t, "Test 2", snap.Label())

	_, _, err := e.VoteEnd(2, perm.Admin)
	assert.ErrorIs(t, err, ErrNotEligible)

	_, res, err := e.VoteEnd(1, perm.Participant)
	require.NoError(t, err)
	assert.False(t, res.Ended)
	_, res, err = e.VoteEnd(9, perm.Participant)
	require.NoError(t, err)
	assert.True(t, res.Ended)
}

func TestSwap(t *testing.T) {
	e := newMLG(t)
	record(t, e, Red, playlist.MapPick{})

	sw, err := e.Swap(2, 6)
	require.NoError(t, err)
	assert.Equal(t, 2, sw.Game)

	s := e.Snapshot()
	assert.Equal(t, []int64{1, 6, 3, 4}, s.Red)
	assert.Equal(t, []int64{5, 2, 7, 8}, s.Blue)
	assert.Len(t, s.Games, 1)
	require.Len(t, s.Swaps, 1)

	_, err = e.Swap(5, 1)
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrNotOnTeam)
	assert.Equal(t, []int64{5, 1}, ce.Players)
}

func TestSwapKeepsPairsTogether(t *testing.T) {
	e := New(Params{
		ID: "m2", Format: playlist.Formats[playlist.TeamHardcore],
		Red: []int64{1, -1, 2, 3}, Blue: []int64{4, 5, 6, 7},
		Pairs: []balance.Pair{{Host: 1, Guest: -1}},
	})

	for _, c := range [][2]int64{{1, 4}, {-1, 4}} {
		_, err := e.Swap(c[0], c[1])
		var ce *ConstraintError
		require.ErrorAs(t, err, &ce)
		assert.ErrorIs(t, err, ErrPairSplit)
		assert.Equal(t, []int64{1, -1}, ce.Players)
	}
	s := e.Snapshot()
	assert.Equal(t, []int64{1, -1, 2, 3}, s.Red)
	assert.Empty(t, s.Swaps)

	_, err := e.Swap(2, 4)
	require.NoError(t, err)
	assert.Equal(t, []balance.Pair{{Host: 1, Guest: -1}}, e.Snapshot().Pairs)
}

func TestCorrectGame(t *testing.T) {
	e := newMLG(t)
	for _, w := range []Side{Red, Red, Red, Blue} {
		record(t, e, w, playlist.MapPick{})
	}
	_, err := e.CorrectGame(9, Red, 100)
	assert.ErrorIs(t, err, ErrNoSuchGame)

	res, err := e.CorrectGame(4, Red, 100)
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Equal(t, Red, res.Summary.Winner)
	require.Len(t, res.Summary.Corrections, 1)
	assert.Equal(t, Correction{Game: 4, From: Blue, To: Red, By: 100, At: at}, res.Summary.Corrections[0])
}

func TestSnapshotIsDetached(t *testing.T) {
	e := newMLG(t)
	record(t, e, Red, playlist.MapPick{})
	s := e.Snapshot()
	s.Red[0] = 42
	s.Games[0].Winner = Blue
	assert.Equal(t, int64(1), e.Snapshot().Red[0])
	assert.Equal(t, Red, e.Snapshot().Games[0].Winner)
}

func TestRoundTrip(t *testing.T) {
	e := newMLG(t)
	for _, w := range []Side{Red, Blue, Red} {
		record(t, e, w, playlist.MapPick{Map: "Lockout"})
	}
	_, err := e.Swap(1, 5)
	require.NoError(t, err)

	raw, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)
	var decoded Series
	require.NoError(t, json.Unmarshal(raw, &decoded))
	if diff := cmp.Diff(e.Snapshot(), decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	restored, err := Restore(decoded, WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	res := record(t, restored, Red, playlist.MapPick{})
	assert.False(t, res.Ended)
	res = record(t, restored, Red, playlist.MapPick{})
	assert.True(t, res.Ended, "threshold counting resumes after restore")
	assert.Equal(t, Red, res.Summary.Winner)
}

func TestEndVotesSurviveRestore(t *testing.T) {
	e := newMLG(t)
	for _, v := range []int64{1, 2, 3} {
		_, _, err := e.VoteEnd(v, perm.Participant)
		require.NoError(t, err)
	}
	_, _, err := e.VoteEnd(100, perm.Staff)
	require.NoError(t, err)

	raw, err := json.Marshal(e.Snapshot())
	require.NoError(t, err)
	var decoded Series
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, []EndBallot{{1, perm.Participant}, {2, perm.Participant}, {3, perm.Participant}, {100, perm.Staff}}, decoded.EndVotes)

	restored, err := Restore(decoded)
	require.NoError(t, err)
	n, _ := restored.EndVotes()
	assert.Equal(t, 4, n)

	// the fifth vote ends it as if there had been no restart
	_, res, err := restored.VoteEnd(5, perm.Participant)
	require.NoError(t, err)
	assert.True(t, res.Ended)
	assert.Equal(t, EndVote, res.Summary.EndReason)
}

func TestRestoreEnded(t *testing.T) {
	e := newMLG(t)
	s, err := e.Abort()
	require.NoError(t, err)
	assert.Equal(t, EndCancelled, s.EndReason)
	restored, err := Restore(s)
	require.NoError(t, err)
	assert.True(t, restored.Ended())
	_, err = restored.RecordGame(Red, playlist.MapPick{})
	assert.ErrorIs(t, err, ErrEnded)
}
