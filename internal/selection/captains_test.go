package selection

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
)

func TestDraftProposeConfirmUndo(t *testing.T) {
	d, err := NewDraftWithCaptains(eight, nil, 4, 1, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, d.Propose(2, 3), ErrNotYourTurn)
	assert.ErrorIs(t, d.Propose(9, 3), ErrNotCaptain)
	assert.ErrorIs(t, d.Propose(1, 2), ErrNotInPool)

	require.NoError(t, d.Propose(1, 3))
	require.NoError(t, d.Cancel(1))
	st := d.State()
	assert.Equal(t, []int64{1}, st.TeamA)
	assert.Len(t, st.Pool, 6)
	assert.ErrorIs(t, d.Confirm(1), ErrNoPendingPick)

	require.NoError(t, d.Propose(1, 3))
	require.NoError(t, d.Confirm(1))
	require.NoError(t, d.Propose(2, 4))
	require.NoError(t, d.Confirm(2))

	st = d.State()
	assert.Equal(t, []int64{1, 3}, st.TeamA)
	assert.Equal(t, []int64{2, 4}, st.TeamB)
	assert.Equal(t, int64(1), st.Turn)

	require.NoError(t, d.Undo(1))
	st = d.State()
	assert.Equal(t, []int64{2}, st.TeamB)
	assert.Equal(t, []int64{4, 5, 6, 7, 8}, st.Pool)
	assert.Equal(t, int64(2), st.Turn)

	for _, step := range []struct{ cap, p int64 }{{2, 4}, {1, 5}, {2, 6}, {1, 7}, {2, 8}} {
		require.NoError(t, d.Propose(step.cap, step.p))
		require.NoError(t, d.Confirm(step.cap))
	}
	a, b, ok := d.Teams()
	require.True(t, ok)
	assert.Equal(t, []int64{1, 3, 5, 7}, a)
	assert.Equal(t, []int64{2, 4, 6, 8}, b)
	assert.ErrorIs(t, d.Propose(1, 3), ErrClosed)
}

func TestDraftKeepsPairsTogether(t *testing.T) {
	players := []int64{1, 2, 3, 4, 5, 6, 7, 9}
	pairs := []balance.Pair{{Host: 5, Guest: 9}}
	d, err := NewDraftWithCaptains(players, pairs, 4, 1, 2)
	require.NoError(t, err)

	for _, step := range []struct{ cap, p int64 }{{1, 3}, {2, 4}, {1, 6}} {
		require.NoError(t, d.Propose(step.cap, step.p))
		require.NoError(t, d.Confirm(step.cap))
	}
	assert.ErrorIs(t, d.Propose(2, 7), ErrInfeasiblePick)

	require.NoError(t, d.Propose(2, 9))
	require.NoError(t, d.Confirm(2))
	assert.Equal(t, []int64{2, 4, 9, 5}, d.State().TeamB)

	require.NoError(t, d.Undo(2))
	assert.Equal(t, []int64{5, 7, 9}, d.State().Pool)

	require.NoError(t, d.Propose(2, 5))
	require.NoError(t, d.Confirm(2))
	require.NoError(t, d.Propose(1, 7))
	require.NoError(t, d.Confirm(1))

	a, b, ok := d.Teams()
	require.True(t, ok)
	assert.NoError(t, ValidateTeams(players, a, b, pairs, 4))
}

func TestNewDraftRandomCaptains(t *testing.T) {
	pairs := []balance.Pair{{Host: 1, Guest: -1}}
	players := []int64{1, -1, 2, 3}
	for seed := int64(0); seed < 20; seed++ {
		d, err := NewDraft(players, pairs, 2, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		st := d.State()
		assert.NotContains(t, st.Captains[:], int64(-1), "guests are never captains")
		if st.Captains[0] == 1 {
			assert.Equal(t, []int64{1, -1}, st.TeamA)
		}
	}
}
