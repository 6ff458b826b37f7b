package matchmaking

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ledger"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

// inSeries runs fn against matchID's engine. When fn reports the series
// ended the match is finalized after the match lock is released.
func (c *Coordinator) inSeries(matchID string, fn func(m *match) (*series.Series, error)) error {
	var (
		ended *series.Series
		m     *match
	)
	err := c.withStage(matchID, StageSeries, func(mm *match) error {
		m = mm
		s, err := fn(mm)
		ended = s
		return err
	})
	if err != nil {
		return err
	}
	if ended != nil {
		c.finish(m, *ended)
	} else {
		c.persist()
	}
	return nil
}

// RecordGame appends a game result. Only staff report results.
func (c *Coordinator) RecordGame(matchID string, level perm.Permission, winner series.Side, pick playlist.MapPick) error {
	if err := requireLevel(level, perm.Staff); err != nil {
		return err
	}
	return c.inSeries(matchID, func(m *match) (*series.Series, error) {
		res, err := m.engine.RecordGame(winner, pick)
		if err != nil {
			return nil, err
		}
		red, blue := res.Summary.Score()
		events.Publish(c.deps.Bus, events.GameRecorded{MatchID: m.id, Game: res.Game, Winner: string(winner), ScoreA: red, ScoreB: blue})
		if res.Ended {
			return &res.Summary, nil
		}
		return nil, nil
	})
}

// VoteEnd toggles voter's end-series vote.
func (c *Coordinator) VoteEnd(matchID string, voter int64, level perm.Permission) (bool, error) {
	var held bool
	err := c.inSeries(matchID, func(m *match) (*series.Series, error) {
		h, res, err := m.engine.VoteEnd(voter, level)
		if err != nil {
			return nil, err
		}
		held = h
		n, need := m.engine.EndVotes()
		events.Publish(c.deps.Bus, events.VoteTallyChanged{
			MatchID: m.id, Kind: "end", Counts: map[string]int{"end": n}, Total: n, Needed: need,
		})
		if res.Ended {
			return &res.Summary, nil
		}
		return nil, nil
	})
	return held, err
}

// Swap exchanges a red and a blue player. Staff only.
func (c *Coordinator) Swap(matchID string, level perm.Permission, red, blue int64) error {
	if err := requireLevel(level, perm.Staff); err != nil {
		return err
	}
	return c.inSeries(matchID, func(m *match) (*series.Series, error) {
		sw, err := m.engine.Swap(red, blue)
		if err != nil {
			return nil, err
		}
		events.Publish(c.deps.Bus, events.PlayersSwapped{MatchID: m.id, AToB: sw.RedToBlue, BToA: sw.BlueToRed})
		return nil, nil
	})
}

// CorrectGame changes a recorded result. Admin only.
func (c *Coordinator) CorrectGame(matchID string, by int64, level perm.Permission, game int, winner series.Side) error {
	if err := requireLevel(level, perm.Admin); err != nil {
		return err
	}
	return c.inSeries(matchID, func(m *match) (*series.Series, error) {
		res, err := m.engine.CorrectGame(game, winner, by)
		if err != nil {
			return nil, err
		}
		red, blue := res.Summary.Score()
		events.Publish(c.deps.Bus, events.GameRecorded{MatchID: m.id, Game: game, Winner: string(winner), ScoreA: red, ScoreB: blue})
		if res.Ended {
			return &res.Summary, nil
		}
		return nil, nil
	})
}

// AdminEnd ends a series without a vote. Admin only.
func (c *Coordinator) AdminEnd(matchID string, by int64, level perm.Permission) error {
	if err := requireLevel(level, perm.Admin); err != nil {
		return err
	}
	return c.inSeries(matchID, func(m *match) (*series.Series, error) {
		s, err := m.engine.AdminEnd(by)
		if err != nil {
			return nil, err
		}
		return &s, nil
	})
}

// finish releases the match and reports the outcome. The ledger write runs
// in the background with a bounded budget; a failure never reopens the
// series.
func (c *Coordinator) finish(m *match, s series.Series) {
	if !c.remove(m) {
		return
	}
	released := c.deps.Queues.Release(m.id)
	red, blue := s.Score()
	c.deps.Metrics.SeriesEnded(m.queue, s.EndReason, s.EndedAt.Sub(s.StartedAt))
	c.log.Info("match finished", zap.String("match", m.id), zap.String("winner", string(s.Winner)), zap.Int("released", len(released)))
	events.Publish(c.deps.Bus, events.SeriesEnded{
		MatchID: m.id, Queue: m.queue, Label: s.Label(), Winner: string(s.Winner),
		ScoreA: red, ScoreB: blue, Reason: s.EndReason,
		TeamA: slices.Clone(s.Red), TeamB: slices.Clone(s.Blue),
	})

	c.goBackground(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LedgerWait)
		defer cancel()
		if err := c.deps.Snapshots.Archive(ctx, s); err != nil {
			c.log.Error("archive series", zap.String("match", s.ID), zap.Error(err))
		}
		if s.Test || s.EndReason == series.EndCancelled {
			return
		}
		err := c.deps.Recorder.Record(ctx, s)
		if err != nil {
			c.deps.Metrics.LedgerFailure()
			events.Publish(c.deps.Bus, events.LedgerWriteFailed{MatchID: s.ID, Err: err.Error(), Queued: errors.Is(err, ledger.ErrQueued)})
			return
		}
		c.deps.Ratings.Invalidate(s.Participants()...)
	})
	c.persist()
}
