package matchmaking

import (
	"context"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/balance"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/perm"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/playlist"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/pregame"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/queue"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/selection"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

// Stage is where a match is in its lifecycle.
type Stage string

const (
	StagePregame   Stage = "pregame"
	StageSelection Stage = "selection"
	StageCountdown Stage = "countdown"
	StageDraft     Stage = "captains"
	StagePick      Stage = "players_pick"
	StageSeries    Stage = "series"
)

type match struct {
	mu      sync.Mutex
	id      string
	queue   string
	format  playlist.Format
	test    bool
	number  int
	entries []queue.Entry
	players []int64
	pairs   []balance.Pair
	stage   Stage

	ctx    context.Context
	cancel context.CancelFunc

	gate      *pregame.Gate
	selection *selection.TeamSelection
	countdown *selection.Countdown
	draft     *selection.Draft
	pick      *selection.Pick
	engine    *series.Engine
}

// voters are the non-guest players.
func (m *match) voters() []int64 {
	return lo.Filter(m.players, func(p int64, _ int) bool { return p > 0 })
}

// MatchView is a read-only summary of a match for rendering.
type MatchView struct {
	ID      string
	Queue   string
	Number  int
	Test    bool
	Stage   Stage
	Players []int64
	Series  *series.Series
}

func (m *match) viewLocked() MatchView {
	v := MatchView{ID: m.id, Queue: m.queue, Number: m.number, Test: m.test, Stage: m.stage, Players: slices.Clone(m.players)}
	if m.engine != nil {
		s := m.engine.Snapshot()
		v.Series = &s
	}
	return v
}

func (c *Coordinator) lookup(matchID string) (*match, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.matches[matchID]
	if !ok {
		return nil, ErrNoMatch
	}
	return m, nil
}

// Match returns a view of matchID.
func (c *Coordinator) Match(matchID string) (MatchView, error) {
	m, err := c.lookup(matchID)
	if err != nil {
		return MatchView{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked(), nil
}

// Matches returns views of every live match.
func (c *Coordinator) Matches() []MatchView {
	c.mu.Lock()
	ms := lo.Values(c.matches)
	c.mu.Unlock()
	out := make([]MatchView, 0, len(ms))
	for _, m := range ms {
		m.mu.Lock()
		out = append(out, m.viewLocked())
		m.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b MatchView) int { return a.Number - b.Number })
	return out
}

// MatchOf returns the match player is locked into.
func (c *Coordinator) MatchOf(player int64) (string, bool) {
	return c.deps.Queues.InMatch(player)
}

// OnDrain turns a drained queue into a match and starts its pregame gate.
func (c *Coordinator) OnDrain(d *queue.Drained) {
	ctx, cancel := context.WithCancel(c.root)
	m := &match{
		id:      d.MatchID,
		queue:   d.Queue,
		format:  d.Format,
		test:    d.Test,
		entries: slices.Clone(d.Entries),
		players: d.Players(),
		pairs:   queue.Pairs(d.Entries),
		stage:   StagePregame,
		ctx:     ctx,
		cancel:  cancel,
	}
	m.gate = pregame.New(m.voters(), c.deps.Presence, c.cfg.Pregame,
		pregame.WithLogger(c.log.With(zap.String("match", m.id))),
		pregame.WithEscalation(func(pending []int64, remaining time.Duration) {
			events.Publish(c.deps.Bus, events.PregameEscalation{MatchID: m.id, Pending: pending, Remaining: remaining})
		}),
	)
	c.mu.Lock()
	m.number = c.counters.Next(d.Format.ID, d.Test)
	c.matches[m.id] = m
	c.mu.Unlock()

	c.deps.Metrics.MatchFormed(d.Queue)
	c.log.Info("match formed", zap.String("match", m.id), zap.String("queue", m.queue), zap.Int("number", m.number))
	events.Publish(c.deps.Bus, events.MatchFormed{MatchID: m.id, Queue: m.queue, Players: slices.Clone(m.players)})
	c.goBackground(func() { c.runPregame(m) })
}

// Confirm marks player present at the pregame rendezvous.
func (c *Coordinator) Confirm(matchID string, player int64) error {
	m, err := c.lookup(matchID)
	if err != nil {
		return err
	}
	if m.gate == nil {
		return ErrWrongStage
	}
	if !m.gate.Confirm(player) {
		return selection.ErrNotParticipant
	}
	return nil
}

func (c *Coordinator) runPregame(m *match) {
	out, err := m.gate.Run(m.ctx)
	if err != nil || out.Cancelled {
		return
	}
	if !out.Ready {
		c.abortNoShow(m, out)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return
	}
	c.beginSelectionLocked(m)
}

func (c *Coordinator) abortNoShow(m *match, out pregame.Outcome) {
	if !c.remove(m) {
		return
	}
	released := c.deps.Queues.Release(m.id)
	slices.Sort(released)
	c.deps.Metrics.NoShows(m.queue, len(out.NoShows))
	c.log.Info("match aborted for no-shows", zap.String("match", m.id), zap.Int64s("no_shows", out.NoShows))
	events.Publish(c.deps.Bus, events.PlayerNoShow{MatchID: m.id, Queue: m.queue, NoShows: out.NoShows, Released: released})
	c.persist()
}

// remove drops m from the live set and cancels its tasks. It reports false
// when m was already gone.
func (c *Coordinator) remove(m *match) bool {
	c.mu.Lock()
	_, ok := c.matches[m.id]
	delete(c.matches, m.id)
	c.mu.Unlock()
	m.cancel()
	return ok
}

func (c *Coordinator) testers(m *match) []int64 {
	if !m.test {
		return nil
	}
	return slices.Clone(c.cfg.Testers)
}

func (c *Coordinator) beginSelectionLocked(m *match) {
	switch m.format.Selection {
	case playlist.SelectNone:
		c.startValidatedLocked(m, m.players[:m.format.TeamSize], m.players[m.format.TeamSize:], "none")
	case playlist.SelectAutoBalance:
		res, err := c.balanceLocked(m)
		if err != nil {
			c.log.Error("auto balance failed", zap.String("match", m.id), zap.Error(err))
			c.startValidatedLocked(m, m.players[:m.format.TeamSize], m.players[m.format.TeamSize:], "join_order")
			return
		}
		c.startSeriesLocked(m, res.TeamA, res.TeamB, string(selection.Balanced))
	default:
		m.stage = StageSelection
		m.selection = selection.NewTeamSelection(m.voters(), c.testers(m))
		c.publishSelectionLocked(m)
	}
}

// startValidatedLocked starts the series only when red and blue keep every
// host with their guest; otherwise the match is aborted.
func (c *Coordinator) startValidatedLocked(m *match, red, blue []int64, method string) {
	if err := selection.ValidateTeams(m.players, red, blue, m.pairs, m.format.TeamSize); err != nil {
		c.abortLocked(m, err)
		return
	}
	c.startSeriesLocked(m, red, blue, method)
}

func (c *Coordinator) abortLocked(m *match, reason error) {
	if !c.remove(m) {
		return
	}
	released := c.deps.Queues.Release(m.id)
	c.log.Warn("match aborted", zap.String("match", m.id), zap.String("stage", string(m.stage)), zap.Error(reason), zap.Int64s("released", released))
	events.Publish(c.deps.Bus, events.MatchCancelled{MatchID: m.id, Queue: m.queue, Stage: string(m.stage), Reason: reason.Error()})
	c.goBackground(c.persist)
}

func (c *Coordinator) publishSelectionLocked(m *match) {
	counts, total := m.selection.Tally()
	events.Publish(c.deps.Bus, events.VoteTallyChanged{MatchID: m.id, Kind: "selection", Counts: counts, Total: total, Needed: m.selection.Needed()})
}

func (c *Coordinator) balanceLocked(m *match) (balance.Result, error) {
	mmr, _ := c.deps.Ratings.Lookup(m.ctx, m.voters())
	for g, r := range queue.GuestRatings(m.entries) {
		mmr[g] = r
	}
	rating := func(p int64) int { return mmr[p] }
	if len(m.pairs) == 0 {
		return balance.BestSplit(m.players, rating, m.format.TeamSize)
	}
	return balance.Balance(m.players, rating, m.pairs, m.format.TeamSize)
}

// withStage runs fn on matchID when it is at stage.
func (c *Coordinator) withStage(matchID string, stage Stage, fn func(m *match) error) error {
	m, err := c.lookup(matchID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil {
		return ErrNoMatch
	}
	if m.stage != stage {
		return ErrWrongStage
	}
	return fn(m)
}

// VoteSelection records voter's team selection choice.
func (c *Coordinator) VoteSelection(matchID string, voter int64, level perm.Permission, method selection.Method) error {
	return c.withStage(matchID, StageSelection, func(m *match) error {
		got, ok, err := m.selection.Vote(voter, level, method)
		if err != nil {
			return err
		}
		c.publishSelectionLocked(m)
		if !ok {
			return nil
		}
		c.deps.Metrics.SelectionResolved(m.queue, string(got))
		c.log.Info("team selection resolved", zap.String("match", m.id), zap.String("method", string(got)))
		return c.applyMethodLocked(m, got)
	})
}

func (c *Coordinator) applyMethodLocked(m *match, method selection.Method) error {
	switch method {
	case selection.Balanced:
		res, err := c.balanceLocked(m)
		if err != nil {
			return err
		}
		cd := selection.NewCountdown(m.voters(), c.cfg.Countdown, c.now())
		m.countdown, m.stage = cd, StageCountdown
		events.Publish(c.deps.Bus, events.TeamsProposed{MatchID: m.id, TeamA: res.TeamA, TeamB: res.TeamB, Diff: res.Diff, Deadline: cd.Deadline()})
		c.goBackground(func() { c.runCountdown(m, cd, res) })

	case selection.Captains:
		var (
			d   *selection.Draft
			err error
		)
		c.withRand(func(r *rand.Rand) { d, err = selection.NewDraft(m.players, m.pairs, m.format.TeamSize, r) })
		if err != nil {
			return err
		}
		m.draft, m.stage = d, StageDraft
		c.publishDraftLocked(m)

	case selection.PlayersPick:
		m.pick, m.stage = selection.NewPick(m.players, m.pairs, m.format.TeamSize), StagePick
		c.publishPickLocked(m)
	}
	return nil
}

func (c *Coordinator) runCountdown(m *match, cd *selection.Countdown, res balance.Result) {
	v, err := cd.Wait(m.ctx)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx.Err() != nil || m.countdown != cd {
		return
	}
	m.countdown = nil
	if v == selection.Rejected {
		m.selection.Reopen()
		m.stage = StageSelection
		c.log.Info("balanced teams rejected", zap.String("match", m.id))
		events.Publish(c.deps.Bus, events.TeamsRejected{MatchID: m.id})
		c.publishSelectionLocked(m)
		return
	}
	c.startSeriesLocked(m, res.TeamA, res.TeamB, string(selection.Balanced))
}

// RejectTeams toggles voter's reject vote on proposed balanced teams.
func (c *Coordinator) RejectTeams(matchID string, voter int64, level perm.Permission) (bool, error) {
	var held bool
	err := c.withStage(matchID, StageCountdown, func(m *match) error {
		h, _, err := m.countdown.Reject(voter, level)
		if err != nil {
			return err
		}
		held = h
		events.Publish(c.deps.Bus, events.VoteTallyChanged{
			MatchID: m.id, Kind: "reject",
			Counts: map[string]int{"reject": m.countdown.Rejects()},
			Total:  m.countdown.Rejects(), Needed: m.countdown.Needed(),
		})
		return nil
	})
	return held, err
}

func (c *Coordinator) publishDraftLocked(m *match) {
	st := m.draft.State()
	var pending int64
	if len(st.Pending) > 0 {
		pending = st.Pending[0]
	}
	events.Publish(c.deps.Bus, events.DraftUpdated{
		MatchID: m.id, Method: string(selection.Captains),
		TeamA: st.TeamA, TeamB: st.TeamB, Pool: st.Pool, Turn: st.Turn, Pending: pending,
	})
}

func (c *Coordinator) afterDraftLocked(m *match) {
	c.publishDraftLocked(m)
	if a, b, ok := m.draft.Teams(); ok {
		c.startSeriesLocked(m, a, b, string(selection.Captains))
	}
}

// DraftPropose stages captain's pick of player.
func (c *Coordinator) DraftPropose(matchID string, captain, player int64) error {
	return c.withStage(matchID, StageDraft, func(m *match) error {
		if err := m.draft.Propose(captain, player); err != nil {
			return err
		}
		c.publishDraftLocked(m)
		return nil
	})
}

// DraftConfirm commits captain's staged pick.
func (c *Coordinator) DraftConfirm(matchID string, captain int64) error {
	return c.withStage(matchID, StageDraft, func(m *match) error {
		if err := m.draft.Confirm(captain); err != nil {
			return err
		}
		c.afterDraftLocked(m)
		return nil
	})
}

// DraftCancel drops captain's staged pick.
func (c *Coordinator) DraftCancel(matchID string, captain int64) error {
	return c.withStage(matchID, StageDraft, func(m *match) error {
		if err := m.draft.Cancel(captain); err != nil {
			return err
		}
		c.publishDraftLocked(m)
		return nil
	})
}

// DraftUndo reverts the last confirmed pick.
func (c *Coordinator) DraftUndo(matchID string, captain int64) error {
	return c.withStage(matchID, StageDraft, func(m *match) error {
		if err := m.draft.Undo(captain); err != nil {
			return err
		}
		c.publishDraftLocked(m)
		return nil
	})
}

func (c *Coordinator) publishPickLocked(m *match) {
	a, b, _ := m.pick.Teams()
	locked, of := m.pick.LockedIn()
	events.Publish(c.deps.Bus, events.DraftUpdated{MatchID: m.id, Method: string(selection.PlayersPick), TeamA: a, TeamB: b})
	events.Publish(c.deps.Bus, events.VoteTallyChanged{
		MatchID: m.id, Kind: "lock_in", Counts: map[string]int{"locked": locked}, Total: locked, Needed: of,
	})
}

// PickSide moves player into side during a players pick.
func (c *Coordinator) PickSide(matchID string, player int64, side selection.Side) error {
	return c.withStage(matchID, StagePick, func(m *match) error {
		if err := m.pick.Choose(player, side); err != nil {
			return err
		}
		c.publishPickLocked(m)
		return nil
	})
}

// LockIn locks player's side choice. It reports whether the lock-ins were
// reset because the buckets were uneven.
func (c *Coordinator) LockIn(matchID string, player int64) (bool, error) {
	var reset bool
	err := c.withStage(matchID, StagePick, func(m *match) error {
		out, err := m.pick.LockIn(player)
		if err != nil {
			return err
		}
		reset = out.Reset
		c.publishPickLocked(m)
		if out.Done {
			a, b, _ := m.pick.Teams()
			c.startSeriesLocked(m, a, b, string(selection.PlayersPick))
		}
		return nil
	})
	return reset, err
}

// SetTeams lets an admin skip selection with explicit rosters.
func (c *Coordinator) SetTeams(matchID string, level perm.Permission, red, blue []int64) error {
	if err := requireLevel(level, perm.Admin); err != nil {
		return err
	}
	m, err := c.lookup(matchID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.stage {
	case StageSelection, StageCountdown, StageDraft, StagePick:
	default:
		return ErrWrongStage
	}
	if err := selection.ValidateTeams(m.players, red, blue, m.pairs, m.format.TeamSize); err != nil {
		return err
	}
	m.countdown = nil
	c.startSeriesLocked(m, red, blue, "admin")
	return nil
}

func (c *Coordinator) startSeriesLocked(m *match, red, blue []int64, method string) {
	m.engine = series.New(series.Params{
		ID:      m.id,
		Queue:   m.queue,
		Format:  m.format,
		Number:  m.number,
		Test:    m.test,
		Method:  method,
		Red:     red,
		Blue:    blue,
		Testers: c.testers(m),
		Pairs:   m.pairs,
	}, series.WithLogger(c.log), series.WithClock(c.now))
	m.stage = StageSeries
	m.selection, m.draft, m.pick = nil, nil, nil

	s := m.engine.Snapshot()
	ev := events.SeriesStarted{MatchID: m.id, Queue: m.queue, Label: s.Label(), Method: method, TeamA: s.Red, TeamB: s.Blue}
	if m.format.ShowMap {
		if pick, ok := playlist.RandomMap(m.format.ID); ok {
			ev.Map, ev.Gametype = pick.Map, pick.Gametype
		}
	}
	c.log.Info("series started", zap.String("match", m.id), zap.String("label", ev.Label), zap.String("method", method))
	events.Publish(c.deps.Bus, ev)
	c.goBackground(c.persist)
}

// CancelMatch tears down matchID at any stage. Cancelled series are never
// reported to the ledger.
func (c *Coordinator) CancelMatch(matchID string, by int64, level perm.Permission) error {
	if err := requireLevel(level, perm.Staff); err != nil {
		return err
	}
	m, err := c.lookup(matchID)
	if err != nil {
		return err
	}
	if !c.remove(m) {
		return ErrNoMatch
	}
	m.mu.Lock()
	stage := m.stage
	if m.engine != nil {
		_, _ = m.engine.Abort()
	}
	m.mu.Unlock()

	released := c.deps.Queues.Release(m.id)
	c.log.Info("match cancelled", zap.String("match", m.id), zap.Int64("by", by), zap.String("stage", string(stage)), zap.Int64s("released", released))
	events.Publish(c.deps.Bus, events.MatchCancelled{MatchID: m.id, Queue: m.queue, By: by, Stage: string(stage)})
	c.persist()
	return nil
}
