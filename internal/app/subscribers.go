// internal/app/subscribers.go
package app

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/domain/events"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/selection"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/ui"
)

// Events are published synchronously, sometimes under coordinator locks, so
// every handler only enqueues; one worker renders in publish order.

func (b *Bot) enqueue(fn func()) {
	b.renderMu.RLock()
	defer b.renderMu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.render <- fn:
	default:
		b.Log.Warn("render queue full, dropping update")
	}
}

func (b *Bot) renderLoop() {
	defer b.renderWG.Done()
	for fn := range b.render {
		fn()
	}
}

// flush blocks until everything enqueued so far has rendered.
func (b *Bot) flush() {
	done := make(chan struct{})
	b.enqueue(func() { close(done) })
	<-done
}

func on[T any](b *Bot, fn func(T)) func() {
	return events.Subscribe(b.Bus, func(ev T) { b.enqueue(func() { fn(ev) }) })
}

func (b *Bot) StartEventSubscribers() func() {
	b.renderWG.Add(1)
	go b.renderLoop()

	cancels := []func(){
		on(b, func(ev events.QueueUpdated) { b.renderQueue(ev.Queue) }),
		on(b, b.onPinged),
		on(b, b.onUnrated),
		on(b, b.onPrompt),
		on(b, b.onRemoved),
		on(b, b.onFormed),
		on(b, b.onEscalation),
		on(b, b.onNoShow),
		on(b, b.onTally),
		on(b, b.onProposed),
		on(b, b.onRejected),
		on(b, b.onDraft),
		on(b, b.onStarted),
		on(b, func(ev events.GameRecorded) { b.renderSeries(ev.MatchID) }),
		on(b, func(ev events.PlayersSwapped) { b.renderSeries(ev.MatchID) }),
		on(b, b.onEnded),
		on(b, b.onCancelled),
		on(b, b.onLedgerFailed),
	}
	b.Log.Info("bus subscribers registered", zap.Int("count", len(cancels)))

	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

func matchKey(id string) string { return "match:" + id }

func (b *Bot) queueCh() string { return b.Config.QueueChannelID }

func (b *Bot) staffCh() string {
	if b.Config.StaffChannelID != "" {
		return b.Config.StaffChannelID
	}
	return b.Config.QueueChannelID
}

func (b *Bot) queueName(id string) string {
	if q, err := b.Queues.GetQueue(id); err == nil {
		return q.Name
	}
	return id
}

func (b *Bot) mentions(ps []int64) string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, b.names.Mention(p))
	}
	return strings.Join(out, " ")
}

func (b *Bot) publish(channel, key string, emb *discordgo.MessageEmbed, comps []discordgo.MessageComponent) {
	if err := b.Publisher.Publish(channel, key, emb, comps); err != nil {
		b.Log.Warn("publish failed", zap.String("key", key), zap.Error(err))
	}
}

// ---------- queues ----------

func (b *Bot) renderQueue(id string) {
	q, err := b.Queues.GetQueue(id)
	if err != nil {
		b.Log.Warn("render queue", zap.String("queue", id), zap.Error(err))
		return
	}
	b.names.PutEntries(q)
	b.publish(b.queueCh(), "queue:"+id, ui.QueueEmbed(q, b.names.Mention, b.now()), ui.QueueComponents(q, b.names.Entry))
}

func (b *Bot) onPinged(ev events.QueuePinged) {
	b.Publisher.Say(b.queueCh(), fmt.Sprintf("@here **%s** needs %d more! (%s is waiting)", b.queueName(ev.Queue), ev.Missing, b.names.Mention(ev.By)))
}

func (b *Bot) onUnrated(ev events.UnratedPlayerJoined) {
	b.Publisher.Say(b.staffCh(), fmt.Sprintf("🆕 %s joined **%s** without a rating. Use `/rating` to set one.", b.names.Mention(ev.Player), b.queueName(ev.Queue)))
}

func (b *Bot) onPrompt(ev events.InactivityPrompt) {
	b.Publisher.SayWith(b.queueCh(),
		fmt.Sprintf("%s are you still up for **%s**? Answer <t:%d:R> or you'll be removed.", b.names.Mention(ev.Player), b.queueName(ev.Queue), ev.Deadline.Unix()),
		ui.InactivityComponents())
}

func (b *Bot) onRemoved(ev events.InactivityRemoved) {
	b.Publisher.Say(b.queueCh(), fmt.Sprintf("%s was removed from **%s** (%s).", b.names.Mention(ev.Player), b.queueName(ev.Queue), ev.Reason))
}

// ---------- pregame ----------

func voters(ps []int64) []int64 {
	out := make([]int64, 0, len(ps))
	for _, p := range ps {
		if p > 0 {
			out = append(out, p)
		}
	}
	return out
}

func (b *Bot) onFormed(ev events.MatchFormed) {
	name := b.queueName(ev.Queue)
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.PregameEmbed(name, ev.Players, voters(ev.Players), b.names.Mention), ui.ReadyComponents(ev.MatchID))
	b.Publisher.Say(b.queueCh(), fmt.Sprintf("%s your **%s** match is ready!", b.mentions(voters(ev.Players)), name))
}

func (b *Bot) onEscalation(ev events.PregameEscalation) {
	v, err := b.Coordinator.Match(ev.MatchID)
	if err != nil {
		return
	}
	name := b.queueName(v.Queue)
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.PregameEmbed(name, v.Players, ev.Pending, b.names.Mention), ui.ReadyComponents(ev.MatchID))
	b.Publisher.Say(b.queueCh(), fmt.Sprintf("%s join voice for **%s**, %d min left.", b.mentions(ev.Pending), name, int(ev.Remaining.Minutes())))
}

func (b *Bot) onNoShow(ev events.PlayerNoShow) {
	name := b.queueName(ev.Queue)
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.CancelledEmbed(name, "No-show: "+b.mentions(ev.NoShows)), nil)
	b.Publisher.Forget(b.queueCh(), matchKey(ev.MatchID))
	b.Publisher.Say(b.queueCh(), fmt.Sprintf("**%s** match cancelled, %s did not show up.", name, b.mentions(ev.NoShows)))
}

// ---------- selection ----------

func (b *Bot) onTally(ev events.VoteTallyChanged) {
	switch ev.Kind {
	case "selection":
		b.publish(b.queueCh(), matchKey(ev.MatchID), ui.TallyEmbed("Team selection", ev.Counts, ev.Total, ev.Needed), ui.SelectionComponents(ev.MatchID))
	case "reject":
		b.Publisher.Say(b.queueCh(), fmt.Sprintf("👎 %d/%d reject votes.", ev.Total, ev.Needed))
	case "end":
		b.Publisher.Say(b.queueCh(), fmt.Sprintf("🏁 %d/%d votes to end the series.", ev.Total, ev.Needed))
	}
}

func (b *Bot) onProposed(ev events.TeamsProposed) {
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.ProposalEmbed(ev, b.names.Mention), ui.RejectComponents(ev.MatchID))
}

func (b *Bot) onRejected(ev events.TeamsRejected) {
	b.Publisher.Say(b.queueCh(), "Balanced teams were rejected, vote again.")
}

func (b *Bot) onDraft(ev events.DraftUpdated) {
	comps := ui.PickComponents(ev.MatchID)
	if ev.Method == string(selection.Captains) {
		comps = ui.DraftComponents(ev.MatchID, ev.Pool, b.names.Name)
	}
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.DraftEmbed(ev, b.names.Mention), comps)
}

// ---------- series ----------

func (b *Bot) onStarted(ev events.SeriesStarted) {
	name := b.queueName(ev.Queue)
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.StartEmbed(name, ev, b.names.Mention), ui.SeriesComponents(ev.MatchID))
}

func (b *Bot) renderSeries(matchID string) {
	v, err := b.Coordinator.Match(matchID)
	if err != nil || v.Series == nil {
		return
	}
	b.publish(b.queueCh(), matchKey(matchID), ui.SeriesEmbed(b.queueName(v.Queue), *v.Series, b.names.Mention), ui.SeriesComponents(matchID))
}

func (b *Bot) onEnded(ev events.SeriesEnded) {
	name := b.queueName(ev.Queue)
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.EndedEmbed(name, ev, b.names.Mention), nil)
	b.Publisher.Forget(b.queueCh(), matchKey(ev.MatchID))
	if series.Side(ev.Winner) == series.Pending {
		b.Publisher.Say(b.staffCh(), fmt.Sprintf("⚖️ %s %s ended tied %d-%d and needs a manual result.", name, ev.Label, ev.ScoreA, ev.ScoreB))
	}
}

func (b *Bot) onCancelled(ev events.MatchCancelled) {
	name := b.queueName(ev.Queue)
	why := "Cancelled by " + b.names.Mention(ev.By)
	if ev.Reason != "" {
		why = "Cancelled: " + ev.Reason
	}
	b.publish(b.queueCh(), matchKey(ev.MatchID), ui.CancelledEmbed(name, why), nil)
	b.Publisher.Forget(b.queueCh(), matchKey(ev.MatchID))
}

func (b *Bot) onLedgerFailed(ev events.LedgerWriteFailed) {
	state := "dropped"
	if ev.Queued {
		state = "queued for retry"
	}
	b.Publisher.Say(b.staffCh(), fmt.Sprintf("⚠️ Stats write for match `%s` failed (%s): %s", ev.MatchID, state, ev.Err))
}
