// Package metrics exposes matchmaking counters and gauges to prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is what the coordinator reports. Nop discards everything.
type Metrics interface {
	QueueSize(queue string, players int)
	MatchFormed(queue string)
	NoShows(queue string, n int)
	SelectionResolved(queue, method string)
	SeriesEnded(queue, reason string, d time.Duration)
	LedgerFailure()
	OutboxPending(n int)
}

type prometheusMetrics struct {
	queueSize      *prometheus.GaugeVec
	matchesFormed  *prometheus.CounterVec
	noShows        *prometheus.CounterVec
	selections     *prometheus.CounterVec
	seriesDuration *prometheus.HistogramVec
	ledgerFailures prometheus.Counter
	outboxPending  prometheus.Gauge
}

// New registers collectors on registry.
func New(registry *prometheus.Registry) Metrics {
	factory := promauto.With(registry)
	return prometheusMetrics{
		queueSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "h2mm_queue_players",
			Help: "Players currently waiting in each queue",
		}, []string{"queue"}),
		matchesFormed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "h2mm_matches_formed_total",
			Help: "Queues drained into a forming match",
		}, []string{"queue"}),
		noShows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "h2mm_pregame_no_shows_total",
			Help: "Players who missed the pregame deadline",
		}, []string{"queue"}),
		selections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "h2mm_team_selections_total",
			Help: "Resolved team selection votes by method",
		}, []string{"queue", "method"}),
		seriesDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "h2mm_series_duration_seconds",
			Help:    "Wall time from series start to end",
			Buckets: prometheus.ExponentialBuckets(300, 2, 7),
		}, []string{"queue", "reason"}),
		ledgerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "h2mm_ledger_write_failures_total",
			Help: "Outcomes that could not be written to the ledger on first try",
		}),
		outboxPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "h2mm_ledger_outbox_pending",
			Help: "Outcomes waiting for reconciliation",
		}),
	}
}

func (m prometheusMetrics) QueueSize(queue string, players int) {
	m.queueSize.With(prometheus.Labels{"queue": queue}).Set(float64(players))
}

func (m prometheusMetrics) MatchFormed(queue string) {
	m.matchesFormed.With(prometheus.Labels{"queue": queue}).Inc()
}

func (m prometheusMetrics) NoShows(queue string, n int) {
	m.noShows.With(prometheus.Labels{"queue": queue}).Add(float64(n))
}

func (m prometheusMetrics) SelectionResolved(queue, method string) {
	m.selections.With(prometheus.Labels{"queue": queue, "method": method}).Inc()
}

func (m prometheusMetrics) SeriesEnded(queue, reason string, d time.Duration) {
	m.seriesDuration.With(prometheus.Labels{"queue": queue, "reason": reason}).Observe(d.Seconds())
}

func (m prometheusMetrics) LedgerFailure() { m.ledgerFailures.Inc() }

func (m prometheusMetrics) OutboxPending(n int) { m.outboxPending.Set(float64(n)) }

type nop struct{}

// Nop returns a Metrics that records nothing.
func Nop() Metrics { return nop{} }

func (nop) QueueSize(string, int)                     {}
func (nop) MatchFormed(string)                        {}
func (nop) NoShows(string, int)                       {}
func (nop) SelectionResolved(string, string)          {}
func (nop) SeriesEnded(string, string, time.Duration) {}
func (nop) LedgerFailure()                            {}
func (nop) OutboxPending(int)                         {}
