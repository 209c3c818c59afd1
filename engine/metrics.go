package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "joystream"
	MetricsSubsystem = "proposals"
)

type Metrics struct {
	Created    prometheus.Counter
	Votes      *prometheus.CounterVec
	Closed     *prometheus.CounterVec
	Finalized  *prometheus.CounterVec
	Executions *prometheus.CounterVec
	Active     prometheus.Gauge
}

// NewMetrics registers the engine collectors on reg. A nil registerer
// yields working but unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Created: f.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "created_total",
			Help:      "Number of proposals created.",
		}),
		Votes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "votes_total",
			Help:      "Number of votes cast, by kind.",
		}, []string{"kind"}),
		Closed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "closed_total",
			Help:      "Number of proposals cancelled or vetoed.",
		}, []string{"status"}),
		Finalized: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "finalized_total",
			Help:      "Number of tally results recorded, by resulting status.",
		}, []string{"status"}),
		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "executions_total",
			Help:      "Number of approved payload executions, by outcome.",
		}, []string{"status"}),
		Active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "active",
			Help:      "Number of proposals open for tallying after the last step.",
		}),
	}
}

func NopMetrics() *Metrics {
	return NewMetrics(nil)
}
