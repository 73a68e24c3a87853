package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics 每个 Client 一套指标，注册到调用方给的 Registerer
type clientMetrics struct {
	fetches       *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	skippedTicks  *prometheus.CounterVec
	actions       *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	m := &clientMetrics{
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botdash_view_fetches_total",
				Help: "View loads by view and result (ok, error, stale, canceled)",
			},
			[]string{"view", "result"},
		),
		fetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "botdash_view_fetch_seconds",
				Help:    "View load latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view"},
		),
		skippedTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botdash_poll_ticks_skipped_total",
				Help: "Poll ticks skipped because a load for the view was in flight",
			},
			[]string{"view"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botdash_actions_total",
				Help: "Submitted actions by kind and result (ok, error, throttled)",
			},
			[]string{"kind", "result"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botdash_notifications_total",
				Help: "Notifications raised by level",
			},
			[]string{"level"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.fetchLatency, m.skippedTicks, m.actions, m.notifications)
	}
	return m
}
