package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StartsTotal counts child process starts, including restarts.
	StartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devserve_starts_total",
		Help: "Total number of child process starts, including restarts",
	})

	// RestartsTotal counts restarts by reason (reload or crash).
	RestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devserve_restarts_total",
		Help: "Total number of restarts, by reason",
	}, []string{"reason"})

	// ReadyDuration observes how long the server took to accept connections
	// after each start.
	ReadyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devserve_ready_duration_seconds",
		Help:    "Time from process start until the server port accepted a connection",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// Running reports whether the child process is currently up.
	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "devserve_running",
		Help: "Whether the supervised process is currently running (1) or not (0)",
	})

	// WatchedEventsTotal counts filesystem events that passed the watch
	// filters and were forwarded to the supervisor.
	WatchedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devserve_watched_events_total",
		Help: "Total number of relevant filesystem change events observed",
	})
)
