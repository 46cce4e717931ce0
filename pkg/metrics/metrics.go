// Package metrics exposes poll and alarm counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bridgypoll"

// Recorder collects the daemon's metrics on its own registry
type Recorder struct {
	registry      *prometheus.Registry
	polls         *prometheus.CounterVec
	pollDuration  *prometheus.HistogramVec
	alarmsCreated prometheus.Counter
}

// New creates a recorder with the process and Go collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "polls_total",
				Help:      "Silo polls by outcome.",
			},
			[]string{"silo", "status"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Time spent in a silo poll.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"silo"},
		),
		alarmsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_created_total",
			Help:      "Poll alarms registered by the scheduler.",
		}),
	}

	r.registry.MustRegister(
		r.polls,
		r.pollDuration,
		r.alarmsCreated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObservePoll records one poll outcome. Skipped polls carry no duration.
func (r *Recorder) ObservePoll(silo, status string, d time.Duration) {
	r.polls.WithLabelValues(silo, status).Inc()
	if status != "skipped" {
		r.pollDuration.WithLabelValues(silo).Observe(d.Seconds())
	}
}

// AlarmCreated records a newly registered alarm
func (r *Recorder) AlarmCreated() {
	r.alarmsCreated.Inc()
}

// Handler serves the registry for scraping
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
