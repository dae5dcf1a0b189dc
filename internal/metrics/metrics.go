// Package metrics exposes idle loop state as Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"plexsleep/internal/idle"
)

// Metrics holds the instruments fed from tick reports
type Metrics struct {
	registry *prometheus.Registry

	InactiveSeconds      prometheus.Gauge
	PrimeTime            prometheus.Gauge
	ActiveSessions       *prometheus.GaugeVec
	Ticks                *prometheus.CounterVec
	SuspendRequests      prometheus.Counter
	ProbeFailures        prometheus.Counter
	LocalInputAvailable  prometheus.Gauge
	TimeoutSeconds       prometheus.Gauge
	LastTickTimestampSec prometheus.Gauge
}

// New creates the instruments on a dedicated registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		InactiveSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "plexsleep_inactive_seconds",
			Help: "Accumulated inactivity counter after the last tick",
		}),
		PrimeTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "plexsleep_prime_time",
			Help: "1 while the prime-time blackout window is active",
		}),
		ActiveSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plexsleep_active_sessions",
			Help: "Active Plex playback sessions by media type",
		}, []string{"media_type"}),
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plexsleep_ticks_total",
			Help: "Idle loop ticks by resulting status",
		}, []string{"status"}),
		SuspendRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "plexsleep_suspend_requests_total",
			Help: "Suspend requests issued by the idle loop",
		}),
		ProbeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "plexsleep_probe_failures_total",
			Help: "Session probes that failed and were treated as no sessions",
		}),
		LocalInputAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Name: "plexsleep_local_input_available",
			Help: "1 when a local input source feeds the activity signal",
		}),
		TimeoutSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "plexsleep_timeout_seconds",
			Help: "Configured inactivity timeout",
		}),
		LastTickTimestampSec: factory.NewGauge(prometheus.GaugeOpts{
			Name: "plexsleep_last_tick_timestamp_seconds",
			Help: "Unix time of the last evaluated tick",
		}),
	}
}

// Registry returns the registry to expose over HTTP
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one tick report; it is registered as an idle.Machine observer
func (m *Metrics) Observe(r idle.Report) {
	m.InactiveSeconds.Set(float64(r.InactiveSeconds))
	m.PrimeTime.Set(boolToFloat(r.PrimeTime))
	m.LocalInputAvailable.Set(boolToFloat(r.LocalAvailable))
	m.TimeoutSeconds.Set(float64(r.TimeoutSeconds))
	m.LastTickTimestampSec.Set(float64(r.At.Unix()))
	m.Ticks.WithLabelValues(r.Status).Inc()

	counts := map[string]int{}
	for _, s := range r.Sessions {
		counts[string(s.MediaType)]++
	}
	for _, t := range mediaTypes {
		m.ActiveSessions.WithLabelValues(t).Set(float64(counts[t]))
	}

	if r.SuspendRequested {
		m.SuspendRequests.Inc()
	}
	if r.ProbeError != "" {
		m.ProbeFailures.Inc()
	}
}

var mediaTypes = []string{"Video", "Track", "Photo"}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
