package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes recorded in the fetches metric.
const (
	outcomeOnline  = "online"
	outcomeOffline = "offline"
	outcomeError   = "error"
	outcomePanic   = "panic"
)

// Metrics holds the scheduler's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	fetches      *prometheus.CounterVec
	devices      prometheus.Gauge
}

// NewMetrics creates the scheduler collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "insmonitor",
			Name:      "poll_ticks_total",
			Help:      "Total number of completed polling ticks.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "insmonitor",
			Name:      "poll_tick_duration_seconds",
			Help:      "Histogram of polling tick durations.",
			Buckets:   prometheus.DefBuckets,
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "insmonitor",
			Name:      "device_fetches_total",
			Help:      "Total device fetches by device and outcome.",
		}, []string{"device", "outcome"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "insmonitor",
			Name:      "devices_polled",
			Help:      "Number of devices bound to a fetch adapter.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ticks, m.tickDuration, m.fetches, m.devices)
	}

	return m
}

func (m *Metrics) observeTick(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) observeFetch(deviceID, outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(deviceID, outcome).Inc()
}

func (m *Metrics) setDevices(n int) {
	if m == nil {
		return
	}
	m.devices.Set(float64(n))
}
