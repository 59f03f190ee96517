package batch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the batch pipeline's Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	rendered   prometheus.Counter
	failures   prometheus.Counter
	duration   prometheus.Histogram
	inProgress prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "certstencil",
			Name:      "certificates_rendered_total",
			Help:      "Certificates rendered successfully.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "certstencil",
			Name:      "certificate_failures_total",
			Help:      "Certificate captures that failed or timed out.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "certstencil",
			Name:      "render_duration_seconds",
			Help:      "Time to render and encode one certificate.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certstencil",
			Name:      "generation_in_progress",
			Help:      "1 while a batch is running.",
		}),
	}
	for _, c := range []prometheus.Collector{m.rendered, m.failures, m.duration, m.inProgress} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRender(d time.Duration) {
	if m == nil {
		return
	}
	m.rendered.Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

func (m *Metrics) setInProgress(on bool) {
	if m == nil {
		return
	}
	if on {
		m.inProgress.Set(1)
		return
	}
	m.inProgress.Set(0)
}
