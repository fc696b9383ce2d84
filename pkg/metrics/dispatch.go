package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records per-channel send outcomes for the event
// dispatch pipeline.
type DispatchMetrics struct {
	sends    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	dedup    prometheus.Counter
	workers  prometheus.Gauge
}

// NewDispatchMetrics registers the dispatch metrics on the provided
// registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	sends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_sends_total",
		Help: "Channel-send attempts by channel and terminal status.",
	}, []string{"channel", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "event_send_duration_seconds",
		Help:    "Duration of channel-send attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
	dedup := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_dedup_total",
		Help: "Event ids observed as successfully sent on both channels.",
	})
	workers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "automation_workers_active",
		Help: "Automation workers currently running.",
	})
	reg.MustRegister(sends, duration, dedup, workers)
	return &DispatchMetrics{
		sends:    sends,
		duration: duration,
		dedup:    dedup,
		workers:  workers,
	}
}

// ObserveSend records one completed channel-send attempt.
func (d *DispatchMetrics) ObserveSend(channel, status string, duration time.Duration) {
	if d == nil {
		return
	}
	if d.sends != nil {
		d.sends.WithLabelValues(normalizeLabel(channel), normalizeLabel(status)).Inc()
	}
	if d.duration != nil {
		d.duration.WithLabelValues(normalizeLabel(channel)).Observe(duration.Seconds())
	}
}

// IncDedup increments the cross-channel duplicate counter.
func (d *DispatchMetrics) IncDedup() {
	if d == nil || d.dedup == nil {
		return
	}
	d.dedup.Inc()
}

// SetActiveWorkers reports the automation worker count.
func (d *DispatchMetrics) SetActiveWorkers(n int) {
	if d == nil || d.workers == nil {
		return
	}
	d.workers.Set(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
