package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the reminder system.
type Metrics struct {
	RemindersSentTotal   *prometheus.CounterVec
	RemindersDue         prometheus.Gauge
	ReminderSendDuration prometheus.Histogram
	ReminderRetries      prometheus.Counter
	RateLimitWaits       prometheus.Counter
}

// NewMetrics registers the reminder metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RemindersSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_sent_total",
				Help:      "Reminders processed by outcome",
			},
			[]string{"status"},
		),
		RemindersDue: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reminders_due",
				Help:      "Reminders found due in the last check",
			},
		),
		ReminderSendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reminder_send_duration_seconds",
				Help:      "Time to send a reminder",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),
		ReminderRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_retries_total",
				Help:      "Total number of retry attempts",
			},
		),
		RateLimitWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminder_rate_limit_waits_total",
				Help:      "Sends that waited for the rate limiter",
			},
		),
	}
}

// The methods below accept a nil receiver so callers can run without metrics.

func (m *Metrics) IncSent(status string) {
	if m != nil {
		m.RemindersSentTotal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) SetDue(n int) {
	if m != nil {
		m.RemindersDue.Set(float64(n))
	}
}

func (m *Metrics) ObserveSendDuration(seconds float64) {
	if m != nil {
		m.ReminderSendDuration.Observe(seconds)
	}
}

func (m *Metrics) IncRetries() {
	if m != nil {
		m.ReminderRetries.Inc()
	}
}

func (m *Metrics) IncRateLimitWaits() {
	if m != nil {
		m.RateLimitWaits.Inc()
	}
}
