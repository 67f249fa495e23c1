package notifications

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for dispatch passes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	PassesTotal      *prometheus.CounterVec // passes by result: ok, error
	PassDuration     prometheus.Histogram
	DeliveriesTotal  *prometheus.CounterVec // deliveries by outcome: sent, skipped, failed
	PushDuration     prometheus.Histogram
	FailuresTotal    *prometheus.CounterVec // failed pushes by code
	RevocationsTotal prometheus.Counter
	VisibleAlerts    prometheus.Gauge
	ActiveTargets    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_dispatch_passes_total",
			Help: "Total number of dispatch passes by result",
		}, []string{"result"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_dispatch_pass_duration_seconds",
			Help:    "Wall time of a dispatch pass",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		DeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_push_deliveries_total",
			Help: "Total number of per-subscription delivery outcomes",
		}, []string{"outcome"}),
		PushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "alert_push_duration_seconds",
			Help:    "Latency of a single Web Push request",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_push_failures_total",
			Help: "Total number of failed pushes by failure code",
		}, []string{"code"}),
		RevocationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alert_subscriptions_revoked_total",
			Help: "Total number of subscriptions revoked after permanent push failures",
		}),
		VisibleAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alert_visible_alerts",
			Help: "Alerts visible during the last dispatch pass",
		}),
		ActiveTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alert_active_subscriptions",
			Help: "Active subscriptions during the last dispatch pass",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.PassesTotal, m.PassDuration, m.DeliveriesTotal, m.PushDuration,
		m.FailuresTotal, m.RevocationsTotal, m.VisibleAlerts, m.ActiveTargets,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register dispatch metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observePass(s Summary, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PassesTotal.WithLabelValues(result).Inc()
	m.PassDuration.Observe(s.Duration.Seconds())
	m.VisibleAlerts.Set(float64(s.Alerts))
	m.ActiveTargets.Set(float64(s.Targets))
}

func (m *Metrics) observeDelivery(o outcome, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(o.String()).Inc()
	if o == outcomeSkipped {
		return
	}
	m.PushDuration.Observe(took.Seconds())
	if o == outcomeFailed {
		m.FailuresTotal.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) observeRevocation() {
	if m == nil {
		return
	}
	m.RevocationsTotal.Inc()
}
