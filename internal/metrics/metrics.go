// Package metrics holds the Prometheus collectors for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "contentcal"

type Metrics struct {
	PlansGenerated    *prometheus.CounterVec
	PlanSaves         *prometheus.CounterVec
	PlanItemsSaved    *prometheus.CounterVec
	LockEvents        *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		PlansGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "planner",
			Name:      "plans_generated_total",
			Help:      "Plans produced by the generator",
		}, []string{"status"}),
		PlanSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "plan_saves_total",
			Help:      "Approved plan saves by destination and resolution",
		}, []string{"destination", "resolution"}),
		PlanItemsSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "reconcile",
			Name:      "plan_items_saved_total",
			Help:      "Content items written by approved saves",
		}, []string{"destination"}),
		LockEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "lock",
			Name:      "events_total",
			Help:      "Edit lock operations by outcome",
		}, []string{"operation", "outcome"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Notification emails by type and status",
		}, []string{"type", "status"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) ObservePlanSave(destination, resolution string, items int) {
	m.PlanSaves.WithLabelValues(destination, resolution).Inc()
	m.PlanItemsSaved.WithLabelValues(destination).Add(float64(items))
}

func (m *Metrics) ObserveLock(operation, outcome string) {
	m.LockEvents.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.NotificationsSent.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
