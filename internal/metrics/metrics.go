// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the daemon reports.
type Metrics struct {
	registry *prometheus.Registry

	TicketsCreated     prometheus.Counter
	DuplicatesBlocked  prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	NotificationsSent  prometheus.Counter
	NotificationErrors prometheus.Counter
	BackfillMatches    prometheus.Counter
	OpenTickets        prometheus.Gauge
}

// New builds and registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.TicketsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "christmastech_tickets_created_total",
		Help: "Tickets created.",
	})
	m.DuplicatesBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "christmastech_duplicates_blocked_total",
		Help: "Ticket creations blocked by duplicate detection.",
	})
	m.StatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "christmastech_status_transitions_total",
		Help: "Ticket status transitions by target status.",
	}, []string{"to"})
	m.NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "christmastech_notifications_sent_total",
		Help: "Chat notifications delivered.",
	})
	m.NotificationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "christmastech_notification_errors_total",
		Help: "Chat notifications that failed to deliver.",
	})
	m.BackfillMatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "christmastech_backfill_matches_total",
		Help: "Photo objects matched to tickets by backfill runs.",
	})
	m.OpenTickets = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "christmastech_open_tickets",
		Help: "Open tickets at last count.",
	})

	m.registry.MustRegister(
		m.TicketsCreated,
		m.DuplicatesBlocked,
		m.StatusTransitions,
		m.NotificationsSent,
		m.NotificationErrors,
		m.BackfillMatches,
		m.OpenTickets,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
