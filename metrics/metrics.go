// Package metrics provides Prometheus metrics for the assistant backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ChatMessagesTotal *prometheus.CounterVec
	AIFallbacksTotal  *prometheus.CounterVec
	AICallDuration    *prometheus.HistogramVec

	RequestTransitionsTotal  *prometheus.CounterVec
	VendorNotificationsTotal *prometheus.CounterVec
	VendorResponsesTotal     prometheus.Counter

	TicketEscalationsTotal prometheus.Counter
	SweepAffectedTotal     *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sahoassist_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sahoassist_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ChatMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sahoassist_chat_messages_total",
			Help: "Chat messages answered, by context",
		}, []string{"context"}),
		AIFallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sahoassist_ai_fallbacks_total",
			Help: "AI operations answered from the deterministic fallback",
		}, []string{"operation", "reason"}),
		AICallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sahoassist_ai_call_duration_seconds",
			Help:    "Duration of remote AI calls in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"operation"}),
		RequestTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sahoassist_request_transitions_total",
			Help: "Product request lifecycle transitions, by resulting status",
		}, []string{"status"}),
		VendorNotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sahoassist_vendor_notifications_total",
			Help: "Vendor notification attempts, by outcome",
		}, []string{"status"}),
		VendorResponsesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sahoassist_vendor_responses_total",
			Help: "Accepted vendor responses",
		}),
		TicketEscalationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "sahoassist_ticket_escalations_total",
			Help: "Support tickets escalated after an SLA breach",
		}),
		SweepAffectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sahoassist_sweep_affected_total",
			Help: "Rows changed by periodic sweeps",
		}, []string{"sweep"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordChat(context string) {
	if m == nil {
		return
	}
	m.ChatMessagesTotal.WithLabelValues(context).Inc()
}

func (m *Metrics) RecordAIFallback(operation, reason string) {
	if m == nil {
		return
	}
	m.AIFallbacksTotal.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) RecordAICall(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.AICallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.RequestTransitionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.VendorNotificationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordVendorResponse() {
	if m == nil {
		return
	}
	m.VendorResponsesTotal.Inc()
}

func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.TicketEscalationsTotal.Inc()
}

func (m *Metrics) RecordSweep(name string, affected int) {
	if m == nil || affected <= 0 {
		return
	}
	m.SweepAffectedTotal.WithLabelValues(name).Add(float64(affected))
}
