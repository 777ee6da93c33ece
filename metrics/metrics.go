package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// auth
	SessionsIssuedTotal *prometheus.CounterVec
	AuthFailuresTotal   *prometheus.CounterVec
	ActionTokensTotal   *prometheus.CounterVec

	MailsTotal       *prometheus.CounterVec
	RateLimitedTotal *prometheus.CounterVec
	UploadsTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventhub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		SessionsIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_sessions_issued_total",
				Help: "Sessions minted, by trigger (login or rotate)",
			},
			[]string{"trigger"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_auth_failures_total",
				Help: "Rejected authentication attempts, by reason",
			},
			[]string{"reason"},
		),
		ActionTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_action_tokens_total",
				Help: "Action tokens issued and redeemed, by purpose and outcome",
			},
			[]string{"purpose", "outcome"},
		),
		MailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_mails_total",
				Help: "Outbound mails, by status",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"path"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventhub_uploads_total",
				Help: "Banner uploads, by backend and status",
			},
			[]string{"backend", "status"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SessionsIssuedTotal,
		m.AuthFailuresTotal,
		m.ActionTokensTotal,
		m.MailsTotal,
		m.RateLimitedTotal,
		m.UploadsTotal,
	)
	return m
}
