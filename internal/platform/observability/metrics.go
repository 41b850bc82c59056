package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_http_requests_total",
		Help: "The total number of HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trialbridge_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_registrations_total",
		Help: "Total number of user registrations by outcome",
	}, []string{"status"})

	AlertMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_alert_matches_total",
		Help: "Total number of trial alert matches by frequency",
	}, []string{"frequency"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_notifications_sent_total",
		Help: "Total number of notifications dispatched by type and outcome",
	}, []string{"type", "status"})

	AlertBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trialbridge_alert_backlog_size",
		Help: "Number of trials pending alert matching",
	})

	AlertCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trialbridge_alert_cycle_duration_seconds",
		Help:    "Duration of a full alert matching cycle",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_content_reports_total",
		Help: "Total number of content reports by target type",
	}, []string{"target_type"})

	ContentFlaggedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_content_flagged_total",
		Help: "Total number of content items auto-flagged by the report aggregator",
	}, []string{"target_type"})

	ModerationQueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trialbridge_moderation_queue_pending",
		Help: "Current number of pending content reports",
	})

	DigestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trialbridge_alert_digests_total",
		Help: "Total number of alert digest notifications by frequency",
	}, []string{"frequency"})

	ResetTokensCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trialbridge_reset_tokens_cleaned_total",
		Help: "Total number of expired password reset tokens removed",
	})
)
