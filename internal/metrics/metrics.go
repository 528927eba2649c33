package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Monitoring loop
	SamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudmonitor_samples_total",
			Help: "Samples classified, by resulting severity",
		},
		[]string{"target", "severity"},
	)

	SkippedTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudmonitor_skipped_ticks_total",
			Help: "Ticks skipped because the metrics source failed",
		},
		[]string{"target"},
	)

	TickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cloudmonitor_tick_duration_seconds",
			Help:    "Time spent on one monitoring tick including effect dispatch",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"target"},
	)

	SourceIncident = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudmonitor_source_incident",
			Help: "1 while a synthetic source is inside a sticky incident",
		},
		[]string{"target"},
	)

	// Alert state
	OpenAlertSeverity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudmonitor_open_alert_severity",
			Help: "Rank of the open alert per target (0 none, 1 low, 2 major, 3 critical)",
		},
		[]string{"target"},
	)

	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudmonitor_alert_transitions_total",
			Help: "Alert lifecycle transitions",
		},
		[]string{"target", "transition"}, // opened, escalated, resolved
	)

	// Delivery
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudmonitor_notifications_total",
			Help: "Notifications handed to sinks",
		},
		[]string{"target", "reason", "status"}, // status: delivered, failed
	)

	RemediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudmonitor_remediations_total",
			Help: "Remediation triggers",
		},
		[]string{"target", "status"},
	)

	ObservationOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudmonitor_observation_outcomes_total",
			Help: "Observation windows closed after remediation",
		},
		[]string{"target", "outcome"}, // confirmed, cancelled
	)

	// Log recorder
	LogEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudmonitor_log_entries",
			Help: "Entries held in the rolling classification log",
		},
		[]string{"target"},
	)
)
