package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "ledger",
		Name:      "completions_recorded_total",
		Help:      "Number of completions accepted into the ledger.",
	})
	duplicateCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "ledger",
		Name:      "duplicate_completions_total",
		Help:      "Number of same-day re-completion attempts rejected.",
	})
	reminderRunGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "challenge_service",
		Subsystem: "reminder",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent reminder sweep.",
	})
	remindersEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "reminder",
		Name:      "notifications_emitted_total",
		Help:      "Number of reminder notifications handed to the gateway channel.",
	})
	reminderFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "challenge_service",
		Subsystem: "reminder",
		Name:      "notification_failures_total",
		Help:      "Number of reminder notifications the gateway channel rejected.",
	})
)

func init() {
	prometheus.MustRegister(completionsCounter, duplicateCounter, reminderRunGauge, remindersEmitted, reminderFailures)
}

// RecordCompletionAccepted counts a completion persisted to the ledger.
func RecordCompletionAccepted() {
	completionsCounter.Inc()
}

// RecordCompletionDuplicate counts a rejected same-day duplicate.
func RecordCompletionDuplicate() {
	duplicateCounter.Inc()
}

// RecordReminderRun stamps the reminder sweep watermark.
func RecordReminderRun(ts time.Time) {
	if ts.IsZero() {
		return
	}
	reminderRunGauge.Set(float64(ts.Unix()))
}

// RecordReminderEmitted counts one delivered notification event.
func RecordReminderEmitted() {
	remindersEmitted.Inc()
}

// RecordReminderFailure counts one failed notification event.
func RecordReminderFailure() {
	reminderFailures.Inc()
}
