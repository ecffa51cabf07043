// Package metrics defines the Prometheus instruments of mail ingestion.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassDuration observes how long a full polling pass takes.
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_mail_pass_duration_seconds",
			Help:    "Duration of a mailbox polling pass in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"status"}, // status: ok, aborted, error
	)

	// MessagesTotal counts per-message outcomes.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_mail_messages_total",
			Help: "Total number of mailbox messages handled, by outcome",
		},
		[]string{"outcome"}, // outcome: processed, skipped-duplicate, skipped-self, failed
	)

	// AttachmentsTotal counts stored and dropped attachments.
	AttachmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_mail_attachments_total",
			Help: "Total number of attachments extracted from inbound mail",
		},
		[]string{"result"}, // result: stored, dropped
	)

	// NotificationsTotal counts notifications created by fan-out.
	NotificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_mail_notifications_total",
			Help: "Total number of administrator notifications created for inbound replies",
		},
	)

	// TriggersRejected counts pass triggers refused because another pass was running or too recent.
	TriggersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_mail_triggers_rejected_total",
			Help: "Total number of pass triggers rejected by the scheduler",
		},
		[]string{"trigger", "reason"},
	)
)

// RecordPass records the duration of a finished pass.
func RecordPass(status string, duration time.Duration) {
	PassDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordMessage increments the counter for one message outcome.
func RecordMessage(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordAttachments adds stored and dropped attachment counts.
func RecordAttachments(stored, dropped int) {
	AttachmentsTotal.WithLabelValues("stored").Add(float64(stored))
	AttachmentsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordNotifications adds created notifications.
func RecordNotifications(n int) {
	NotificationsTotal.Add(float64(n))
}

// RecordTriggerRejected increments the rejected trigger counter.
func RecordTriggerRejected(trigger, reason string) {
	TriggersRejected.WithLabelValues(trigger, reason).Inc()
}
