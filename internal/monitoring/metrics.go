package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment provider webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created through the purchase endpoint",
		},
	)

	escrowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Escrow status transitions by target status",
		},
		[]string{"to_status"},
	)

	disputesOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disputes_opened_total",
			Help: "Disputes opened by reason",
		},
		[]string{"reason"},
	)

	schedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_actions_total",
			Help: "Deadline consequences applied by the scheduler sweep",
		},
		[]string{"action"},
	)
)

// TrackWebhookEvent records one processed webhook delivery.
// outcome is one of: applied, noop, rejected, failed.
func TrackWebhookEvent(eventType, outcome string) {
	webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// TrackOrderCreated records a new order.
func TrackOrderCreated() {
	ordersCreated.Inc()
}

// TrackEscrowTransition records an escrow moving to a new status.
func TrackEscrowTransition(toStatus string) {
	escrowTransitions.WithLabelValues(toStatus).Inc()
}

// TrackDisputeOpened records a new dispute.
func TrackDisputeOpened(reason string) {
	disputesOpened.WithLabelValues(reason).Inc()
}

// TrackSchedulerAction records one deadline consequence applied by the sweep.
func TrackSchedulerAction(action string) {
	schedulerRuns.WithLabelValues(action).Inc()
}
