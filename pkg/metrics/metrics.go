package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "callguard_sessions",
		Help: "Call sessions currently held in the session table, by state",
	}, []string{"state"})

	SessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callguard_session_transitions_total",
		Help: "Call session state transitions",
	}, []string{"to", "reason"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callguard_relay_deliveries_total",
		Help: "Relay delivery attempts by resolution path (direct, group, broadcast, none)",
	}, []string{"path", "event"})

	DegradedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callguard_degraded_total",
		Help: "Operations that continued in a degraded mode",
	}, []string{"kind"})

	LedgerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callguard_ledger_errors_total",
		Help: "Quota ledger store failures by operation",
	}, []string{"op"})

	ChargedSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callguard_charged_seconds_total",
		Help: "Call seconds committed to the quota ledger",
	})

	OnlineConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "callguard_online_connections",
		Help: "Live connections in the presence registry, by scope",
	}, []string{"scope"})

	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callguard_notifications_total",
		Help: "Guardian notification trigger points by type and outcome",
	}, []string{"type", "outcome"})
)
