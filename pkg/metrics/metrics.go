package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task metrics
	TasksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_tasks_scheduled_total",
			Help: "Total number of tasks enqueued",
		},
	)

	TasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_tasks_completed_total",
			Help: "Total number of completed tasks by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_task_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_queue_depth",
			Help: "Number of tasks waiting in the priority queue",
		},
	)

	// Tool metrics
	ToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_tool_invocations_total",
			Help: "Total number of tool invocations by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_tool_duration_seconds",
			Help:    "Tool execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Governance metrics
	GovernanceDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_governance_decisions_total",
			Help: "Total number of governance decisions by authority",
		},
		[]string{"authority"},
	)

	// Breaker metrics
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_breaker_state",
			Help: "Circuit breaker state (0 = closed, 1 = half open, 2 = open)",
		},
		[]string{"name"},
	)

	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_breaker_transitions_total",
			Help: "Total number of breaker state transitions by name and target state",
		},
		[]string{"name", "state"},
	)

	// Health metrics
	ComponentHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aegis_component_health",
			Help: "Component health (0 = healthy, 1 = degraded, 2 = unhealthy)",
		},
		[]string{"component"},
	)

	RecoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_recoveries_total",
			Help: "Total number of recovery actions by component",
		},
		[]string{"component"},
	)

	// Bus metrics
	BusMessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_bus_messages_sent_total",
			Help: "Total number of bus messages sent",
		},
	)

	BusMessagesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_bus_messages_expired_total",
			Help: "Total number of bus messages dropped on TTL expiry",
		},
	)

	// Audit metrics
	AuditEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_audit_entries_total",
			Help: "Total number of audit entries recorded",
		},
	)

	// Gateway metrics
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_gateway_requests_total",
			Help: "Total number of gateway requests by command and status",
		},
		[]string{"command", "status"},
	)

	GatewayClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_gateway_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

func init() {
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(TasksCompleted)
	prometheus.MustRegister(TaskDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ToolInvocations)
	prometheus.MustRegister(ToolDuration)
	prometheus.MustRegister(GovernanceDecisions)
	prometheus.MustRegister(BreakerState)
	prometheus.MustRegister(BreakerTransitions)
	prometheus.MustRegister(ComponentHealth)
	prometheus.MustRegister(RecoveriesTotal)
	prometheus.MustRegister(BusMessagesSent)
	prometheus.MustRegister(BusMessagesExpired)
	prometheus.MustRegister(AuditEntries)
	prometheus.MustRegister(GatewayRequests)
	prometheus.MustRegister(GatewayClients)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time for histogram observations
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in a histogram
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time in a labeled histogram
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
