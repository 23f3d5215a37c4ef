package types

import (
	"time"
)

// Priority orders tasks in the scheduler queue. Lower values drain first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParsePriority maps a priority name to its value. Unknown names map to medium.
func ParsePriority(s string) Priority {
	switch s {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// TaskType is the closed enum of routable work kinds.
type TaskType string

const (
	TaskTypeSystemMaintenance TaskType = "system_maintenance"
	TaskTypeSelfEvaluation    TaskType = "self_evaluation"
	TaskTypeHealthCheck       TaskType = "health_check"
	TaskTypeBreakerEvaluation TaskType = "breaker_evaluation"
	TaskTypeDependencyAudit   TaskType = "dependency_audit"
	TaskTypeIntrospection     TaskType = "introspection"
	TaskTypeMemoryConsolidate TaskType = "memory_consolidation"
	TaskTypeSyncPulse         TaskType = "sync_pulse"
	TaskTypeMessagingInbound  TaskType = "messaging_inbound"
	TaskTypeResearch          TaskType = "research"
	TaskTypeOperations        TaskType = "operations"
	TaskTypeFinance           TaskType = "finance"
	TaskTypeOutreach          TaskType = "outreach"
)

// AgentRole identifies a handler. Each role owns a subset of tools.
type AgentRole string

const (
	RoleOrchestrator AgentRole = "orchestrator"
	RoleAnalyst      AgentRole = "analyst"
	RoleOperator     AgentRole = "operator"
	RoleTreasurer    AgentRole = "treasurer"
	RoleHerald       AgentRole = "herald"
)

// Task is a unit of work with a type, priority, and payload. Tasks are owned
// by the orchestrator; after enqueue only the priority may change, and only
// before StartedAt is set.
type Task struct {
	ID           string
	Type         TaskType
	Priority     Priority
	Title        string
	Description  string
	Payload      map[string]any
	AssignedRole AgentRole
	Dependencies []string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	Cancelled    bool
	Result       *TaskResult
}

// Terminal reports whether the task has finished (successfully or not).
func (t *Task) Terminal() bool {
	return !t.CompletedAt.IsZero()
}

// TaskResult is the outcome of executing a task.
type TaskResult struct {
	Success         bool
	Output          string
	TokensUsed      int
	ExecutionTime   time.Duration
	SubTasksSpawned int
	Errors          []string
}

// RiskLevel classifies the blast radius of a tool.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Authority is the governance decision for a proposed invocation.
type Authority string

const (
	AuthorityAutoApprove     Authority = "auto_approve"
	AuthorityLogOnly         Authority = "log_only"
	AuthorityRequireApproval Authority = "require_approval"
	AuthorityRequireHuman    Authority = "require_human"
)

// ToolResult is the value a tool invocation resolves to. Failures are values,
// not panics.
type ToolResult struct {
	Success  bool
	Data     map[string]any
	Error    string
	Metadata map[string]any
}

// AuditEntry is one row of the hash-chained audit trail.
type AuditEntry struct {
	ID             string         `json:"id"`
	SequenceNumber uint64         `json:"sequence_number"`
	Timestamp      time.Time      `json:"timestamp"`
	Actor          string         `json:"actor"`
	Action         string         `json:"action"`
	Target         string         `json:"target"`
	Details        map[string]any `json:"details"`
	PreviousHash   string         `json:"previous_hash"`
	Hash           string         `json:"hash"`
}

// BreakerState is the externally visible snapshot of one circuit breaker.
type BreakerState struct {
	OperationName string
	FailureCount  int
	LastFailureAt time.Time
	State         string // closed, open, half_open
	OpenedAt      time.Time
	Cooldown      time.Duration
}

// HealthStatus grades a probe result.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult is the outcome of one probe run.
type HealthResult struct {
	Component string
	Status    HealthStatus
	Latency   time.Duration
	Message   string
	CheckedAt time.Time
}

// ScheduledJob is a named recurring task definition.
type ScheduledJob struct {
	ID       string
	Name     string
	TaskType TaskType
	Priority Priority
	Interval time.Duration
	LastRun  time.Time
	NextRun  time.Time
	Enabled  bool
	Payload  map[string]any
}

// MessageKind distinguishes bus traffic.
type MessageKind string

const (
	MessageRequest   MessageKind = "request"
	MessageResponse  MessageKind = "response"
	MessageBroadcast MessageKind = "broadcast"
)

// BusMessage is one entry in an actor mailbox. ToActor may be "*" for
// broadcasts.
type BusMessage struct {
	ID        string
	FromActor string
	ToActor   string
	Kind      MessageKind
	Payload   map[string]any
	InReplyTo string
	Timestamp time.Time
	TTL       time.Duration
}

// Expired reports whether the message has outlived its TTL at the given time.
func (m *BusMessage) Expired(now time.Time) bool {
	return now.Sub(m.Timestamp) >= m.TTL
}

// GovernancePolicy maps one risk level to an authority.
type GovernancePolicy struct {
	RiskLevel           RiskLevel
	Authority           Authority
	AuditRequired       bool
	MaxAutoApproveValue float64 // 0 means no value threshold
}

// MemoryEntry is one record in the namespaced memory store.
type MemoryEntry struct {
	ID        string
	Namespace string
	Kind      string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
	ExpiresAt time.Time // zero means no expiry
}

// ExecutionRecord is one row of the scheduler execution log.
type ExecutionRecord struct {
	ID         string
	TaskID     string
	TaskType   TaskType
	Role       AgentRole
	Success    bool
	Output     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// SelfEvaluation is a periodic introspection report persisted by the
// self-evaluation job.
type SelfEvaluation struct {
	ID             string
	TasksProcessed int
	TasksFailed    int
	QueueDepth     int
	Findings       []string
	CreatedAt      time.Time
}
