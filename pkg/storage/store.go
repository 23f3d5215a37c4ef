package storage

import (
	"errors"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// AuditBuilder constructs the next audit entry given the persisted sequence
// tail. It runs inside the store's write transaction so the sequence number
// cannot be duplicated by concurrent callers.
type AuditBuilder func(nextSeq uint64, prevHash string) (*types.AuditEntry, error)

// Store is the persistence interface used by all components. Each component
// owns its own tables; cross-component access goes through the owner.
type Store interface {
	// Tasks (owned by the orchestrator)
	PutTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	ListTasks() ([]*types.Task, error)
	DeleteTask(id string) error

	// Audit trail (owned by the ledger)
	AppendAudit(build AuditBuilder) (*types.AuditEntry, error)
	AuditRange(fn func(e *types.AuditEntry) (bool, error)) error
	AuditRecent(n int) ([]*types.AuditEntry, error)
	AuditByActor(actor string, n int) ([]*types.AuditEntry, error)
	AuditByDateRange(start, end time.Time, n int) ([]*types.AuditEntry, error)
	AuditCount() (uint64, error)

	// Memories (owned by the memory store)
	PutMemory(m *types.MemoryEntry) error
	ListMemories(namespace string) ([]*types.MemoryEntry, error)
	DeleteMemory(id string) error

	// Execution log (owned by the scheduler)
	AppendExecution(r *types.ExecutionRecord) error
	RecentExecutions(n int) ([]*types.ExecutionRecord, error)

	// Self evaluations
	PutSelfEvaluation(ev *types.SelfEvaluation) error
	RecentSelfEvaluations(n int) ([]*types.SelfEvaluation, error)

	// Marketplace tool manifests (owned by the tool registry)
	PutToolManifest(name string, manifest map[string]any) error
	ListToolManifests() (map[string]map[string]any, error)

	// Knowledge graph
	PutGraphEntity(id string, entity map[string]any) error
	PutGraphRelationship(id string, rel map[string]any) error

	// Ping performs a trivial round-trip for health probing.
	Ping() error

	Close() error
}
