package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/memory"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/tools"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
)

// SystemHooks are the direct-path operations the orchestrator runs itself
// for system task types. Each hook is optional; a missing hook makes the
// corresponding task type a no-op with a logged warning.
type SystemHooks struct {
	HealthSweep      func(ctx context.Context) error
	EvaluateBreakers func() error
	Consolidate      func() (int, error)
	SelfEvaluate     func() (*types.SelfEvaluation, error)
	DependencyAudit  func(ctx context.Context) error
	Introspect       func() (string, error)
	SyncPulse        func(ctx context.Context) error
}

// Orchestrator owns the canonical task map and drives task execution.
type Orchestrator struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task

	store     storage.Store
	broker    *events.Broker
	executor  *tools.Executor
	memory    memory.Recaller
	completer Completer
	hooks     SystemHooks
	handler   Handler
}

// New creates an orchestrator. The completer may be nil, in which case role
// handlers echo the task title.
func New(store storage.Store, broker *events.Broker, executor *tools.Executor, mem memory.Recaller, completer Completer) *Orchestrator {
	return &Orchestrator{
		tasks:     make(map[string]*types.Task),
		store:     store,
		broker:    broker,
		executor:  executor,
		memory:    mem,
		completer: completer,
		handler:   roleHandler{},
	}
}

// SetHooks installs the direct-path system operations. Called once during
// boot, before the scheduler starts.
func (o *Orchestrator) SetHooks(hooks SystemHooks) {
	o.hooks = hooks
}

// CreateTask creates a task in pending state and emits task:created. Any
// dependency ids are part of the task from the first persisted write.
func (o *Orchestrator) CreateTask(taskType types.TaskType, priority types.Priority, title, description string, payload map[string]any, deps ...string) (*types.Task, error) {
	task := &types.Task{
		ID:           uuid.New().String(),
		Type:         taskType,
		Priority:     priority,
		Title:        title,
		Description:  description,
		Payload:      payload,
		Dependencies: deps,
		CreatedAt:    time.Now(),
	}
	task.AssignedRole = RouteTask(taskType)

	o.mu.Lock()
	o.tasks[task.ID] = task
	o.mu.Unlock()

	if err := o.store.PutTask(task); err != nil {
		return nil, fmt.Errorf("failed to persist task: %w", err)
	}

	o.broker.Emit(events.EventTaskCreated, "orchestrator", map[string]any{
		"task_id":  task.ID,
		"type":     string(taskType),
		"priority": priority.String(),
	})
	return task, nil
}

// GetTask returns a task by id.
func (o *Orchestrator) GetTask(id string) (*types.Task, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[id]
	return t, ok
}

// Tasks returns a snapshot of all tasks.
func (o *Orchestrator) Tasks() []*types.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]*types.Task, 0, len(o.tasks))
	for _, t := range o.tasks {
		out = append(out, t)
	}
	return out
}

// Cancel marks a task cancelled. A running handler is not interrupted; its
// result, if it arrives, is discarded.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, ok := o.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if task.Terminal() {
		return fmt.Errorf("task %s already completed", id)
	}
	task.Cancelled = true
	return nil
}

// Reprioritize changes a task's priority. Allowed only before the task has
// started.
func (o *Orchestrator) Reprioritize(id string, p types.Priority) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, ok := o.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	if !task.StartedAt.IsZero() {
		return fmt.Errorf("task %s already started", id)
	}
	task.Priority = p
	return nil
}

// ExecuteTask runs a task to completion through its role handler or the
// direct system path. Handler failures are caught and reported as a failing
// result; the task is marked complete either way.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task *types.Task) *types.TaskResult {
	start := time.Now()

	o.mu.Lock()
	if task.Cancelled {
		o.mu.Unlock()
		return &types.TaskResult{Success: false, Errors: []string{"task cancelled"}}
	}
	task.StartedAt = start
	o.mu.Unlock()

	logger := log.WithTaskID(task.ID)
	if err := o.store.PutTask(task); err != nil {
		logger.Error().Err(err).Msg("failed to persist task start")
	}
	o.broker.Emit(events.EventTaskStarted, "orchestrator", map[string]any{
		"task_id": task.ID,
		"role":    string(task.AssignedRole),
	})

	role := RouteTask(task.Type)
	var result *types.TaskResult
	var err error
	if role == types.RoleOrchestrator {
		result, err = o.runDirect(ctx, task)
	} else {
		result, err = o.runHandler(ctx, task, role)
	}
	if err != nil {
		result = &types.TaskResult{Success: false, Errors: []string{err.Error()}}
		logger.Error().Err(err).Msg("task handler failed")
	}
	if result == nil {
		result = &types.TaskResult{Success: true}
	}
	result.ExecutionTime = time.Since(start)

	o.mu.Lock()
	discarded := task.Cancelled
	task.CompletedAt = time.Now()
	if !discarded {
		task.Result = result
	}
	o.mu.Unlock()

	if err := o.store.PutTask(task); err != nil {
		logger.Error().Err(err).Msg("failed to persist task completion")
	}

	if discarded {
		logger.Info().Msg("task cancelled, result discarded")
		return &types.TaskResult{Success: false, Errors: []string{"task cancelled"}}
	}

	eventType := events.EventTaskCompleted
	if !result.Success {
		eventType = events.EventTaskFailed
	}
	o.broker.Emit(eventType, "orchestrator", map[string]any{
		"task_id":     task.ID,
		"success":     result.Success,
		"duration_ms": result.ExecutionTime.Milliseconds(),
	})
	return result
}

// runHandler is the sub-handler path: it builds the execution context with
// the role's allowed tools and delegates to the role handler.
func (o *Orchestrator) runHandler(ctx context.Context, task *types.Task, role types.AgentRole) (*types.TaskResult, error) {
	desc := DescribeRole(role)
	o.broker.Emit(events.EventAgentSpawned, string(role), map[string]any{"task_id": task.ID})
	defer o.broker.Emit(events.EventAgentTerminated, string(role), map[string]any{"task_id": task.ID})

	hctx := &HandlerContext{
		Descriptor: desc,
		Executor:   o.executor,
		Memory:     o.memory,
		Completer:  o.completer,
	}

	result, err := o.handler.Handle(ctx, task, hctx)
	if err != nil {
		o.broker.Emit(events.EventAgentError, string(role), map[string]any{
			"task_id": task.ID,
			"error":   err.Error(),
		})
	}
	return result, err
}

// runDirect is the orchestrator's own execution path for system task types.
func (o *Orchestrator) runDirect(ctx context.Context, task *types.Task) (*types.TaskResult, error) {
	logger := log.WithTaskID(task.ID)

	switch task.Type {
	case types.TaskTypeHealthCheck:
		if o.hooks.HealthSweep == nil {
			break
		}
		if err := o.hooks.HealthSweep(ctx); err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: "health sweep complete"}, nil

	case types.TaskTypeBreakerEvaluation:
		if o.hooks.EvaluateBreakers == nil {
			break
		}
		if err := o.hooks.EvaluateBreakers(); err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: "breakers evaluated"}, nil

	case types.TaskTypeMemoryConsolidate:
		if o.hooks.Consolidate == nil {
			break
		}
		dropped, err := o.hooks.Consolidate()
		if err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: fmt.Sprintf("%d expired memories dropped", dropped)}, nil

	case types.TaskTypeSelfEvaluation:
		if o.hooks.SelfEvaluate == nil {
			break
		}
		ev, err := o.hooks.SelfEvaluate()
		if err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: fmt.Sprintf("self evaluation %s recorded", ev.ID)}, nil

	case types.TaskTypeDependencyAudit:
		if o.hooks.DependencyAudit == nil {
			break
		}
		if err := o.hooks.DependencyAudit(ctx); err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: "dependency audit complete"}, nil

	case types.TaskTypeIntrospection:
		if o.hooks.Introspect == nil {
			break
		}
		report, err := o.hooks.Introspect()
		if err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: report}, nil

	case types.TaskTypeSyncPulse:
		if o.hooks.SyncPulse == nil {
			break
		}
		if err := o.hooks.SyncPulse(ctx); err != nil {
			return nil, err
		}
		return &types.TaskResult{Success: true, Output: "sync pulse complete"}, nil

	case types.TaskTypeSystemMaintenance:
		return &types.TaskResult{Success: true, Output: "maintenance complete"}, nil
	}

	logger.Warn().Str("type", string(task.Type)).Msg("no hook for system task type")
	return &types.TaskResult{Success: true, Output: "no-op"}, nil
}

// ReportAbandoned returns tasks left visibly in-flight by a previous run:
// started but never completed. Called once during boot.
func (o *Orchestrator) ReportAbandoned() ([]*types.Task, error) {
	persisted, err := o.store.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var abandoned []*types.Task
	for _, t := range persisted {
		if !t.StartedAt.IsZero() && t.CompletedAt.IsZero() {
			abandoned = append(abandoned, t)
			logger := log.WithTaskID(t.ID)
			logger.Warn().
				Str("type", string(t.Type)).
				Time("started_at", t.StartedAt).
				Msg("abandoned task from previous run")
		}
	}
	return abandoned, nil
}
