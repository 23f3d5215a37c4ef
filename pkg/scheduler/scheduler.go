package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/metrics"
	"github.com/aegislabs/aegis/pkg/orchestrator"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultHeartbeat  = 10 * time.Second
	heartbeatEmitEach = 6 // emit daemon:heartbeat every Nth tick
	jobTick           = time.Second
)

// Config holds scheduler tuning knobs.
type Config struct {
	Workers           int
	HeartbeatInterval time.Duration
}

// Scheduler drains the priority queue into the orchestrator, runs recurring
// jobs, and emits the daemon heartbeat.
type Scheduler struct {
	orch   *orchestrator.Orchestrator
	store  storage.Store
	broker *events.Broker
	logger zerolog.Logger

	queue *taskQueue
	wake  chan struct{}

	mu      sync.Mutex
	blocked []*queueItem
	jobs    map[string]*types.ScheduledJob
	inRun   map[string]string // job id -> task id of the in-flight run

	inbound chan map[string]any

	workers   int
	heartbeat time.Duration
	startedAt time.Time
	processed uint64
	failed    uint64

	startMu sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a scheduler. Workers below 1 is treated as 1.
func New(orch *orchestrator.Orchestrator, store storage.Store, broker *events.Broker, cfg Config) *Scheduler {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	hb := cfg.HeartbeatInterval
	if hb <= 0 {
		hb = defaultHeartbeat
	}
	return &Scheduler{
		orch:      orch,
		store:     store,
		broker:    broker,
		logger:    log.WithComponent("scheduler"),
		queue:     newTaskQueue(),
		wake:      make(chan struct{}, 1),
		jobs:      make(map[string]*types.ScheduledJob),
		inRun:     make(map[string]string),
		inbound:   make(chan map[string]any, 64),
		workers:   workers,
		heartbeat: hb,
	}
}

// Start launches the worker, job, heartbeat, and inbound loops. Idempotent.
func (s *Scheduler) Start() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.startedAt = time.Now()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}
	s.wg.Add(3)
	go s.jobLoop()
	go s.heartbeatLoop()
	go s.inboundLoop()

	s.logger.Info().Int("workers", s.workers).Msg("scheduler started")
}

// Stop halts all loops and waits for in-flight tasks to finish. Idempotent.
func (s *Scheduler) Stop() {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Enqueue queues a task for execution. The returned channel delivers the
// task's result exactly once.
func (s *Scheduler) Enqueue(task *types.Task) <-chan *types.TaskResult {
	done := make(chan *types.TaskResult, 1)
	s.queue.push(task, done)
	metrics.TasksScheduled.Inc()
	metrics.QueueDepth.Set(float64(s.queue.depth()))
	s.signal()
	return done
}

// Cancel marks a task cancelled. A still-queued task is removed and its
// result delivered immediately; a running task finishes but its result is
// discarded.
func (s *Scheduler) Cancel(id string) error {
	if err := s.orch.Cancel(id); err != nil {
		return err
	}
	if item := s.queue.remove(id); item != nil {
		item.done <- &types.TaskResult{Success: false, Errors: []string{"task cancelled"}}
		metrics.QueueDepth.Set(float64(s.queue.depth()))
	}
	return nil
}

// Reprioritize changes a queued task's priority. Fails once the task has
// started.
func (s *Scheduler) Reprioritize(id string, p types.Priority) error {
	if err := s.orch.Reprioritize(id, p); err != nil {
		return err
	}
	s.queue.reprioritize(id, p)
	return nil
}

// QueueDepth returns the number of tasks waiting in the queue.
func (s *Scheduler) QueueDepth() int {
	return s.queue.depth()
}

// Stats returns processed and failed task counts since start.
func (s *Scheduler) Stats() (processed, failed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, s.failed
}

// Inbound returns the channel external transports push raw messages into.
// Each message becomes a medium-priority inbound task.
func (s *Scheduler) Inbound() chan<- map[string]any {
	return s.inbound
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) workerLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.wake:
			s.drain()
		}
	}
}

// drain pops until the queue is empty, holding dependency-gated tasks aside.
func (s *Scheduler) drain() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		item := s.queue.pop()
		metrics.QueueDepth.Set(float64(s.queue.depth()))
		if item == nil {
			return
		}
		if !s.depsMet(item.task) {
			s.mu.Lock()
			s.blocked = append(s.blocked, item)
			s.mu.Unlock()
			continue
		}
		s.runTask(item)
	}
}

// depsMet reports whether every dependency of the task has completed.
func (s *Scheduler) depsMet(task *types.Task) bool {
	for _, depID := range task.Dependencies {
		dep, ok := s.orch.GetTask(depID)
		if !ok || !dep.Terminal() {
			return false
		}
	}
	return true
}

// releaseBlocked re-queues held tasks whose dependencies have since
// completed.
func (s *Scheduler) releaseBlocked() {
	s.mu.Lock()
	var still []*queueItem
	var ready []*queueItem
	for _, item := range s.blocked {
		if s.depsMet(item.task) {
			ready = append(ready, item)
		} else {
			still = append(still, item)
		}
	}
	s.blocked = still
	s.mu.Unlock()

	for _, item := range ready {
		s.queue.push(item.task, item.done)
	}
	if len(ready) > 0 {
		s.signal()
	}
}

func (s *Scheduler) runTask(item *queueItem) {
	task := item.task
	timer := metrics.NewTimer()

	result := s.orch.ExecuteTask(context.Background(), task)

	timer.ObserveDurationVec(metrics.TaskDuration, string(task.Type))
	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	metrics.TasksCompleted.WithLabelValues(string(task.Type), outcome).Inc()

	s.mu.Lock()
	s.processed++
	if !result.Success {
		s.failed++
	}
	s.mu.Unlock()

	rec := &types.ExecutionRecord{
		ID:         uuid.New().String(),
		TaskID:     task.ID,
		TaskType:   task.Type,
		Role:       task.AssignedRole,
		Success:    result.Success,
		Output:     result.Output,
		StartedAt:  task.StartedAt,
		FinishedAt: task.CompletedAt,
	}
	if len(result.Errors) > 0 {
		rec.Error = result.Errors[0]
	}
	if err := s.store.AppendExecution(rec); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to append execution record")
	}

	item.done <- result
	s.releaseBlocked()
}

// AddJob registers a recurring job. A zero NextRun schedules the first run
// one interval from now.
func (s *Scheduler) AddJob(job *types.ScheduledJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.NextRun.IsZero() {
		job.NextRun = time.Now().Add(job.Interval)
	}
	s.jobs[job.ID] = job
}

// ToggleJob enables or disables a job.
func (s *Scheduler) ToggleJob(id string, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	job.Enabled = enabled
	if enabled && job.NextRun.Before(time.Now()) {
		job.NextRun = time.Now().Add(job.Interval)
	}
	return true
}

// RunJob fires a job immediately, outside its schedule.
func (s *Scheduler) RunJob(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.fireJob(job, time.Now())
	return true
}

// Jobs returns a snapshot of all registered jobs.
func (s *Scheduler) Jobs() []*types.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.ScheduledJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

func (s *Scheduler) jobLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(jobTick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.runDueJobs(now)
		}
	}
}

func (s *Scheduler) runDueJobs(now time.Time) {
	s.mu.Lock()
	var due []*types.ScheduledJob
	for _, job := range s.jobs {
		if job.Enabled && !now.Before(job.NextRun) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fireJob(job, now)
	}
}

// fireJob enqueues one run of a job. Overlapping runs are dropped: if the
// previous run has not finished, this slot is skipped.
func (s *Scheduler) fireJob(job *types.ScheduledJob, now time.Time) {
	s.mu.Lock()
	if prevID, ok := s.inRun[job.ID]; ok {
		if prev, found := s.orch.GetTask(prevID); found && !prev.Terminal() {
			job.NextRun = now.Add(job.Interval)
			s.mu.Unlock()
			s.logger.Warn().Str("job", job.Name).Msg("previous run still in flight, skipping")
			return
		}
		delete(s.inRun, job.ID)
	}
	job.LastRun = now
	job.NextRun = now.Add(job.Interval)
	s.mu.Unlock()

	task, err := s.orch.CreateTask(job.TaskType, job.Priority, job.Name, "", job.Payload)
	if err != nil {
		s.logger.Error().Err(err).Str("job", job.Name).Msg("failed to create job task")
		return
	}

	s.mu.Lock()
	s.inRun[job.ID] = task.ID
	s.mu.Unlock()

	s.Enqueue(task)
}

func (s *Scheduler) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			tick++
			if tick%heartbeatEmitEach != 0 {
				continue
			}
			processed, failed := s.Stats()
			s.broker.Emit(events.EventDaemonHeartbeat, "scheduler", map[string]any{
				"queue_depth":     s.queue.depth(),
				"tasks_processed": processed,
				"tasks_failed":    failed,
				"uptime_seconds":  int(time.Since(s.startedAt).Seconds()),
			})
		}
	}
}

func (s *Scheduler) inboundLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case payload := <-s.inbound:
			task, err := s.orch.CreateTask(types.TaskTypeMessagingInbound, types.PriorityMedium,
				"inbound message", "", payload)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to create inbound task")
				continue
			}
			s.Enqueue(task)
		}
	}
}
