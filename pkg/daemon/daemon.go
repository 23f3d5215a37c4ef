package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aegislabs/aegis/pkg/audit"
	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/bus"
	"github.com/aegislabs/aegis/pkg/config"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/gateway"
	"github.com/aegislabs/aegis/pkg/governance"
	"github.com/aegislabs/aegis/pkg/healing"
	"github.com/aegislabs/aegis/pkg/health"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/memory"
	"github.com/aegislabs/aegis/pkg/metrics"
	"github.com/aegislabs/aegis/pkg/orchestrator"
	"github.com/aegislabs/aegis/pkg/scheduler"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/tools"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Version is stamped at build time.
var Version = "dev"

// Daemon owns the lifecycle of every subsystem. Boot order is fixed; shutdown
// runs in reverse and is best-effort.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger

	store      storage.Store
	broker     *events.Broker
	ledger     *audit.Ledger
	gov        *governance.Engine
	bus        *bus.Bus
	breakers   *breaker.Registry
	supervisor *healing.Supervisor
	memory     *memory.Memory
	registry   *tools.Registry
	executor   *tools.Executor
	orch       *orchestrator.Orchestrator
	sched      *scheduler.Scheduler
	gateway    *gateway.Server
	metricsSrv *http.Server

	completer orchestrator.Completer
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithCompleter injects the language-model collaborator used by role
// handlers. Without it, handlers echo task titles.
func WithCompleter(c orchestrator.Completer) Option {
	return func(d *Daemon) { d.completer = c }
}

// New creates an unstarted daemon.
func New(cfg *config.Config, opts ...Option) *Daemon {
	d := &Daemon{
		cfg:    cfg,
		logger: log.WithComponent("daemon"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start boots every subsystem in dependency order. A failure in any step
// aborts the boot with the partial stack torn down.
func (d *Daemon) Start() error {
	d.logger.Info().Str("version", Version).Msg("starting")

	store, err := storage.NewBoltStore(d.cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	d.store = store

	d.broker = events.NewBroker()
	d.broker.Start()

	d.ledger = audit.NewLedger(d.store)
	d.gov = governance.NewEngine()

	d.bus = bus.New(d.broker)
	for _, role := range []types.AgentRole{
		types.RoleOrchestrator, types.RoleAnalyst, types.RoleOperator,
		types.RoleTreasurer, types.RoleHerald,
	} {
		d.bus.RegisterActor(string(role))
	}
	d.bus.Start()

	d.breakers = breaker.NewRegistry(
		breaker.WithThreshold(d.cfg.BreakerThreshold),
		breaker.WithCooldown(d.cfg.BreakerCooldown),
	)

	checkers := []health.Checker{
		health.NewProcessChecker(),
		health.NewMemoryCheckerWithLimit(uint64(d.cfg.MemorySoftLimit)),
		health.NewSchedChecker(),
		health.NewStoreChecker(d.store),
	}
	d.supervisor = healing.NewSupervisor(checkers, d.breakers, d.broker, healing.Config{
		SweepInterval: d.cfg.HealthInterval,
		Endpoints:     d.cfg.Endpoints,
	})

	d.memory = memory.New(d.store, d.broker)

	d.registry = tools.NewRegistry(d.store)
	d.executor = tools.NewExecutor(d.registry, d.gov, d.breakers, d.ledger, d.broker)
	if err := d.registerBuiltinTools(); err != nil {
		d.teardown()
		return fmt.Errorf("failed to register tools: %w", err)
	}

	d.orch = orchestrator.New(d.store, d.broker, d.executor, d.memory, d.completer)
	d.orch.SetHooks(orchestrator.SystemHooks{
		HealthSweep:      d.healthSweep,
		EvaluateBreakers: d.evaluateBreakers,
		Consolidate:      d.memory.Consolidate,
		SelfEvaluate:     d.selfEvaluate,
		DependencyAudit:  d.dependencyAudit,
		Introspect:       d.introspect,
		SyncPulse:        d.syncPulse,
	})

	if abandoned, err := d.orch.ReportAbandoned(); err != nil {
		d.logger.Error().Err(err).Msg("abandoned task scan failed")
	} else if len(abandoned) > 0 {
		d.logger.Warn().Int("count", len(abandoned)).Msg("abandoned tasks from previous run")
	}

	d.sched = scheduler.New(d.orch, d.store, d.broker, scheduler.Config{
		Workers:           d.cfg.Workers,
		HeartbeatInterval: d.cfg.HeartbeatInterval,
	})
	d.sched.InstallDefaultJobs()

	d.supervisor.Start()
	d.sched.Start()

	d.gateway = gateway.NewServer(d.cfg.GatewayAddr, d.cfg.GatewaySecret, Version, gateway.Deps{
		Scheduler:    d.sched,
		Orchestrator: d.orch,
		Ledger:       d.ledger,
		Memory:       d.memory,
		Breakers:     d.breakers,
		Supervisor:   d.supervisor,
		Broker:       d.broker,
		Bus:          d.bus,
	})
	if err := d.gateway.Start(); err != nil {
		d.teardown()
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	if d.cfg.MetricsAddr != "" {
		d.metricsSrv = &http.Server{Addr: d.cfg.MetricsAddr, Handler: metrics.Handler()}
		go func() {
			if err := d.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	if _, err := d.ledger.Record("daemon", "daemon.start", "aegisd", map[string]any{
		"version": Version,
	}); err != nil {
		d.logger.Error().Err(err).Msg("failed to record boot audit entry")
	}
	d.broker.Emit(events.EventDaemonStarted, "daemon", map[string]any{"version": Version})
	d.logger.Info().Msg("started")
	return nil
}

// Stop shuts everything down in reverse boot order. Each step is
// best-effort; failures are logged, not propagated.
func (d *Daemon) Stop() {
	d.logger.Info().Msg("stopping")
	d.broker.Emit(events.EventDaemonStopped, "daemon", nil)
	if _, err := d.ledger.Record("daemon", "daemon.stop", "aegisd", nil); err != nil {
		d.logger.Error().Err(err).Msg("failed to record shutdown audit entry")
	}
	d.teardown()
	d.logger.Info().Msg("stopped")
}

func (d *Daemon) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if d.metricsSrv != nil {
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			d.logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
	if d.gateway != nil {
		if err := d.gateway.Stop(ctx); err != nil {
			d.logger.Error().Err(err).Msg("gateway shutdown failed")
		}
	}
	if d.sched != nil {
		d.sched.Stop()
	}
	if d.supervisor != nil {
		d.supervisor.Stop()
	}
	if d.bus != nil {
		d.bus.Stop()
	}
	if d.broker != nil {
		d.broker.Stop()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Error().Err(err).Msg("store close failed")
		}
	}
}

func (d *Daemon) healthSweep(ctx context.Context) error {
	d.supervisor.Sweep(ctx)
	return nil
}

func (d *Daemon) evaluateBreakers() error {
	d.supervisor.EvaluateBreakers()
	return nil
}

func (d *Daemon) selfEvaluate() (*types.SelfEvaluation, error) {
	processed, failed := d.sched.Stats()

	var findings []string
	if report := d.supervisor.LastReport(); report != nil {
		for _, r := range report.Results {
			if r.Status != types.StatusHealthy {
				findings = append(findings, fmt.Sprintf("%s is %s: %s", r.Component, r.Status, r.Message))
			}
		}
	}
	for _, st := range d.breakers.States() {
		if st.State != "closed" {
			findings = append(findings, fmt.Sprintf("breaker %s is %s", st.OperationName, st.State))
		}
	}
	if processed > 0 {
		ratio := float64(failed) / float64(processed)
		if ratio > 0.25 {
			findings = append(findings, fmt.Sprintf("failure rate %.0f%% over %d tasks", ratio*100, processed))
		}
	}

	ev := &types.SelfEvaluation{
		ID:             uuid.New().String(),
		TasksProcessed: int(processed),
		TasksFailed:    int(failed),
		QueueDepth:     d.sched.QueueDepth(),
		Findings:       findings,
		CreatedAt:      time.Now(),
	}
	if err := d.store.PutSelfEvaluation(ev); err != nil {
		return nil, fmt.Errorf("failed to persist self evaluation: %w", err)
	}
	return ev, nil
}

func (d *Daemon) dependencyAudit(ctx context.Context) error {
	d.supervisor.DependencyAudit(ctx)
	return nil
}

func (d *Daemon) introspect() (string, error) {
	processed, failed := d.sched.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "tasks: %d processed, %d failed, %d queued\n", processed, failed, d.sched.QueueDepth())
	for _, st := range d.breakers.States() {
		fmt.Fprintf(&b, "breaker %s: %s (failures %d)\n", st.OperationName, st.State, st.FailureCount)
	}
	if report := d.supervisor.LastReport(); report != nil {
		fmt.Fprintf(&b, "health: %d unhealthy, %d degraded of %d probes\n",
			report.Unhealthy, report.Degraded, len(report.Results))
	}
	if count, err := d.ledger.Count(); err == nil {
		fmt.Fprintf(&b, "audit entries: %d\n", count)
	}
	return b.String(), nil
}

// syncPulse broadcasts a liveness ping to every actor mailbox.
func (d *Daemon) syncPulse(ctx context.Context) error {
	d.bus.Broadcast(string(types.RoleOrchestrator), map[string]any{
		"kind": "sync",
		"at":   time.Now().UTC().Format(time.RFC3339),
	}, 5*time.Minute)
	return nil
}
