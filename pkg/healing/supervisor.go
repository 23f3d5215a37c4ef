package healing

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/health"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/types"
)

const (
	// unhealthyStrikes is how many consecutive unhealthy reports trigger
	// recovery.
	unhealthyStrikes = 3

	defaultSweepInterval   = 30 * time.Second
	defaultBreakerInterval = 60 * time.Second
	defaultDepAuditEvery   = 6 * time.Hour
)

// RecoveryFunc attempts to recover one component. Best-effort: errors are
// logged and never propagate.
type RecoveryFunc func(result types.HealthResult) error

// Report is the aggregate snapshot of the latest probe sweep.
type Report struct {
	Results   []types.HealthResult
	Unhealthy int
	Degraded  int
	SweptAt   time.Time
}

// Config tunes the supervisor.
type Config struct {
	SweepInterval   time.Duration
	BreakerInterval time.Duration
	DepAuditEvery   time.Duration
	// Endpoints are the external dependency URLs audited at low frequency.
	Endpoints []string
}

// Supervisor runs health probes on a schedule, tracks consecutive unhealthy
// sweeps, triggers per-component recovery, and drives circuit breaker
// evaluation.
type Supervisor struct {
	checkers []health.Checker
	breakers *breaker.Registry
	broker   *events.Broker
	cfg      Config

	mu         sync.RWMutex
	lastReport *Report
	strikes    int
	recoveries map[string]RecoveryFunc

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor over the given probes.
func NewSupervisor(checkers []health.Checker, breakers *breaker.Registry, broker *events.Broker, cfg Config) *Supervisor {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = defaultBreakerInterval
	}
	if cfg.DepAuditEvery <= 0 {
		cfg.DepAuditEvery = defaultDepAuditEvery
	}
	return &Supervisor{
		checkers:   checkers,
		breakers:   breakers,
		broker:     broker,
		cfg:        cfg,
		recoveries: make(map[string]RecoveryFunc),
		stopCh:     make(chan struct{}),
	}
}

// RegisterRecovery installs a recovery hook for a component label. The hook
// replaces the built-in behavior for that component.
func (s *Supervisor) RegisterRecovery(component string, fn RecoveryFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveries[component] = fn
}

// Start launches the probe, breaker evaluation, and dependency audit loops.
func (s *Supervisor) Start() {
	go s.runSweeps()
	go s.runBreakerEvaluation()
	if len(s.cfg.Endpoints) > 0 {
		go s.runDependencyAudit()
	}
}

// Stop stops all loops.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// LastReport returns the most recent sweep snapshot, or nil before the first
// sweep.
func (s *Supervisor) LastReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

func (s *Supervisor) runSweeps() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs every probe once, stores the report, and triggers recovery after
// three consecutive sweeps containing at least one unhealthy probe.
func (s *Supervisor) Sweep(ctx context.Context) *Report {
	report := &Report{SweptAt: time.Now()}
	for _, c := range s.checkers {
		result := c.Check(ctx)
		report.Results = append(report.Results, result)
		switch result.Status {
		case types.StatusUnhealthy:
			report.Unhealthy++
		case types.StatusDegraded:
			report.Degraded++
		}
	}

	s.broker.Emit(events.EventHealingHealthCheck, "supervisor", map[string]any{
		"probes":    len(report.Results),
		"unhealthy": report.Unhealthy,
		"degraded":  report.Degraded,
	})

	s.mu.Lock()
	s.lastReport = report
	if report.Unhealthy > 0 {
		s.strikes++
	} else {
		s.strikes = 0
	}
	strikes := s.strikes
	if strikes >= unhealthyStrikes {
		s.strikes = 0
	}
	s.mu.Unlock()

	if strikes >= unhealthyStrikes {
		s.recover(report)
	}
	return report
}

// recover attempts per-component recovery for every unhealthy probe in the
// report. Each attempt is best-effort.
func (s *Supervisor) recover(report *Report) {
	logger := log.WithComponent("healing")
	for _, result := range report.Results {
		if result.Status != types.StatusUnhealthy {
			continue
		}

		s.mu.RLock()
		hook := s.recoveries[result.Component]
		s.mu.RUnlock()

		if hook != nil {
			if err := hook(result); err != nil {
				logger.Error().Err(err).
					Str("probe", result.Component).
					Msg("recovery hook failed")
			}
		} else {
			s.builtinRecovery(result)
		}

		s.broker.Emit(events.EventHealingRecovery, "supervisor", map[string]any{
			"probe":   result.Component,
			"message": result.Message,
		})
		logger.Warn().
			Str("probe", result.Component).
			Str("message", result.Message).
			Msg("recovery attempted")
	}
}

func (s *Supervisor) builtinRecovery(result types.HealthResult) {
	logger := log.WithComponent("healing")
	switch {
	case result.Component == "process" || result.Component == "memory_pressure":
		// Memory pressure: ask the runtime to collect. Never fatal.
		runtime.GC()
	case result.Component == "database":
		logger.Error().Msg("store unhealthy, reinitialization requested but no hook registered")
	case result.Component == "event_loop":
		logger.Warn().Msg("scheduling latency high, continuing")
	case strings.HasPrefix(result.Component, "api:"):
		logger.Warn().Str("probe", result.Component).Msg("endpoint unhealthy, deferring to next cycle")
	}
}

func (s *Supervisor) runBreakerEvaluation() {
	ticker := time.NewTicker(s.cfg.BreakerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.EvaluateBreakers()
		case <-s.stopCh:
			return
		}
	}
}

// EvaluateBreakers promotes cooled-down breakers and announces each change.
func (s *Supervisor) EvaluateBreakers() []types.BreakerState {
	changed := s.breakers.Evaluate()
	for _, st := range changed {
		s.broker.Emit(events.EventHealingCircuitBreak, "supervisor", map[string]any{
			"operation": st.OperationName,
			"state":     st.State,
		})
	}
	return changed
}

func (s *Supervisor) runDependencyAudit() {
	ticker := time.NewTicker(s.cfg.DepAuditEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.DependencyAudit(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// DependencyAudit probes each declared external endpoint URL once.
func (s *Supervisor) DependencyAudit(ctx context.Context) []types.HealthResult {
	logger := log.WithComponent("healing")
	var results []types.HealthResult
	for _, url := range s.cfg.Endpoints {
		result := health.NewHTTPChecker(url).Check(ctx)
		results = append(results, result)
		if result.Status != types.StatusHealthy {
			logger.Warn().
				Str("endpoint", url).
				Str("status", string(result.Status)).
				Str("message", result.Message).
				Msg("dependency audit finding")
		}
	}
	return results
}
