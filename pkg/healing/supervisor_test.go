package healing

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/health"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	component string
	status    types.HealthStatus
}

func (c *stubChecker) Component() string { return c.component }

func (c *stubChecker) Check(ctx context.Context) types.HealthResult {
	return types.HealthResult{
		Component: c.component,
		Status:    c.status,
		Message:   string(c.status),
		CheckedAt: time.Now(),
	}
}

func newTestSupervisor(checkers ...health.Checker) (*Supervisor, *events.Broker) {
	broker := events.NewBroker()
	broker.Start()
	s := NewSupervisor(checkers, breaker.NewRegistry(), broker, Config{})
	return s, broker
}

func TestSweepAggregatesResults(t *testing.T) {
	s, broker := newTestSupervisor(
		&stubChecker{component: "process", status: types.StatusHealthy},
		&stubChecker{component: "database", status: types.StatusDegraded},
		&stubChecker{component: "event_loop", status: types.StatusUnhealthy},
	)
	defer broker.Stop()

	report := s.Sweep(context.Background())
	assert.Len(t, report.Results, 3)
	assert.Equal(t, 1, report.Unhealthy)
	assert.Equal(t, 1, report.Degraded)
	assert.Same(t, report, s.LastReport())
}

func TestRecoveryAfterThreeConsecutiveUnhealthySweeps(t *testing.T) {
	unhealthy := &stubChecker{component: "database", status: types.StatusUnhealthy}
	s, broker := newTestSupervisor(unhealthy)
	defer broker.Stop()

	var recoveries int32
	s.RegisterRecovery("database", func(result types.HealthResult) error {
		atomic.AddInt32(&recoveries, 1)
		return nil
	})

	s.Sweep(context.Background())
	s.Sweep(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&recoveries))

	// Third consecutive unhealthy sweep fires recovery exactly once.
	s.Sweep(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&recoveries))

	// The strike counter reset: two more sweeps do not fire again.
	s.Sweep(context.Background())
	s.Sweep(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&recoveries))
}

func TestHealthySweepResetsStrikes(t *testing.T) {
	flappy := &stubChecker{component: "database", status: types.StatusUnhealthy}
	s, broker := newTestSupervisor(flappy)
	defer broker.Stop()

	var recoveries int32
	s.RegisterRecovery("database", func(result types.HealthResult) error {
		atomic.AddInt32(&recoveries, 1)
		return nil
	})

	s.Sweep(context.Background())
	s.Sweep(context.Background())

	// A healthy sweep in between resets the counter.
	flappy.status = types.StatusHealthy
	s.Sweep(context.Background())

	flappy.status = types.StatusUnhealthy
	s.Sweep(context.Background())
	s.Sweep(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&recoveries))

	s.Sweep(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&recoveries))
}

func TestRecoveryEmitsEvent(t *testing.T) {
	unhealthy := &stubChecker{component: "database", status: types.StatusUnhealthy}
	s, broker := newTestSupervisor(unhealthy)
	defer broker.Stop()
	s.RegisterRecovery("database", func(result types.HealthResult) error { return nil })

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for i := 0; i < 3; i++ {
		s.Sweep(context.Background())
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == events.EventHealingRecovery {
				assert.Equal(t, "database", ev.Data["probe"])
				return
			}
		case <-deadline:
			t.Fatal("expected a healing:recovery event")
		}
	}
}

func TestEvaluateBreakersAnnouncesChanges(t *testing.T) {
	clockNow := time.Now()
	breakers := breaker.NewRegistry(
		breaker.WithThreshold(1),
		breaker.WithCooldown(time.Nanosecond),
		breaker.WithClock(func() time.Time {
			clockNow = clockNow.Add(time.Millisecond)
			return clockNow
		}),
	)
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	s := NewSupervisor(nil, breakers, broker, Config{})

	breakers.RecordFailure("tool.fetch")

	changed := s.EvaluateBreakers()
	require.Len(t, changed, 1)
	assert.Equal(t, "tool.fetch", changed[0].OperationName)
	assert.Equal(t, "half_open", changed[0].State)
}
