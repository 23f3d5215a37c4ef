package health

import (
	"context"
	"fmt"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
)

// SchedChecker measures goroutine scheduling latency: it schedules a no-op
// and measures how long the runtime takes to dispatch it.
type SchedChecker struct {
	Unhealthy time.Duration
	Degraded  time.Duration
}

// NewSchedChecker creates a scheduling-latency probe with default thresholds
// (100 ms unhealthy, 50 ms degraded).
func NewSchedChecker() *SchedChecker {
	return &SchedChecker{
		Unhealthy: 100 * time.Millisecond,
		Degraded:  50 * time.Millisecond,
	}
}

func (s *SchedChecker) Component() string { return "event_loop" }

func (s *SchedChecker) Check(ctx context.Context) types.HealthResult {
	start := time.Now()

	done := make(chan time.Time, 1)
	timer := time.AfterFunc(0, func() {
		done <- time.Now()
	})
	defer timer.Stop()

	var delay time.Duration
	select {
	case fired := <-done:
		delay = fired.Sub(start)
	case <-ctx.Done():
		return types.HealthResult{
			Component: s.Component(),
			Status:    types.StatusUnhealthy,
			Latency:   time.Since(start),
			Message:   "scheduling probe cancelled",
			CheckedAt: start,
		}
	}

	status := types.StatusHealthy
	switch {
	case delay > s.Unhealthy:
		status = types.StatusUnhealthy
	case delay > s.Degraded:
		status = types.StatusDegraded
	}

	return types.HealthResult{
		Component: s.Component(),
		Status:    status,
		Latency:   delay,
		Message:   fmt.Sprintf("dispatch delay %v", delay),
		CheckedAt: start,
	}
}
