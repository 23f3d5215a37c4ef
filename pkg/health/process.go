package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
)

// ProcessChecker grades heap pressure: used heap as a percentage of the heap
// the runtime holds.
type ProcessChecker struct {
	// UnhealthyPct and DegradedPct are heap-used percentages.
	UnhealthyPct float64
	DegradedPct  float64
}

// NewProcessChecker creates a process probe with default thresholds.
func NewProcessChecker() *ProcessChecker {
	return &ProcessChecker{
		UnhealthyPct: 90,
		DegradedPct:  75,
	}
}

func (p *ProcessChecker) Component() string { return "process" }

func (p *ProcessChecker) Check(ctx context.Context) types.HealthResult {
	start := time.Now()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	pct := 0.0
	if ms.HeapSys > 0 {
		pct = float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100
	}

	status := types.StatusHealthy
	switch {
	case pct > p.UnhealthyPct:
		status = types.StatusUnhealthy
	case pct > p.DegradedPct:
		status = types.StatusDegraded
	}

	return types.HealthResult{
		Component: p.Component(),
		Status:    status,
		Latency:   time.Since(start),
		Message:   fmt.Sprintf("heap %.1f%% used (%d/%d bytes)", pct, ms.HeapAlloc, ms.HeapSys),
		CheckedAt: start,
	}
}

// MemoryChecker grades total process memory against a soft ceiling.
type MemoryChecker struct {
	// UnhealthyBytes and DegradedBytes are resident-size ceilings.
	UnhealthyBytes uint64
	DegradedBytes  uint64
}

// NewMemoryChecker creates a memory-pressure probe with default ceilings
// (512 MB unhealthy, 384 MB degraded).
func NewMemoryChecker() *MemoryChecker {
	return &MemoryChecker{
		UnhealthyBytes: 512 << 20,
		DegradedBytes:  384 << 20,
	}
}

// NewMemoryCheckerWithLimit creates a memory-pressure probe whose unhealthy
// ceiling is the given soft limit; degraded is three quarters of it.
func NewMemoryCheckerWithLimit(limit uint64) *MemoryChecker {
	if limit == 0 {
		return NewMemoryChecker()
	}
	return &MemoryChecker{
		UnhealthyBytes: limit,
		DegradedBytes:  limit * 3 / 4,
	}
}

func (m *MemoryChecker) Component() string { return "memory_pressure" }

func (m *MemoryChecker) Check(ctx context.Context) types.HealthResult {
	start := time.Now()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	resident := ms.Sys - ms.HeapReleased

	status := types.StatusHealthy
	switch {
	case resident > m.UnhealthyBytes:
		status = types.StatusUnhealthy
	case resident > m.DegradedBytes:
		status = types.StatusDegraded
	}

	return types.HealthResult{
		Component: m.Component(),
		Status:    status,
		Latency:   time.Since(start),
		Message:   fmt.Sprintf("%d MB resident", resident>>20),
		CheckedAt: start,
	}
}
