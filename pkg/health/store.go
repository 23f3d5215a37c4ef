package health

import (
	"context"
	"fmt"
	"time"

	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
)

// StoreChecker probes the persistent store with a trivial round trip.
type StoreChecker struct {
	Store    storage.Store
	Degraded time.Duration
}

// NewStoreChecker creates a store probe. Round trips slower than 500 ms are
// degraded; an error is unhealthy.
func NewStoreChecker(store storage.Store) *StoreChecker {
	return &StoreChecker{
		Store:    store,
		Degraded: 500 * time.Millisecond,
	}
}

func (s *StoreChecker) Component() string { return "database" }

func (s *StoreChecker) Check(ctx context.Context) types.HealthResult {
	start := time.Now()

	err := s.Store.Ping()
	latency := time.Since(start)

	if err != nil {
		return types.HealthResult{
			Component: s.Component(),
			Status:    types.StatusUnhealthy,
			Latency:   latency,
			Message:   fmt.Sprintf("store ping failed: %v", err),
			CheckedAt: start,
		}
	}

	status := types.StatusHealthy
	if latency > s.Degraded {
		status = types.StatusDegraded
	}

	return types.HealthResult{
		Component: s.Component(),
		Status:    status,
		Latency:   latency,
		Message:   fmt.Sprintf("round trip %v", latency),
		CheckedAt: start,
	}
}
