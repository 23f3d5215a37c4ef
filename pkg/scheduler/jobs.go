package scheduler

import (
	"time"

	"github.com/aegislabs/aegis/pkg/types"
)

// InstallDefaultJobs registers the recurring jobs every daemon runs.
func (s *Scheduler) InstallDefaultJobs() {
	defaults := []*types.ScheduledJob{
		{
			ID:       "self-evaluation",
			Name:     "self evaluation",
			TaskType: types.TaskTypeSelfEvaluation,
			Priority: types.PriorityLow,
			Interval: 24 * time.Hour,
			Enabled:  true,
		},
		{
			ID:       "sync-pulse",
			Name:     "sync pulse",
			TaskType: types.TaskTypeSyncPulse,
			Priority: types.PriorityLow,
			Interval: time.Hour,
			Enabled:  true,
		},
		{
			ID:       "memory-consolidation",
			Name:     "memory consolidation",
			TaskType: types.TaskTypeMemoryConsolidate,
			Priority: types.PriorityLow,
			Interval: 6 * time.Hour,
			Enabled:  true,
		},
		{
			ID:       "health-check",
			Name:     "health check",
			TaskType: types.TaskTypeHealthCheck,
			Priority: types.PriorityHigh,
			Interval: 30 * time.Second,
			Enabled:  true,
		},
		{
			ID:       "breaker-evaluation",
			Name:     "breaker evaluation",
			TaskType: types.TaskTypeBreakerEvaluation,
			Priority: types.PriorityMedium,
			Interval: time.Minute,
			Enabled:  true,
		},
		{
			ID:       "dependency-audit",
			Name:     "dependency audit",
			TaskType: types.TaskTypeDependencyAudit,
			Priority: types.PriorityMedium,
			Interval: 6 * time.Hour,
			Enabled:  true,
		},
		{
			ID:       "introspection",
			Name:     "introspection",
			TaskType: types.TaskTypeIntrospection,
			Priority: types.PriorityLow,
			Interval: time.Hour,
			Enabled:  true,
		},
	}
	for _, job := range defaults {
		s.AddJob(job)
	}
}
