package breaker

import (
	"sort"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/rs/zerolog"
)

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

const (
	// DefaultThreshold is the consecutive-failure count that opens a breaker.
	DefaultThreshold = 5
	// DefaultCooldown is how long an open breaker waits before half-open.
	DefaultCooldown = 5 * time.Minute
)

type breaker struct {
	name          string
	failureCount  int
	lastFailureAt time.Time
	state         State
	openedAt      time.Time
	cooldown      time.Duration
}

// Registry tracks one breaker per operation name. Unknown names behave as
// closed breakers.
type Registry struct {
	mu        sync.Mutex
	breakers  map[string]*breaker
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithThreshold overrides the consecutive-failure threshold.
func WithThreshold(n int) Option {
	return func(r *Registry) { r.threshold = n }
}

// WithCooldown overrides the open-state cooldown.
func WithCooldown(d time.Duration) Option {
	return func(r *Registry) { r.cooldown = d }
}

// WithClock injects a clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry with production defaults.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		breakers:  make(map[string]*breaker),
		threshold: DefaultThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		logger:    log.WithComponent("breaker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) get(name string) *breaker {
	b, ok := r.breakers[name]
	if !ok {
		b = &breaker{name: name, state: StateClosed, cooldown: r.cooldown}
		r.breakers[name] = b
	}
	return b
}

// CanExecute reports whether the operation may run. An open breaker whose
// cooldown has elapsed transitions to half-open as part of the query and
// admits the caller.
func (r *Registry) CanExecute(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		return true // implicit closed
	}

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if r.now().Sub(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			r.logger.Info().
				Str("operation", name).
				Msg("breaker cooled down, entering half-open")
			return true
		}
		return false
	}
	return true
}

// RecordSuccess resets the failure counter and closes a half-open breaker.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(name)
	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.openedAt = time.Time{}
		r.logger.Info().
			Str("operation", name).
			Msg("breaker closed after successful probe")
	}
}

// RecordFailure increments the counter. Reaching the threshold while closed
// opens the breaker; any failure while half-open re-opens it.
func (r *Registry) RecordFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(name)
	b.failureCount++
	b.lastFailureAt = r.now()

	switch b.state {
	case StateClosed:
		if b.failureCount >= r.threshold {
			b.state = StateOpen
			b.openedAt = r.now()
			r.logger.Warn().
				Str("operation", name).
				Int("failures", b.failureCount).
				Msg("breaker opened")
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = r.now()
		r.logger.Warn().
			Str("operation", name).
			Msg("breaker re-opened from half-open")
	}
}

// Reset unconditionally returns the breaker to closed with zero counters.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.get(name)
	b.failureCount = 0
	b.state = StateClosed
	b.openedAt = time.Time{}
	b.lastFailureAt = time.Time{}
}

// Evaluate walks all breakers and promotes any open breaker whose cooldown
// has elapsed to half-open. It returns the snapshots of breakers that
// changed.
func (r *Registry) Evaluate() []types.BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	var changed []types.BreakerState
	for _, b := range r.breakers {
		if b.state == StateOpen && r.now().Sub(b.openedAt) >= b.cooldown {
			b.state = StateHalfOpen
			changed = append(changed, snapshot(b))
		}
	}
	sort.Slice(changed, func(i, j int) bool {
		return changed[i].OperationName < changed[j].OperationName
	})
	return changed
}

// States returns a snapshot of every known breaker, sorted by operation name.
func (r *Registry) States() []types.BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]types.BreakerState, 0, len(r.breakers))
	for _, b := range r.breakers {
		states = append(states, snapshot(b))
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].OperationName < states[j].OperationName
	})
	return states
}

func snapshot(b *breaker) types.BreakerState {
	return types.BreakerState{
		OperationName: b.name,
		FailureCount:  b.failureCount,
		LastFailureAt: b.lastFailureAt,
		State:         b.state.String(),
		OpenedAt:      b.openedAt,
		Cooldown:      b.cooldown,
	}
}
