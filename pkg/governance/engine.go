package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/google/uuid"
)

const (
	// decisionLogCap bounds the in-memory decision log. On overflow the
	// oldest half is dropped.
	decisionLogCap = 10000
)

// ToolProfile is the slice of a tool the engine needs to decide on.
type ToolProfile struct {
	Name             string
	RiskLevel        types.RiskLevel
	RequiresApproval bool
}

// Request describes a proposed invocation.
type Request struct {
	Tool ToolProfile
	// AuthorityOverride, when non-empty, replaces the policy authority for
	// this single operation before the floors and escalations apply.
	AuthorityOverride types.Authority
	// EstimatedValue triggers value-threshold escalation when it exceeds the
	// policy's MaxAutoApproveValue.
	EstimatedValue float64
}

// Decision is the recorded outcome for one request.
type Decision struct {
	ID            string
	Tool          string
	RiskLevel     types.RiskLevel
	Authority     types.Authority
	AuditRequired bool
	Reason        string
	DecidedAt     time.Time
}

// Engine maps a tool's risk level to an authority and records every decision.
type Engine struct {
	mu        sync.Mutex
	policies  map[types.RiskLevel]types.GovernancePolicy
	decisions []Decision
}

// NewEngine creates an engine with the default policy table.
func NewEngine() *Engine {
	return &Engine{
		policies: map[types.RiskLevel]types.GovernancePolicy{
			types.RiskCritical: {RiskLevel: types.RiskCritical, Authority: types.AuthorityRequireHuman, AuditRequired: true},
			types.RiskHigh:     {RiskLevel: types.RiskHigh, Authority: types.AuthorityRequireApproval, AuditRequired: true},
			types.RiskMedium:   {RiskLevel: types.RiskMedium, Authority: types.AuthorityLogOnly, AuditRequired: true},
			types.RiskLow:      {RiskLevel: types.RiskLow, Authority: types.AuthorityAutoApprove, AuditRequired: false},
		},
	}
}

// SetPolicy replaces the policy for one risk level.
func (e *Engine) SetPolicy(p types.GovernancePolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.RiskLevel] = p
}

// Policies returns a copy of the current policy table.
func (e *Engine) Policies() []types.GovernancePolicy {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]types.GovernancePolicy, 0, len(e.policies))
	for _, level := range []types.RiskLevel{types.RiskCritical, types.RiskHigh, types.RiskMedium, types.RiskLow} {
		if p, ok := e.policies[level]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Decide resolves the authority for a request and records the decision.
func (e *Engine) Decide(req Request) Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	policy, ok := e.policies[req.Tool.RiskLevel]
	if !ok {
		// Unknown risk is treated as critical.
		policy = e.policies[types.RiskCritical]
	}

	authority := policy.Authority
	reason := fmt.Sprintf("policy for %s risk", req.Tool.RiskLevel)

	if req.AuthorityOverride != "" {
		authority = req.AuthorityOverride
		reason = "per-operation override"
	}

	// A tool that declares requiresApproval is floored at requireApproval,
	// and at requireHuman when the risk is critical.
	if req.Tool.RequiresApproval {
		floor := types.AuthorityRequireApproval
		if req.Tool.RiskLevel == types.RiskCritical {
			floor = types.AuthorityRequireHuman
		}
		if rank(authority) < rank(floor) {
			authority = floor
			reason = "tool requires approval"
		}
	}

	if policy.MaxAutoApproveValue > 0 && req.EstimatedValue > policy.MaxAutoApproveValue {
		authority = escalate(authority)
		reason = fmt.Sprintf("Value threshold exceeded: %.2f > %.2f",
			req.EstimatedValue, policy.MaxAutoApproveValue)
	}

	d := Decision{
		ID:            uuid.New().String(),
		Tool:          req.Tool.Name,
		RiskLevel:     req.Tool.RiskLevel,
		Authority:     authority,
		AuditRequired: policy.AuditRequired,
		Reason:        reason,
		DecidedAt:     time.Now(),
	}
	e.record(d)

	logger := log.WithComponent("governance")
	logger.Debug().
		Str("tool", req.Tool.Name).
		Str("authority", string(authority)).
		Str("reason", reason).
		Msg("governance decision")
	return d
}

// CanAutoExecute reports whether the tool may run without approval.
func (e *Engine) CanAutoExecute(tool ToolProfile) bool {
	d := e.Decide(Request{Tool: tool})
	return d.Authority == types.AuthorityAutoApprove || d.Authority == types.AuthorityLogOnly
}

// Decisions returns the newest n recorded decisions, newest first.
func (e *Engine) Decisions(n int) []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n > len(e.decisions) {
		n = len(e.decisions)
	}
	out := make([]Decision, n)
	for i := 0; i < n; i++ {
		out[i] = e.decisions[len(e.decisions)-1-i]
	}
	return out
}

func (e *Engine) record(d Decision) {
	e.decisions = append(e.decisions, d)
	if len(e.decisions) > decisionLogCap {
		// Drop the oldest half.
		half := len(e.decisions) / 2
		e.decisions = append([]Decision(nil), e.decisions[half:]...)
	}
}

// rank orders authorities from most permissive to most restrictive.
func rank(a types.Authority) int {
	switch a {
	case types.AuthorityAutoApprove:
		return 0
	case types.AuthorityLogOnly:
		return 1
	case types.AuthorityRequireApproval:
		return 2
	case types.AuthorityRequireHuman:
		return 3
	default:
		return 3
	}
}

// escalate promotes an authority one step: autoApprove becomes
// requireApproval, everything else becomes requireHuman.
func escalate(a types.Authority) types.Authority {
	if a == types.AuthorityAutoApprove {
		return types.AuthorityRequireApproval
	}
	return types.AuthorityRequireHuman
}
