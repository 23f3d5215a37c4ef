package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aegislabs/aegis/pkg/audit"
	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/governance"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/types"
)

// Invocation result error strings are stable so callers can branch on them.
const (
	ErrInvalidInput     = "invalid input"
	ErrBreakerOpen      = "breaker open"
	ErrApprovalRequired = "approval required"
	ErrUnknownTool      = "unknown tool"
)

// InvokeOptions carry per-invocation governance context.
type InvokeOptions struct {
	EstimatedValue    float64
	AuthorityOverride types.Authority
}

// Executor wraps every tool invocation in the uniform protocol: schema
// validation, governance, circuit breaker, execution, breaker observation,
// audit.
type Executor struct {
	registry   *Registry
	governance *governance.Engine
	breakers   *breaker.Registry
	ledger     *audit.Ledger
	broker     *events.Broker
}

// NewExecutor creates an execution wrapper over the registry.
func NewExecutor(registry *Registry, gov *governance.Engine, breakers *breaker.Registry, ledger *audit.Ledger, broker *events.Broker) *Executor {
	return &Executor{
		registry:   registry,
		governance: gov,
		breakers:   breakers,
		ledger:     ledger,
		broker:     broker,
	}
}

// Invoke runs the named tool for the given actor. Failures are values: the
// returned result always describes the outcome, and the error return is
// reserved for audit persistence failures, which are fatal to the caller.
func (x *Executor) Invoke(ctx context.Context, actor, toolName string, input map[string]any, opts InvokeOptions) (*types.ToolResult, error) {
	tool, ok := x.registry.Get(toolName)
	if !ok {
		return &types.ToolResult{Success: false, Error: ErrUnknownTool}, nil
	}

	logger := log.WithTool(toolName)
	x.broker.Emit(events.EventToolInvoked, actor, map[string]any{"tool": toolName})

	// 1. Schema validation. Failures are returned synchronously, never
	// retried, and carry no breaker observation.
	if err := tool.ValidateInput(input); err != nil {
		logger.Debug().Err(err).Msg("input rejected")
		return &types.ToolResult{Success: false, Error: ErrInvalidInput}, nil
	}

	// 2. Governance.
	decision := x.governance.Decide(governance.Request{
		Tool: governance.ToolProfile{
			Name:             tool.Name,
			RiskLevel:        tool.RiskLevel,
			RequiresApproval: tool.RequiresApproval,
		},
		AuthorityOverride: opts.AuthorityOverride,
		EstimatedValue:    opts.EstimatedValue,
	})

	if decision.Authority == types.AuthorityRequireApproval || decision.Authority == types.AuthorityRequireHuman {
		result := &types.ToolResult{
			Success: false,
			Error:   ErrApprovalRequired,
			Metadata: map[string]any{
				"authority": string(decision.Authority),
				"reason":    decision.Reason,
			},
		}
		if err := x.audit(actor, tool, input, result, decision); err != nil {
			return nil, err
		}
		x.emitResult(actor, toolName, result)
		return result, nil
	}

	// 3. Circuit breaker gate.
	if !x.breakers.CanExecute(tool.Name) {
		result := &types.ToolResult{Success: false, Error: ErrBreakerOpen}
		x.emitResult(actor, toolName, result)
		return result, nil
	}

	// 4. Execution. Panics and errors become failure results.
	result := x.execute(ctx, tool, input)

	// 5. Exactly one breaker observation per executed invocation.
	if result.Success {
		x.breakers.RecordSuccess(tool.Name)
	} else {
		x.breakers.RecordFailure(tool.Name)
	}

	// 6. Audit.
	if decision.AuditRequired {
		if err := x.audit(actor, tool, input, result, decision); err != nil {
			return nil, err
		}
	}

	x.emitResult(actor, toolName, result)
	return result, nil
}

func (x *Executor) execute(ctx context.Context, tool *Tool, input map[string]any) (result *types.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithTool(tool.Name)
			logger.Error().
				Interface("panic", r).
				Msg("tool panicked")
			result = &types.ToolResult{
				Success: false,
				Error:   fmt.Sprintf("tool panicked: %v", r),
			}
		}
	}()

	start := time.Now()
	res, err := tool.Execute(ctx, input)
	if err != nil {
		return &types.ToolResult{Success: false, Error: err.Error()}
	}
	if res == nil {
		return &types.ToolResult{Success: false, Error: "tool returned no result"}
	}
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	res.Metadata["duration_ms"] = time.Since(start).Milliseconds()
	return res
}

func (x *Executor) audit(actor string, tool *Tool, input map[string]any, result *types.ToolResult, decision governance.Decision) error {
	details := map[string]any{
		"input":     Redact(input),
		"success":   result.Success,
		"authority": string(decision.Authority),
	}
	if result.Error != "" {
		details["error"] = result.Error
	}
	_, err := x.ledger.Record(actor, tool.Name, x.target(tool, input), details)
	return err
}

// target resolves the audit target from the tool's declared target field,
// falling back to the tool name.
func (x *Executor) target(tool *Tool, input map[string]any) string {
	if tool.TargetField != "" {
		if v, ok := input[tool.TargetField].(string); ok && v != "" {
			return v
		}
	}
	return tool.Name
}

func (x *Executor) emitResult(actor, toolName string, result *types.ToolResult) {
	x.broker.Emit(events.EventToolResult, actor, map[string]any{
		"tool":    toolName,
		"success": result.Success,
	})
}

// Redact returns a copy of the input safe for the audit trail: sensitive
// keys are masked and long strings truncated.
func Redact(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for k, v := range input {
		if sensitiveKey(k) {
			out[k] = "[redacted]"
			continue
		}
		if s, ok := v.(string); ok && len(s) > 256 {
			out[k] = s[:256] + "..."
			continue
		}
		out[k] = v
	}
	return out
}

func sensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, marker := range []string{"token", "secret", "password", "credential", "api_key", "apikey"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
