package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/aegislabs/aegis/pkg/audit"
	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/governance"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRig struct {
	executor *Executor
	registry *Registry
	breakers *breaker.Registry
	ledger   *audit.Ledger
	broker   *events.Broker
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	registry := NewRegistry(store)
	breakers := breaker.NewRegistry(breaker.WithThreshold(2))
	ledger := audit.NewLedger(store)

	return &testRig{
		executor: NewExecutor(registry, governance.NewEngine(), breakers, ledger, broker),
		registry: registry,
		breakers: breakers,
		ledger:   ledger,
		broker:   broker,
	}
}

func echoTool(name string, risk types.RiskLevel) *Tool {
	return &Tool{
		Name:      name,
		RiskLevel: risk,
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"text"},
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
		Execute: func(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
			return &types.ToolResult{Success: true, Data: map[string]any{"text": input["text"]}}, nil
		},
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	rig := newTestRig(t)

	result, err := rig.executor.Invoke(context.Background(), "analyst", "missing", nil, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrUnknownTool, result.Error)
}

func TestInvokeInvalidInput(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register(echoTool("echo", types.RiskLow)))

	result, err := rig.executor.Invoke(context.Background(), "analyst", "echo",
		map[string]any{"wrong": true}, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrInvalidInput, result.Error)

	// Validation failures carry no breaker observation.
	for _, st := range rig.breakers.States() {
		assert.Equal(t, 0, st.FailureCount)
	}
}

func TestInvokeSuccess(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register(echoTool("echo", types.RiskLow)))

	result, err := rig.executor.Invoke(context.Background(), "analyst", "echo",
		map[string]any{"text": "hello"}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Data["text"])
	assert.Contains(t, result.Metadata, "duration_ms")
}

func TestInvokeBlockedByGovernance(t *testing.T) {
	rig := newTestRig(t)
	var executed bool
	require.NoError(t, rig.registry.Register(&Tool{
		Name:      "payment_transfer",
		RiskLevel: types.RiskCritical,
		Execute: func(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
			executed = true
			return &types.ToolResult{Success: true}, nil
		},
	}))

	result, err := rig.executor.Invoke(context.Background(), "treasurer", "payment_transfer",
		map[string]any{"amount": 10.0}, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrApprovalRequired, result.Error)
	assert.False(t, executed)

	// The refusal itself is audited.
	entries, err := rig.ledger.ByActor("treasurer", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "payment_transfer", entries[0].Action)
}

func TestInvokeBreakerGate(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register(&Tool{
		Name:      "flaky",
		RiskLevel: types.RiskLow,
		Execute: func(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
			return nil, fmt.Errorf("upstream unavailable")
		},
	}))

	// Two failures trip the threshold-2 breaker.
	for i := 0; i < 2; i++ {
		result, err := rig.executor.Invoke(context.Background(), "operator", "flaky", nil, InvokeOptions{})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "upstream unavailable", result.Error)
	}

	result, err := rig.executor.Invoke(context.Background(), "operator", "flaky", nil, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ErrBreakerOpen, result.Error)
}

func TestInvokePanicBecomesFailure(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register(&Tool{
		Name:      "bomb",
		RiskLevel: types.RiskLow,
		Execute: func(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
			panic("boom")
		},
	}))

	result, err := rig.executor.Invoke(context.Background(), "operator", "bomb", nil, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
}

func TestInvokeAuditsRedactedInput(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register(&Tool{
		Name:        "send",
		RiskLevel:   types.RiskMedium, // logOnly with audit
		TargetField: "recipient",
		Execute: func(ctx context.Context, input map[string]any) (*types.ToolResult, error) {
			return &types.ToolResult{Success: true}, nil
		},
	}))

	_, err := rig.executor.Invoke(context.Background(), "herald", "send", map[string]any{
		"recipient": "ops@example.com",
		"api_key":   "super-secret",
	}, InvokeOptions{})
	require.NoError(t, err)

	entries, err := rig.ledger.ByActor("herald", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ops@example.com", entries[0].Target)

	input := entries[0].Details["input"].(map[string]any)
	assert.Equal(t, "[redacted]", input["api_key"])
	assert.Equal(t, "ops@example.com", input["recipient"])
}

func TestRedact(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	out := Redact(map[string]any{
		"password":  "hunter2",
		"AuthToken": "abc",
		"note":      string(long),
		"plain":     "ok",
		"numeric":   42,
	})
	assert.Equal(t, "[redacted]", out["password"])
	assert.Equal(t, "[redacted]", out["AuthToken"])
	assert.Len(t, out["note"], 259)
	assert.Equal(t, "ok", out["plain"])
	assert.Equal(t, 42, out["numeric"])
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.registry.Register(echoTool("echo", types.RiskLow)))
	assert.Error(t, rig.registry.Register(echoTool("echo", types.RiskLow)))
}
