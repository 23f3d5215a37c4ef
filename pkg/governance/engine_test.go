package governance

import (
	"fmt"
	"testing"

	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicyTable(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		risk      types.RiskLevel
		authority types.Authority
		audited   bool
	}{
		{types.RiskLow, types.AuthorityAutoApprove, false},
		{types.RiskMedium, types.AuthorityLogOnly, true},
		{types.RiskHigh, types.AuthorityRequireApproval, true},
		{types.RiskCritical, types.AuthorityRequireHuman, true},
	}
	for _, tt := range tests {
		d := e.Decide(Request{Tool: ToolProfile{Name: "t", RiskLevel: tt.risk}})
		assert.Equal(t, tt.authority, d.Authority, "risk %s", tt.risk)
		assert.Equal(t, tt.audited, d.AuditRequired, "risk %s", tt.risk)
	}
}

func TestUnknownRiskTreatedAsCritical(t *testing.T) {
	e := NewEngine()

	d := e.Decide(Request{Tool: ToolProfile{Name: "t", RiskLevel: "experimental"}})
	assert.Equal(t, types.AuthorityRequireHuman, d.Authority)
	assert.True(t, d.AuditRequired)
}

func TestRequiresApprovalFloor(t *testing.T) {
	e := NewEngine()

	// Low-risk tool that demands approval is floored at requireApproval.
	d := e.Decide(Request{Tool: ToolProfile{Name: "t", RiskLevel: types.RiskLow, RequiresApproval: true}})
	assert.Equal(t, types.AuthorityRequireApproval, d.Authority)

	// Critical-risk tool that demands approval is floored at requireHuman.
	d = e.Decide(Request{Tool: ToolProfile{Name: "t", RiskLevel: types.RiskCritical, RequiresApproval: true}})
	assert.Equal(t, types.AuthorityRequireHuman, d.Authority)
}

func TestValueThresholdEscalation(t *testing.T) {
	e := NewEngine()
	e.SetPolicy(types.GovernancePolicy{
		RiskLevel:           types.RiskLow,
		Authority:           types.AuthorityAutoApprove,
		MaxAutoApproveValue: 1000,
	})

	// Under the threshold: policy authority stands.
	d := e.Decide(Request{Tool: ToolProfile{Name: "pay", RiskLevel: types.RiskLow}, EstimatedValue: 900})
	assert.Equal(t, types.AuthorityAutoApprove, d.Authority)

	// Over the threshold: one-step escalation with an explicit reason.
	d = e.Decide(Request{Tool: ToolProfile{Name: "pay", RiskLevel: types.RiskLow}, EstimatedValue: 1500})
	assert.Equal(t, types.AuthorityRequireApproval, d.Authority)
	assert.Contains(t, d.Reason, "Value threshold exceeded")
}

func TestAuthorityOverride(t *testing.T) {
	e := NewEngine()

	d := e.Decide(Request{
		Tool:              ToolProfile{Name: "t", RiskLevel: types.RiskLow},
		AuthorityOverride: types.AuthorityRequireHuman,
	})
	assert.Equal(t, types.AuthorityRequireHuman, d.Authority)
	assert.Equal(t, "per-operation override", d.Reason)
}

func TestCanAutoExecute(t *testing.T) {
	e := NewEngine()

	assert.True(t, e.CanAutoExecute(ToolProfile{Name: "t", RiskLevel: types.RiskLow}))
	assert.True(t, e.CanAutoExecute(ToolProfile{Name: "t", RiskLevel: types.RiskMedium}))
	assert.False(t, e.CanAutoExecute(ToolProfile{Name: "t", RiskLevel: types.RiskHigh}))
	assert.False(t, e.CanAutoExecute(ToolProfile{Name: "t", RiskLevel: types.RiskCritical}))
}

func TestDecisionLogNewestFirst(t *testing.T) {
	e := NewEngine()

	for i := 0; i < 5; i++ {
		e.Decide(Request{Tool: ToolProfile{Name: fmt.Sprintf("tool-%d", i), RiskLevel: types.RiskLow}})
	}

	decisions := e.Decisions(3)
	assert.Len(t, decisions, 3)
	assert.Equal(t, "tool-4", decisions[0].Tool)
	assert.Equal(t, "tool-2", decisions[2].Tool)
}
