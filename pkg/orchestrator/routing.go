package orchestrator

import (
	"github.com/aegislabs/aegis/pkg/types"
)

// RoleDescriptor carries everything a role handler needs: its identity, the
// tool names it may invoke, and its decoding parameters.
type RoleDescriptor struct {
	Role         types.AgentRole
	Identity     string
	AllowedTools []string
	Temperature  float64
	MaxTokens    int
}

// roleTable maps every role to its descriptor.
var roleTable = map[types.AgentRole]RoleDescriptor{
	types.RoleOrchestrator: {
		Role:        types.RoleOrchestrator,
		Identity:    "Aegis orchestrator",
		Temperature: 0.2,
		MaxTokens:   2048,
	},
	types.RoleAnalyst: {
		Role:         types.RoleAnalyst,
		Identity:     "Aegis analyst",
		AllowedTools: []string{"memory_query", "http_fetch", "audit_query"},
		Temperature:  0.3,
		MaxTokens:    4096,
	},
	types.RoleOperator: {
		Role:         types.RoleOperator,
		Identity:     "Aegis operator",
		AllowedTools: []string{"memory_query", "http_fetch", "bus_send"},
		Temperature:  0.2,
		MaxTokens:    2048,
	},
	types.RoleTreasurer: {
		Role:         types.RoleTreasurer,
		Identity:     "Aegis treasurer",
		AllowedTools: []string{"memory_query", "payment_transfer", "audit_query"},
		Temperature:  0.1,
		MaxTokens:    2048,
	},
	types.RoleHerald: {
		Role:         types.RoleHerald,
		Identity:     "Aegis herald",
		AllowedTools: []string{"memory_query", "message_send", "bus_send"},
		Temperature:  0.5,
		MaxTokens:    2048,
	},
}

// routingTable is the single source of truth mapping task types to roles.
// Types absent from the table route to the orchestrator's direct path.
var routingTable = map[types.TaskType]types.AgentRole{
	types.TaskTypeResearch:         types.RoleAnalyst,
	types.TaskTypeOperations:       types.RoleOperator,
	types.TaskTypeFinance:          types.RoleTreasurer,
	types.TaskTypeOutreach:         types.RoleHerald,
	types.TaskTypeMessagingInbound: types.RoleHerald,
}

// RouteTask returns the role responsible for a task type. The function is
// total: unknown and system task types route to the orchestrator.
func RouteTask(taskType types.TaskType) types.AgentRole {
	if role, ok := routingTable[taskType]; ok {
		return role
	}
	return types.RoleOrchestrator
}

// DescribeRole returns the descriptor for a role, falling back to the
// orchestrator's own descriptor.
func DescribeRole(role types.AgentRole) RoleDescriptor {
	if d, ok := roleTable[role]; ok {
		return d
	}
	return roleTable[types.RoleOrchestrator]
}
