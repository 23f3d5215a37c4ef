package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/aegislabs/aegis/pkg/memory"
	"github.com/aegislabs/aegis/pkg/tools"
	"github.com/aegislabs/aegis/pkg/types"
)

// Completer is the narrow contract to the language-model collaborator.
type Completer interface {
	// Complete produces text for a role prompt and reports tokens used.
	Complete(ctx context.Context, desc RoleDescriptor, prompt string) (string, int, error)
}

// HandlerContext is what a role handler may touch during one task.
type HandlerContext struct {
	Descriptor RoleDescriptor
	Executor   *tools.Executor
	Memory     memory.Recaller
	Completer  Completer
}

// Handler executes one task for one role.
type Handler interface {
	Handle(ctx context.Context, task *types.Task, hctx *HandlerContext) (*types.TaskResult, error)
}

// roleHandler is the sub-handler path: it recalls relevant memory, asks the
// model collaborator for a completion, and invokes at most one tool when the
// task payload requests it.
type roleHandler struct{}

func (roleHandler) Handle(ctx context.Context, task *types.Task, hctx *HandlerContext) (*types.TaskResult, error) {
	result := &types.TaskResult{}

	var notes []string
	if hctx.Memory != nil {
		recalled, err := hctx.Memory.Recall("tasks", task.Title, 5)
		if err == nil {
			for _, m := range recalled {
				notes = append(notes, m.Content)
			}
		}
	}

	prompt := buildPrompt(task, notes)
	output := task.Title
	if hctx.Completer != nil {
		text, tokens, err := hctx.Completer.Complete(ctx, hctx.Descriptor, prompt)
		if err != nil {
			return nil, fmt.Errorf("completion failed: %w", err)
		}
		output = text
		result.TokensUsed = tokens
	}

	if toolName, ok := task.Payload["tool"].(string); ok && toolName != "" {
		if !allowed(hctx.Descriptor.AllowedTools, toolName) {
			result.Success = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("tool %s not allowed for role %s", toolName, hctx.Descriptor.Role))
			result.Output = output
			return result, nil
		}

		input, _ := task.Payload["input"].(map[string]any)
		value, _ := task.Payload["estimated_value"].(float64)
		toolRes, err := hctx.Executor.Invoke(ctx, string(hctx.Descriptor.Role), toolName, input,
			tools.InvokeOptions{EstimatedValue: value})
		if err != nil {
			return nil, err
		}
		if !toolRes.Success {
			result.Success = false
			result.Errors = append(result.Errors, toolRes.Error)
			result.Output = output
			return result, nil
		}
	}

	result.Success = true
	result.Output = output
	return result, nil
}

func buildPrompt(task *types.Task, notes []string) string {
	var b strings.Builder
	b.WriteString(task.Title)
	if task.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(task.Description)
	}
	if len(notes) > 0 {
		b.WriteString("\n\nRelevant memory:\n")
		for _, n := range notes {
			b.WriteString("- ")
			b.WriteString(n)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func allowed(allowedTools []string, name string) bool {
	for _, t := range allowedTools {
		if t == name {
			return true
		}
	}
	return false
}
