package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ExecuteFunc runs the tool against validated input. Failures should be
// returned as values; a returned error or panic is converted to a failure
// result by the executor.
type ExecuteFunc func(ctx context.Context, input map[string]any) (*types.ToolResult, error)

// Tool is a typed operation the daemon can invoke.
type Tool struct {
	Name             string
	Description      string
	Category         string
	InputSchema      map[string]any
	RequiresApproval bool
	RiskLevel        types.RiskLevel
	// TargetField names the input field recorded as the audit target.
	TargetField string
	Execute     ExecuteFunc

	schema *jsonschema.Schema
}

// Registry holds all registered tools by unique name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	store storage.Store
}

// NewRegistry creates a tool registry. The store, when non-nil, receives a
// manifest row per registered tool for the marketplace surface.
func NewRegistry(store storage.Store) *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
		store: store,
	}
}

// Register adds a tool. Registering the same name twice is an error. The
// input schema is compiled once here; invalid schemas are rejected at boot
// rather than at invocation time.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s: execute function is required", tool.Name)
	}

	if tool.InputSchema != nil {
		compiler := jsonschema.NewCompiler()
		url := "aegis://tools/" + tool.Name + ".json"
		if err := compiler.AddResource(url, tool.InputSchema); err != nil {
			return fmt.Errorf("tool %s: invalid input schema: %w", tool.Name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return fmt.Errorf("tool %s: failed to compile input schema: %w", tool.Name, err)
		}
		tool.schema = schema
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	r.tools[tool.Name] = tool

	if r.store != nil {
		manifest := map[string]any{
			"name":              tool.Name,
			"description":       tool.Description,
			"category":          tool.Category,
			"risk_level":        string(tool.RiskLevel),
			"requires_approval": tool.RequiresApproval,
			"input_schema":      tool.InputSchema,
		}
		if err := r.store.PutToolManifest(tool.Name, manifest); err != nil {
			return fmt.Errorf("tool %s: failed to persist manifest: %w", tool.Name, err)
		}
	}
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateInput checks input against the tool's compiled schema. Tools
// without a schema accept any input.
func (t *Tool) ValidateInput(input map[string]any) error {
	if t.schema == nil {
		return nil
	}
	// The validator expects decoded JSON; the opaque payload map already is.
	var doc any = input
	if input == nil {
		doc = map[string]any{}
	}
	if err := t.schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}
