// Package tools – registry.go holds the name → implementation mapping the
// agent dispatches tool calls against. The registry is read-mostly and safe
// for concurrent use, so several conversations can share one instance.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

// ErrToolNotFound is returned when no tool is registered under a name.
var ErrToolNotFound = errors.New("tool not found")

// Tool is a capability the model can invoke by name.
type Tool interface {
	Name() string
	Description() string
	Parameters() llm.JSONSchema
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	ToolName        string
	ToolDescription string
	Schema          llm.JSONSchema
	Fn              func(ctx context.Context, args map[string]any) (any, error)
}

func (f Func) Name() string               { return f.ToolName }
func (f Func) Description() string        { return f.ToolDescription }
func (f Func) Parameters() llm.JSONSchema { return f.Schema }

func (f Func) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}

// Registry keeps the mapping between tool names and implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register inserts a tool when its name is not in use.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get fetches a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names, sorted.
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

// Schemas returns the tool descriptions to send to the model, sorted by name
// so prompts are stable between calls.
func (r *Registry) Schemas() []llm.ToolSchema {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return schemas
}

// validateArgs checks required fields and primitive types against schema.
func validateArgs(args map[string]any, schema llm.JSONSchema) error {
	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("missing required field: %s", field)
		}
	}
	for key, value := range args {
		def, ok := schema.Properties[key].(map[string]any)
		if !ok {
			continue
		}
		expected, _ := def["type"].(string)
		if expected == "" {
			continue
		}
		if !matchesType(value, expected) {
			return fmt.Errorf("field %s: expected %s, got %T", key, expected, value)
		}
	}
	return nil
}

func matchesType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		switch value.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}
