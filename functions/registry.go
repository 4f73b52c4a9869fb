// Package functions implements the client tools the agent may call on the
// device.
package functions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrUnknownTool is returned by Call for unregistered names.
var ErrUnknownTool = errors.New("unknown tool")

// Tool runs one client tool call and returns the text result for the agent.
type Tool func(ctx context.Context, params map[string]any) (string, error)

type entry struct {
	description string
	run         Tool
}

// Registry maps tool names, as configured on the agent, to implementations.
type Registry struct {
	tools map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(name, description string, run Tool) {
	r.tools[name] = entry{description: description, run: run}
}

// Call runs the named tool.
func (r *Registry) Call(ctx context.Context, name string, params map[string]any) (string, error) {
	e, ok := r.tools[name]
	if !ok {
		slog.Warn("⚠️ unknown tool called", "tool", name)
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	out, err := e.run(ctx, params)
	if err != nil {
		slog.Warn("🔧 tool failed", "tool", name, "error", err)
		return "", err
	}
	slog.Info("🔧 tool returned", "tool", name, "chars", len(out))
	return out, nil
}

// Names lists registered tools in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Describe returns a tool's description.
func (r *Registry) Describe(name string) (string, bool) {
	e, ok := r.tools[name]
	return e.description, ok
}
