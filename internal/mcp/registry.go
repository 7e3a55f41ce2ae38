package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ToolSpec documents a tool's contract (name + schemas).
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	ReadOnly    bool            `json:"-"`
}

// Tool is a minimal in-process MCP-style tool.
type Tool interface {
	Spec() ToolSpec
	Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// CallObserver is told about every dispatched tool call.
type CallObserver interface {
	ObserveToolCall(tool string, elapsed time.Duration, failed bool)
}

// ErrUnknownTool is returned by Call for names that were never registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry holds tool registrations and dispatches calls.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	observer CallObserver
}

// NewRegistry creates an empty registry and registers any provided tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// SetObserver installs o; nil disables observation.
func (r *Registry) SetObserver(o CallObserver) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	if r == nil || t == nil {
		return
	}
	spec := t.Spec()
	if spec.Name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = map[string]Tool{}
	}
	r.tools[spec.Name] = t
}

// Lookup returns the tool registered as name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Call invokes a registered tool.
func (r *Registry) Call(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	if r == nil {
		return nil, fmt.Errorf("mcp: registry is nil")
	}
	r.mu.RLock()
	t, ok := r.tools[name]
	obs := r.observer
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mcp: %w %q", ErrUnknownTool, name)
	}
	start := time.Now()
	out, err := t.Call(ctx, input)
	if obs != nil {
		obs.ObserveToolCall(name, time.Since(start), err != nil)
	}
	return out, err
}

// Specs returns the current tool specs sorted by name.
func (r *Registry) Specs() []ToolSpec {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Spec())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
