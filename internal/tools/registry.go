// Package tools defines the agent's callable actions and the registry
// that dispatches them by name.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateTool is returned when a tool name is registered twice.
// Rejecting duplicates avoids one tool silently shadowing another.
var ErrDuplicateTool = errors.New("tool already registered")

// Definition describes a single tool the agent can invoke. Execute takes
// the model-provided action_input and returns observation text. Tools must
// tolerate empty input and report their own validation problems as text.
type Definition struct {
	Name          string
	Description   string
	ParameterHint string
	Execute       func(ctx context.Context, input string) (string, error)
}

// Registry holds all registered tools. The set of registered names is the
// only vocabulary the model may use in its action field.
type Registry struct {
	order  []string
	byName map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Definition)}
}

// Register adds a tool. Registering an already-present name fails.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("tool name must not be empty")
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	r.byName[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get looks up a tool by name. Unknown names are not an error.
func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.byName[name]
	return def, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Describe renders the tool catalogue for injection into the system
// prompt. Output order is registration order, so the rendered prompt is
// stable across runs.
func (r *Registry) Describe() string {
	lines := make([]string, 0, len(r.order))
	for _, name := range r.order {
		def := r.byName[name]
		lines = append(lines, fmt.Sprintf("- %s: %s (action_input: %s)",
			def.Name, def.Description, def.ParameterHint))
	}
	return strings.Join(lines, "\n")
}
