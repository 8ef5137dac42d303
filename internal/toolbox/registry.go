// ABOUTME: Registry of callable tools keyed by name, kept in registration order.
// ABOUTME: Populated once at startup, then sealed before the gateway serves traffic.

package toolbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Func is the calling convention shared by every tool implementation. It runs on
// the caller's goroutine; any I/O it performs should honor ctx.
type Func func(ctx context.Context, args Args) (any, error)

// Tool is a registered tool descriptor and its implementation.
type Tool struct {
	Name        string
	Description string
	Parameters  []ParameterSpec
	Func        Func
}

// Param returns the ParameterSpec for the named parameter.
func (t *Tool) Param(name string) (ParameterSpec, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Registry holds the tools the gateway can dispatch to.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []string
	sealed bool
	logger *slog.Logger
}

// NewRegistry creates an empty, unsealed Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register validates and stores a tool.
// Returns ErrDuplicateTool if the name is taken, ErrRegistrySealed after Seal,
// and ErrInvalidTool for structurally malformed descriptors.
func (r *Registry) Register(name, description string, params []ParameterSpec, fn Func) error {
	if err := validateTool(name, params, fn); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register '%s'", ErrRegistrySealed, name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: '%s'", ErrDuplicateTool, name)
	}

	specs := make([]ParameterSpec, len(params))
	copy(specs, params)

	r.tools[name] = &Tool{
		Name:        name,
		Description: description,
		Parameters:  specs,
		Func:        fn,
	}
	r.order = append(r.order, name)

	r.logger.Debug("tool registered",
		"tool_name", name,
		"param_count", len(specs),
		"total_tools", len(r.order),
	)
	return nil
}

// validateTool checks the structural well-formedness of a descriptor.
func validateTool(name string, params []ParameterSpec, fn Func) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if fn == nil {
		return fmt.Errorf("%w: '%s' has no implementation", ErrInvalidTool, name)
	}
	seen := make(map[string]struct{}, len(params))
	for _, p := range params {
		if p.Name == "" {
			return fmt.Errorf("%w: '%s' has an unnamed parameter", ErrInvalidTool, name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: '%s' declares parameter '%s' twice", ErrInvalidTool, name, p.Name)
		}
		seen[p.Name] = struct{}{}
		if p.Type == TypeEnum && len(p.Enum) == 0 {
			return fmt.Errorf("%w: '%s.%s' is an enum with no values", ErrInvalidTool, name, p.Name)
		}
	}
	return nil
}

// Seal freezes the registry. Later Register calls fail with ErrRegistrySealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	r.sealed = true
	r.logger.Info("tool registry sealed", "total_tools", len(r.order))
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
