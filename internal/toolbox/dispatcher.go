// ABOUTME: Dispatcher resolves a tool by name, merges defaults, runs it and normalizes the outcome.
// ABOUTME: Shared by every protocol adapter so all of them see one source of truth.

package toolbox

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tool-gateway/internal/serialize"
)

// Request is a protocol-neutral invocation after adapter normalization.
type Request struct {
	ToolName  string
	Arguments map[string]any
	Protocol  string // adapter that received the call, e.g. "jsonrpc" or "rest"
	SessionID string
}

// Result holds either a JSON-safe Value or an Err, never both.
type Result struct {
	Value any
	Err   *Error
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Observation describes one finished invocation for observers.
type Observation struct {
	InvocationID string
	ToolName     string
	Protocol     string
	SessionID    string
	StartedAt    time.Time
	Duration     time.Duration
	ErrKind      ErrorKind // empty on success
	ErrMessage   string
}

// Success reports whether the observed invocation succeeded.
func (o Observation) Success() bool {
	return o.ErrKind == ""
}

// Observer receives an Observation after every invocation.
type Observer interface {
	ObserveInvoke(ctx context.Context, obs Observation)
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Registry  *Registry
	Logger    *slog.Logger
	Observers []Observer
}

// Dispatcher invokes registered tools. It imposes no timeout of its own; the
// caller's context carries any deadline.
type Dispatcher struct {
	registry  *Registry
	logger    *slog.Logger
	observers []Observer
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observers := make([]Observer, 0, len(cfg.Observers))
	for _, o := range cfg.Observers {
		if o != nil {
			observers = append(observers, o)
		}
	}
	return &Dispatcher{
		registry:  cfg.Registry,
		logger:    logger,
		observers: observers,
	}
}

// Registry returns the registry this dispatcher reads from.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// HasTool reports whether name resolves to a registered tool.
func (d *Dispatcher) HasTool(name string) bool {
	_, ok := d.registry.Get(name)
	return ok
}

// Invoke runs the named tool and returns a normalized Result. Failures from the
// implementation, including panics and serialization errors, come back as
// KindInvocationFailed; they never propagate to the caller.
func (d *Dispatcher) Invoke(ctx context.Context, req Request) Result {
	obs := Observation{
		InvocationID: uuid.New().String(),
		ToolName:     req.ToolName,
		Protocol:     req.Protocol,
		SessionID:    req.SessionID,
		StartedAt:    time.Now(),
	}

	result := d.invoke(ctx, req, obs.InvocationID)

	obs.Duration = time.Since(obs.StartedAt)
	if result.Err != nil {
		obs.ErrKind = result.Err.Kind
		obs.ErrMessage = result.Err.Message
	}
	d.notify(ctx, obs)

	return result
}

func (d *Dispatcher) invoke(ctx context.Context, req Request, invocationID string) Result {
	tool, ok := d.registry.Get(req.ToolName)
	if !ok {
		d.logger.Debug("tool not found in registry",
			"tool_name", req.ToolName,
			"invocation_id", invocationID,
		)
		return Result{Err: &Error{
			Kind:    KindUnknownTool,
			Message: fmt.Sprintf("tool '%s' not found", req.ToolName),
			Err:     ErrToolNotFound,
		}}
	}

	args, err := bindArgs(tool, req.Arguments)
	if err != nil {
		return Result{Err: wrapError(KindInvocationFailed, err)}
	}

	d.logger.Info("→ dispatching tool",
		"tool_name", tool.Name,
		"protocol", req.Protocol,
		"invocation_id", invocationID,
	)

	raw, err := d.call(ctx, tool, args)
	if err != nil {
		d.logger.Warn("tool invocation failed",
			"tool_name", tool.Name,
			"invocation_id", invocationID,
			"error", err,
		)
		return Result{Err: wrapError(KindInvocationFailed, err)}
	}

	value, err := serialize.Value(raw)
	if err != nil {
		d.logger.Warn("tool result not serializable",
			"tool_name", tool.Name,
			"invocation_id", invocationID,
			"error", err,
		)
		return Result{Err: wrapError(KindInvocationFailed, err)}
	}

	d.logger.Info("← tool responded",
		"tool_name", tool.Name,
		"invocation_id", invocationID,
	)
	return Result{Value: value}
}

// bindArgs merges declared defaults for omitted parameters. Parameters marked
// Required that were not supplied stay absent; the implementation reports them.
func bindArgs(tool *Tool, supplied map[string]any) (Args, error) {
	args := make(Args, len(tool.Parameters))
	for name, v := range supplied {
		if _, ok := tool.Param(name); !ok {
			return nil, fmt.Errorf("%s() got an unexpected argument '%s'", tool.Name, name)
		}
		args[name] = v
	}
	for _, p := range tool.Parameters {
		if _, ok := args[p.Name]; ok || p.IsRequired() {
			continue
		}
		args[p.Name] = cloneDefault(p.Default)
	}
	return args, nil
}

// cloneDefault copies container defaults so one call cannot leak into the next.
func cloneDefault(v any) any {
	switch d := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(d))
		for k, item := range d {
			out[k] = cloneDefault(item)
		}
		return out
	case []any:
		out := make([]any, len(d))
		for i, item := range d {
			out[i] = cloneDefault(item)
		}
		return out
	case []string:
		out := make([]string, len(d))
		copy(out, d)
		return out
	default:
		return v
	}
}

// call runs the implementation, converting a panic into an error.
func (d *Dispatcher) call(ctx context.Context, tool *Tool, args Args) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("tool panicked",
				"tool_name", tool.Name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			value = nil
			err = fmt.Errorf("tool '%s' panicked: %v", tool.Name, rec)
		}
	}()
	return tool.Func(ctx, args)
}

func (d *Dispatcher) notify(ctx context.Context, obs Observation) {
	// Recording must not depend on the request still being live.
	ctx = context.WithoutCancel(ctx)
	for _, o := range d.observers {
		o.ObserveInvoke(ctx, obs)
	}
}
