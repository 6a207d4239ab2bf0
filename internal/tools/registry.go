package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/pkg/logger"
)

// RemoteSource lists the tools currently offered by connected servers.
type RemoteSource interface {
	ListServerTools(ctx context.Context) ([]Descriptor, error)
}

// Confirmer decides whether a tool call may run. Returning false cancels
// the call with ErrCancelled.
type Confirmer func(ctx context.Context, tool Tool, prompt string) bool

// Registry resolves tool calls against built-in tools and the tools of
// connected servers.
type Registry struct {
	mu       sync.RWMutex
	builtins []Tool
	remote   RemoteSource
	invoker  *Invoker
	confirm  Confirmer
	log      *zap.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithConfirmer requires confirm to approve every call.
func WithConfirmer(confirm Confirmer) RegistryOption {
	return func(r *Registry) { r.confirm = confirm }
}

// NewRegistry creates a registry. remote and invoker may be nil when no
// tool servers are configured.
func NewRegistry(remote RemoteSource, invoker *Invoker, opts ...RegistryOption) *Registry {
	r := &Registry{
		remote:  remote,
		invoker: invoker,
		log:     logger.Named("tools"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a built-in tool. Function names are unique regardless of case.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.builtins {
		if strings.EqualFold(existing.FunctionName(), tool.FunctionName()) {
			return fmt.Errorf("tool %q already registered", tool.FunctionName())
		}
	}
	r.log.Debug("registering tool", zap.String("function", tool.FunctionName()))
	r.builtins = append(r.builtins, tool)
	return nil
}

// EnabledTools returns enabled built-ins followed by remote tools. A failing
// remote listing is logged and only built-ins are returned.
func (r *Registry) EnabledTools(ctx context.Context) []Tool {
	r.mu.RLock()
	result := make([]Tool, 0, len(r.builtins))
	for _, t := range r.builtins {
		if t.IsEnabled() {
			result = append(result, t)
		}
	}
	r.mu.RUnlock()

	if r.remote == nil || r.invoker == nil {
		return result
	}
	descriptors, err := r.remote.ListServerTools(ctx)
	if err != nil {
		r.log.Warn("failed to list server tools", zap.Error(err))
		return result
	}
	for _, d := range descriptors {
		result = append(result, NewMCPTool(d, r.invoker))
	}
	return result
}

// Definitions returns function-calling declarations for every enabled tool.
func (r *Registry) Definitions(ctx context.Context) []openai.Tool {
	enabled := r.EnabledTools(ctx)
	defs := make([]openai.Tool, 0, len(enabled))
	for _, t := range enabled {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Find resolves a function name case-insensitively.
func (r *Registry) Find(ctx context.Context, name string) (Tool, bool) {
	r.log.Debug("finding tool call", zap.String("function", name))
	for _, t := range r.EnabledTools(ctx) {
		if strings.EqualFold(t.FunctionName(), name) {
			return t, true
		}
	}
	return nil, false
}

// Perform runs tool after confirmation and folds its output.
func (r *Registry) Perform(ctx context.Context, tool Tool, params string) (ResultContents, error) {
	if r.confirm != nil && !r.confirm(ctx, tool, ConfirmationPrompt(tool)) {
		return ResultContents{}, ErrCancelled
	}
	output, err := tool.Execute(ctx, params)
	if err != nil {
		return ResultContents{}, fmt.Errorf("tool execution failed: %w", err)
	}
	return ProcessResult(output), nil
}
