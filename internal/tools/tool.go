// Package tools defines the tool capability set exposed to the model, the
// registry that resolves tool calls, and the invoker that bridges calls to
// remote tool servers.
package tools

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Tool is a named capability the model can call.
type Tool interface {
	// ShortDescription is a user-facing summary.
	ShortDescription() string
	// InterfaceName is the user-facing name.
	InterfaceName() string
	// FunctionName is the name the model calls the tool by.
	FunctionName() string
	// Definition is the function-calling declaration sent to the model.
	Definition() openai.Tool
	IsEnabled() bool
	// Execute runs the tool with JSON-encoded arguments.
	Execute(ctx context.Context, input string) (string, error)
}

const defaultMCPDescription = "MCP Tool"

// MCPTool is a tool hosted by a remote MCP server.
type MCPTool struct {
	info    Descriptor
	invoker *Invoker
}

// NewMCPTool wraps a remote tool descriptor.
func NewMCPTool(info Descriptor, invoker *Invoker) *MCPTool {
	return &MCPTool{info: info, invoker: invoker}
}

// Info returns the underlying descriptor.
func (t *MCPTool) Info() Descriptor { return t.info }

func (t *MCPTool) ShortDescription() string {
	if t.info.Description == "" {
		return defaultMCPDescription
	}
	return t.info.Description
}

func (t *MCPTool) InterfaceName() string { return t.info.Name }

func (t *MCPTool) FunctionName() string { return t.info.Name }

func (t *MCPTool) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.info.Name,
			Description: t.ShortDescription(),
			Parameters:  NativeSchema(t.info.InputSchema),
			Strict:      false,
		},
	}
}

// IsEnabled is always true; servers are enabled or disabled as a whole.
func (t *MCPTool) IsEnabled() bool { return true }

func (t *MCPTool) Execute(ctx context.Context, input string) (string, error) {
	return t.invoker.Invoke(ctx, t.info, input)
}

// ConfirmationPrompt describes a pending tool call for a Confirmer.
func ConfirmationPrompt(tool Tool) string {
	if m, ok := tool.(*MCPTool); ok {
		desc := strings.TrimSpace(m.info.Description)
		if desc == "" {
			desc = "No description available"
		}
		return "The model wants to execute '" + m.info.Name + "' from " + m.info.ServerName +
			". This tool can access external resources.\n\nDescription: " + desc
	}
	return "Your model is calling a tool: " + tool.InterfaceName()
}
