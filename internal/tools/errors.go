package tools

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Perform when a confirmation hook declines to
// run a tool.
var ErrCancelled = errors.New("tool execution cancelled by user")

// InvocationError reports a transport or protocol failure while dispatching
// a tool call.
type InvocationError struct {
	Tool string
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("tool %s invocation failed: %v", e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ExecutionError reports a tool result that the server flagged as an error.
type ExecutionError struct {
	Tool    string
	Content []Content
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("MCP Tool %s returned error: %s", e.Tool, SerializeContent(e.Content))
}
