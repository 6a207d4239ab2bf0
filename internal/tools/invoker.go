package tools

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/bridge"
	"github.com/young1lin/chatbridge/internal/value"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// Descriptor identifies a remote tool.
type Descriptor struct {
	Name        string
	Description string
	InputSchema *value.Value
	ServerID    string
	ServerName  string
}

// Transport dispatches a tool call to the server identified by serverID.
type Transport interface {
	CallTool(ctx context.Context, serverID, name string, arguments map[string]value.Value) (*Result, error)
}

// Invoker runs remote tools and normalizes their output into text for the
// model loop.
type Invoker struct {
	transport Transport
	log       *zap.Logger
}

// NewInvoker creates an invoker over transport.
func NewInvoker(transport Transport) *Invoker {
	return &Invoker{
		transport: transport,
		log:       logger.Named("invoker"),
	}
}

// Invoke calls tool with rawArguments, a JSON object. Arguments that cannot
// be converted are dropped rather than failing the call.
//
// Dispatch failures return *InvocationError; results flagged as errors
// return *ExecutionError. Once a result is received successfully Invoke
// always returns a string.
func (i *Invoker) Invoke(ctx context.Context, tool Descriptor, rawArguments string) (string, error) {
	arguments := i.buildArguments(tool.Name, rawArguments)

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := i.transport.CallTool(ctx, tool.ServerID, tool.Name, arguments)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return "", &InvocationError{Tool: tool.Name, Err: ctx.Err()}
	case out = <-done:
	}

	if out.err != nil {
		i.log.Error("tool dispatch failed",
			zap.String("tool", tool.Name),
			zap.String("server", tool.ServerID),
			zap.Error(out.err),
		)
		return "", &InvocationError{Tool: tool.Name, Err: out.err}
	}
	if out.result == nil {
		return SerializeContent(nil), nil
	}

	if out.result.IsError != nil && *out.result.IsError {
		i.log.Error("tool returned error",
			zap.String("tool", tool.Name),
			zap.Any("content", out.result.Content),
		)
		return "", &ExecutionError{Tool: tool.Name, Content: out.result.Content}
	}

	return SerializeContent(out.result.Content), nil
}

func (i *Invoker) buildArguments(toolName, raw string) map[string]value.Value {
	if raw == "" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		i.log.Warn("tool arguments are not a JSON object, calling without arguments",
			zap.String("tool", toolName),
			zap.Error(err),
		)
		return nil
	}
	arguments := bridge.ToStructuredMap(fields)
	if dropped := len(fields) - len(arguments); dropped > 0 {
		i.log.Debug("dropped unconvertible tool arguments",
			zap.String("tool", toolName),
			zap.Int("dropped", dropped),
		)
	}
	return arguments
}
