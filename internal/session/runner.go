// Package session drives one conversation turn: the model is called with
// the available tools until it stops requesting tool calls.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/tools"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// DefaultMaxIterations bounds tool-calling rounds when none is configured.
const DefaultMaxIterations = 5

// Call statuses recorded for each tool call.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusUnknown   = "unknown_tool"
)

// Completer runs one model turn. *inference.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
}

// ToolSet resolves and performs tool calls. *tools.Registry satisfies it.
type ToolSet interface {
	Definitions(ctx context.Context) []openai.Tool
	Find(ctx context.Context, name string) (tools.Tool, bool)
	Perform(ctx context.Context, tool tools.Tool, params string) (tools.ResultContents, error)
}

// ToolCall records one tool call made during a turn.
type ToolCall struct {
	ID     string
	Name   string
	Status string
}

// Result is the outcome of a turn.
type Result struct {
	// Messages holds the input messages followed by every message the turn
	// produced, ending with the final assistant message.
	Messages []openai.ChatCompletionMessage
	Calls    []ToolCall
}

// Reply returns the content of the final assistant message.
func (r *Result) Reply() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// Runner loops the model over the tool set.
type Runner struct {
	model         Completer
	tools         ToolSet
	maxIterations int
}

// NewRunner creates a runner. maxIterations <= 0 selects DefaultMaxIterations.
func NewRunner(model Completer, toolSet ToolSet, maxIterations int) *Runner {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Runner{model: model, tools: toolSet, maxIterations: maxIterations}
}

// Run executes a turn. Tool failures are reported to the model as tool
// messages; only model failures end the turn with an error. When the
// iteration limit is reached a final request is made without tools.
func (r *Runner) Run(ctx context.Context, messages []openai.ChatCompletionMessage) (*Result, error) {
	log := logger.FromContext(ctx).Named("session")
	result := &Result{Messages: append([]openai.ChatCompletionMessage(nil), messages...)}

	for i := 0; i < r.maxIterations; i++ {
		log.Debug("tool iteration",
			zap.Int("iteration", i+1),
			zap.Int("message_count", len(result.Messages)),
		)

		reply, err := r.model.Complete(ctx, result.Messages, r.tools.Definitions(ctx))
		if err != nil {
			return result, fmt.Errorf("model request failed: %w", err)
		}
		for j := range reply.ToolCalls {
			if reply.ToolCalls[j].ID == "" {
				reply.ToolCalls[j].ID = "call_" + uuid.NewString()
			}
		}
		result.Messages = append(result.Messages, reply)

		if len(reply.ToolCalls) == 0 {
			log.Debug("no more tool calls, returning response")
			return result, nil
		}

		log.Info("detected tool calls", zap.Int("count", len(reply.ToolCalls)))
		for _, tc := range reply.ToolCalls {
			content, status := r.perform(ctx, log, tc)
			result.Calls = append(result.Calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Status: status})
			result.Messages = append(result.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
				Content:    content,
			})
		}
	}

	reply, err := r.model.Complete(ctx, result.Messages, nil)
	if err != nil {
		return result, fmt.Errorf("model request failed: %w", err)
	}
	result.Messages = append(result.Messages, reply)
	return result, nil
}

func (r *Runner) perform(ctx context.Context, log *zap.Logger, tc openai.ToolCall) (string, string) {
	tool, ok := r.tools.Find(ctx, tc.Function.Name)
	if !ok {
		log.Warn("model called an unknown tool", zap.String("function", tc.Function.Name))
		return fmt.Sprintf("Tool %s is not available.", tc.Function.Name), StatusUnknown
	}

	log.Info("executing tool",
		zap.String("function", tc.Function.Name),
		zap.String("call_id", tc.ID),
	)
	out, err := r.tools.Perform(ctx, tool, tc.Function.Arguments)
	switch {
	case errors.Is(err, tools.ErrCancelled):
		return "The user cancelled this tool call.", StatusCancelled
	case err != nil:
		log.Error("tool call failed", zap.String("function", tc.Function.Name), zap.Error(err))
		return fmt.Sprintf("Tool call failed: %s", err.Error()), StatusFailed
	}
	return out.Text, StatusCompleted
}
