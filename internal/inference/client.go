// Package inference talks to an OpenAI-compatible chat completions endpoint.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// Roles accepted by Infer.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// ErrNoChoices is returned when the endpoint answers without any choice.
var ErrNoChoices = errors.New("inference: response has no choices")

// Message is a role-tagged text message.
type Message struct {
	Role string
	Text string
}

// Response is the text completion returned by Infer.
type Response struct {
	Content string
}

// ChatAPI is the subset of *openai.Client used here.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client runs completions against a configured endpoint.
type Client struct {
	api            ChatAPI
	model          string
	auxiliaryModel string
	log            *zap.Logger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.InferenceConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	return NewClientWithAPI(openai.NewClientWithConfig(oc), cfg.Model, cfg.AuxiliaryModel)
}

// NewClientWithAPI wraps an existing chat API.
func NewClientWithAPI(api ChatAPI, model, auxiliaryModel string) *Client {
	if auxiliaryModel == "" {
		auxiliaryModel = model
	}
	return &Client{
		api:            api,
		model:          model,
		auxiliaryModel: auxiliaryModel,
		log:            logger.Named("inference"),
	}
}

// Model is the main conversation model.
func (c *Client) Model() string { return c.model }

// AuxiliaryModel is the model used for titles and icons.
func (c *Client) AuxiliaryModel() string { return c.auxiliaryModel }

// Infer requests a plain text completion.
func (c *Client) Infer(ctx context.Context, model string, maxCompletionTokens int, messages []Message) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:               model,
		Messages:            toOpenAI(messages),
		MaxCompletionTokens: maxCompletionTokens,
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, ErrNoChoices
	}
	c.log.Debug("inference completed",
		zap.String("model", model),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return Response{Content: resp.Choices[0].Message.Content}, nil
}

// Complete runs one tool-aware turn and returns the assistant message.
func (c *Client) Complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, ErrNoChoices
	}
	return resp.Choices[0].Message, nil
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Text})
	}
	return out
}
