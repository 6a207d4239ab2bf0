package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/chatbridge/internal/config"
)

type fakeChatAPI struct {
	requests []openai.ChatCompletionRequest
	resp     openai.ChatCompletionResponse
	err      error
}

func (f *fakeChatAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{Role: RoleAssistant, Content: content},
	}}}
}

func TestInfer(t *testing.T) {
	api := &fakeChatAPI{resp: reply("<title>Hello</title>")}
	c := NewClientWithAPI(api, "gpt-4o", "gpt-4o-mini")

	resp, err := c.Infer(context.Background(), c.AuxiliaryModel(), 128, []Message{
		{Role: RoleSystem, Text: "task"},
		{Role: RoleUser, Text: "prompt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<title>Hello</title>", resp.Content)

	require.Len(t, api.requests, 1)
	req := api.requests[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 128, req.MaxCompletionTokens)
	assert.Equal(t, []openai.ChatCompletionMessage{
		{Role: RoleSystem, Content: "task"},
		{Role: RoleUser, Content: "prompt"},
	}, req.Messages)
}

func TestInferErrors(t *testing.T) {
	_, err := NewClientWithAPI(&fakeChatAPI{}, "m", "").Infer(context.Background(), "m", 1, nil)
	assert.ErrorIs(t, err, ErrNoChoices)

	cause := errors.New("401 unauthorized")
	_, err = NewClientWithAPI(&fakeChatAPI{err: cause}, "m", "").Infer(context.Background(), "m", 1, nil)
	assert.ErrorIs(t, err, cause)
}

func TestComplete(t *testing.T) {
	api := &fakeChatAPI{resp: reply("done")}
	c := NewClientWithAPI(api, "gpt-4o", "")
	assert.Equal(t, "gpt-4o", c.AuxiliaryModel())

	tools := []openai.Tool{{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{Name: "web_search"}}}
	msg, err := c.Complete(context.Background(), []openai.ChatCompletionMessage{{Role: RoleUser, Content: "hi"}}, tools)
	require.NoError(t, err)
	assert.Equal(t, "done", msg.Content)
	assert.Equal(t, "gpt-4o", api.requests[0].Model)
	assert.Equal(t, tools, api.requests[0].Tools)
}

func TestNewClient(t *testing.T) {
	c := NewClient(config.InferenceConfig{
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3",
		Timeout: 10,
	})
	assert.Equal(t, "llama3", c.Model())
	assert.Equal(t, "llama3", c.AuxiliaryModel())
}
