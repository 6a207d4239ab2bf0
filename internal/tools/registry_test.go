package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name    string
	enabled bool
	output  string
	err     error
	inputs  []string
}

func (s *stubTool) ShortDescription() string { return "stub " + s.name }
func (s *stubTool) InterfaceName() string    { return "Stub " + s.name }
func (s *stubTool) FunctionName() string     { return s.name }
func (s *stubTool) IsEnabled() bool          { return s.enabled }

func (s *stubTool) Definition() openai.Tool {
	return openai.Tool{Type: openai.ToolTypeFunction, Function: &openai.FunctionDefinition{Name: s.name}}
}

func (s *stubTool) Execute(_ context.Context, input string) (string, error) {
	s.inputs = append(s.inputs, input)
	return s.output, s.err
}

type stubRemote struct {
	descriptors []Descriptor
	err         error
}

func (s stubRemote) ListServerTools(context.Context) ([]Descriptor, error) {
	return s.descriptors, s.err
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(nil, nil)
	require.NoError(t, r.Register(&stubTool{name: "web_search", enabled: true}))
	assert.Error(t, r.Register(&stubTool{name: "Web_Search", enabled: true}))
}

func TestRegistryEnabledTools(t *testing.T) {
	remote := stubRemote{descriptors: []Descriptor{
		{Name: "read_file", ServerID: "fs", ServerName: "Files"},
	}}
	r := NewRegistry(remote, NewInvoker(&fakeTransport{}))
	require.NoError(t, r.Register(&stubTool{name: "web_search", enabled: true}))
	require.NoError(t, r.Register(&stubTool{name: "disabled", enabled: false}))

	enabled := r.EnabledTools(context.Background())
	require.Len(t, enabled, 2)
	assert.Equal(t, "web_search", enabled[0].FunctionName())
	assert.Equal(t, "read_file", enabled[1].FunctionName())

	defs := r.Definitions(context.Background())
	require.Len(t, defs, 2)
	assert.Equal(t, "read_file", defs[1].Function.Name)
	assert.Equal(t, defaultMCPDescription, defs[1].Function.Description)
	assert.False(t, defs[1].Function.Strict)
	assert.Equal(t, NativeSchema(nil), defs[1].Function.Parameters)
}

func TestRegistryRemoteFailureKeepsBuiltins(t *testing.T) {
	r := NewRegistry(stubRemote{err: errors.New("server down")}, NewInvoker(&fakeTransport{}))
	require.NoError(t, r.Register(&stubTool{name: "web_search", enabled: true}))

	enabled := r.EnabledTools(context.Background())
	require.Len(t, enabled, 1)
	assert.Equal(t, "web_search", enabled[0].FunctionName())
}

func TestRegistryFind(t *testing.T) {
	remote := stubRemote{descriptors: []Descriptor{{Name: "read_file", ServerID: "fs"}}}
	r := NewRegistry(remote, NewInvoker(&fakeTransport{}))
	require.NoError(t, r.Register(&stubTool{name: "web_search", enabled: true}))

	tool, ok := r.Find(context.Background(), "WEB_SEARCH")
	require.True(t, ok)
	assert.Equal(t, "web_search", tool.FunctionName())

	tool, ok = r.Find(context.Background(), "Read_File")
	require.True(t, ok)
	mcpTool, isMCP := tool.(*MCPTool)
	require.True(t, isMCP)
	assert.Equal(t, "fs", mcpTool.Info().ServerID)

	_, ok = r.Find(context.Background(), "missing")
	assert.False(t, ok)
}

func TestRegistryPerform(t *testing.T) {
	tool := &stubTool{name: "echo", enabled: true, output: SerializeContent([]Content{{Type: ContentText, Text: "done"}})}
	r := NewRegistry(nil, nil)

	out, err := r.Perform(context.Background(), tool, `{"x":1}`)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Text)
	assert.Equal(t, []string{`{"x":1}`}, tool.inputs)
}

func TestRegistryPerformWrapsErrors(t *testing.T) {
	cause := &ExecutionError{Tool: "echo"}
	r := NewRegistry(nil, nil)

	_, err := r.Perform(context.Background(), &stubTool{name: "echo", err: cause}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool execution failed")

	var execErr *ExecutionError
	assert.True(t, errors.As(err, &execErr))
}

func TestRegistryConfirmation(t *testing.T) {
	var prompts []string
	decline := func(_ context.Context, _ Tool, prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	}
	tool := &stubTool{name: "echo", enabled: true}
	r := NewRegistry(nil, nil, WithConfirmer(decline))

	_, err := r.Perform(context.Background(), tool, "")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, tool.inputs)
	assert.Equal(t, []string{"Your model is calling a tool: Stub echo"}, prompts)

	allow := NewRegistry(nil, nil, WithConfirmer(func(context.Context, Tool, string) bool { return true }))
	_, err = allow.Perform(context.Background(), tool, "")
	assert.NoError(t, err)
	assert.Len(t, tool.inputs, 1)
}

func TestConfirmationPrompt(t *testing.T) {
	described := NewMCPTool(Descriptor{Name: "read_file", ServerName: "Files", Description: "  Reads a file  "}, nil)
	assert.Equal(t,
		"The model wants to execute 'read_file' from Files. This tool can access external resources.\n\nDescription: Reads a file",
		ConfirmationPrompt(described))

	bare := NewMCPTool(Descriptor{Name: "ping", ServerName: "Net"}, nil)
	assert.Contains(t, ConfirmationPrompt(bare), "Description: No description available")
}
