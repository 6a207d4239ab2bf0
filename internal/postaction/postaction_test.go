package postaction

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/young1lin/chatbridge/internal/extract"
	"github.com/young1lin/chatbridge/internal/inference"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/internal/storage"
)

type inferCall struct {
	model     string
	maxTokens int
	messages  []inference.Message
}

// fakeInferrer answers by max completion tokens, which differ between
// title and icon requests.
type fakeInferrer struct {
	mu      sync.Mutex
	answers map[int]string
	err     error
	calls   []inferCall
}

func (f *fakeInferrer) Infer(_ context.Context, model string, maxTokens int, messages []inference.Message) (inference.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inferCall{model: model, maxTokens: maxTokens, messages: messages})
	if f.err != nil {
		return inference.Response{}, f.err
	}
	return inference.Response{Content: f.answers[maxTokens]}, nil
}

func TestPrompt(t *testing.T) {
	req := TitleRequest("How do I compare a < b & c?", "Use the < operator.")
	prompt, err := req.Prompt()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "<conversation>\n    <task>Generate a concise"))
	assert.Contains(t, prompt, "<last_user_message>How do I compare a &lt; b &amp; c?</last_user_message>")
	assert.Contains(t, prompt, "<last_assistant_message>Use the &lt; operator.</last_assistant_message>")
	assert.Contains(t, prompt, "<output_format>\n        <title>your_title_here</title>\n    </output_format>")
	assert.True(t, strings.HasSuffix(prompt, "</conversation>"))

	icon, err := IconRequest("hi", "hello").Prompt()
	require.NoError(t, err)
	assert.Contains(t, icon, "<icon>💬</icon>")
}

func TestRequests(t *testing.T) {
	title := TitleRequest("u", "a")
	assert.Equal(t, extract.FieldTitle, title.FieldName)
	assert.Equal(t, 32, title.MaxOutputLength)
	assert.Equal(t, 128, title.MaxCompletionTokens)

	icon := IconRequest("u", "a")
	assert.Equal(t, extract.FieldIcon, icon.FieldName)
	assert.Zero(t, icon.MaxOutputLength)
	assert.Equal(t, 256, icon.MaxCompletionTokens)
}

func TestGenerate(t *testing.T) {
	infer := &fakeInferrer{answers: map[int]string{
		128: "<think>they want a title</think>\n<title>Weekly Sync Notes</title>",
		256: "Sure! 🚀 is a good fit",
	}}
	gen := NewGenerator(infer, "gpt-4o-mini")

	title, ok := gen.Generate(context.Background(), TitleRequest("Summarize the sync", "Here are the notes"))
	require.True(t, ok)
	assert.Equal(t, "Weekly Sync Notes", title)

	icon, ok := gen.Generate(context.Background(), IconRequest("Launch plan", "Ready"))
	require.True(t, ok)
	assert.Equal(t, "🚀", icon)

	require.Len(t, infer.calls, 2)
	call := infer.calls[0]
	assert.Equal(t, "gpt-4o-mini", call.model)
	assert.Equal(t, 128, call.maxTokens)
	require.Len(t, call.messages, 2)
	assert.Equal(t, inference.RoleSystem, call.messages[0].Role)
	assert.Equal(t, titleTask, call.messages[0].Text)
	assert.Equal(t, inference.RoleUser, call.messages[1].Role)
	assert.Contains(t, call.messages[1].Text, "<last_user_message>Summarize the sync</last_user_message>")
}

func TestGenerateTruncatesTitles(t *testing.T) {
	long := strings.Repeat("abcd ", 10)
	gen := NewGenerator(&fakeInferrer{answers: map[int]string{128: long}}, "m")

	title, ok := gen.Generate(context.Background(), TitleRequest("u", "a"))
	require.True(t, ok)
	assert.Equal(t, long[:32], title)
}

func TestGenerateFailures(t *testing.T) {
	failing := NewGenerator(&fakeInferrer{err: errors.New("rate limited")}, "m")
	_, ok := failing.Generate(context.Background(), TitleRequest("u", "a"))
	assert.False(t, ok)

	noEmoji := NewGenerator(&fakeInferrer{answers: map[int]string{256: "no icon today"}}, "m")
	_, ok = noEmoji.Generate(context.Background(), IconRequest("u", "a"))
	assert.False(t, ok)

	empty := NewGenerator(&fakeInferrer{answers: map[int]string{128: "<think>only thinking</think>"}}, "m")
	_, ok = empty.Generate(context.Background(), TitleRequest("u", "a"))
	assert.False(t, ok)
}

func newStore(t *testing.T) *storage.ConversationStore {
	t.Helper()
	store, err := storage.NewConversationStore(filepath.Join(t.TempDir(), "rename.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpdateTitleAndIcon(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Put(&models.Conversation{
		ID:               "conv-1",
		ShouldAutoRename: true,
		Messages: []models.ConversationMessage{
			{Role: inference.RoleUser, Document: "Why does the borrow checker complain?"},
			{Role: inference.RoleAssistant, Document: "Because of overlapping borrows."},
		},
	}))

	infer := &fakeInferrer{answers: map[int]string{
		128: "<title>Rust Borrow Checker</title>",
		256: "🦀",
	}}
	r := NewRenamer(NewGenerator(infer, "m"), store)

	conv, err := r.UpdateTitleAndIcon(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Rust Borrow Checker", conv.Title)
	assert.Equal(t, "🦀", conv.Icon)
	assert.False(t, conv.ShouldAutoRename)

	stored, ok := store.Get("conv-1")
	require.True(t, ok)
	assert.Equal(t, "Rust Borrow Checker", stored.Title)
	assert.Len(t, stored.Messages, 2)
}

func TestUpdateTitleAndIconKeepsFieldsOnFailure(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Put(&models.Conversation{
		ID:               "conv-2",
		Title:            "Old",
		Icon:             "💬",
		ShouldAutoRename: true,
		Messages: []models.ConversationMessage{
			{Role: inference.RoleUser, Document: "hi"},
			{Role: inference.RoleAssistant, Document: "hello"},
		},
	}))

	infer := &fakeInferrer{answers: map[int]string{128: "<title>Greeting</title>", 256: "plain text"}}
	conv, err := NewRenamer(NewGenerator(infer, "m"), store).UpdateTitleAndIcon(context.Background(), "conv-2")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", conv.Title)
	assert.Equal(t, "💬", conv.Icon)
	assert.False(t, conv.ShouldAutoRename)

	down := &fakeInferrer{err: errors.New("down")}
	require.NoError(t, store.Edit("conv-2", func(c *models.Conversation) { c.ShouldAutoRename = true }))
	conv, err = NewRenamer(NewGenerator(down, "m"), store).UpdateTitleAndIcon(context.Background(), "conv-2")
	require.NoError(t, err)
	assert.Equal(t, "Greeting", conv.Title)
	assert.True(t, conv.ShouldAutoRename)
}

func TestUpdateTitleAndIconSkipsIncompleteExchange(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Put(&models.Conversation{
		ID:       "conv-3",
		Messages: []models.ConversationMessage{{Role: inference.RoleUser, Document: "only a question"}},
	}))

	infer := &fakeInferrer{}
	conv, err := NewRenamer(NewGenerator(infer, "m"), store).UpdateTitleAndIcon(context.Background(), "conv-3")
	require.NoError(t, err)
	assert.Equal(t, "conv-3", conv.ID)
	assert.Empty(t, infer.calls)
}

func TestUpdateTitleAndIconUnknownConversation(t *testing.T) {
	r := NewRenamer(NewGenerator(&fakeInferrer{}, "m"), newStore(t))
	_, err := r.UpdateTitleAndIcon(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}
