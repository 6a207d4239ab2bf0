// Package postaction derives a title and an icon for a conversation once a
// turn completes, by re-invoking the model and extracting a single field
// from its answer.
package postaction

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/extract"
	"github.com/young1lin/chatbridge/internal/inference"
	"github.com/young1lin/chatbridge/internal/models"
	"github.com/young1lin/chatbridge/pkg/logger"
)

const (
	titleTask = "Generate a concise, 3-5 word only title summarizing the chat history, enclosed within the <title> tag. " +
		"Write in the user's primary language. Do not include any prefix, label, or markdown."
	iconTask = "Generate a single emoji icon that best represents this conversation. Only respond with one emoji character."
)

// ErrConversationNotFound is returned when renaming an unknown conversation.
var ErrConversationNotFound = errors.New("conversation not found")

// ExtractionRequest describes one field to derive from the last exchange.
type ExtractionRequest struct {
	TaskInstruction      string
	LastUserMessage      string
	LastAssistantMessage string
	FieldName            string
	// Placeholder is shown to the model as the expected field content.
	Placeholder string
	// MaxOutputLength caps the extracted value in characters; zero disables it.
	MaxOutputLength     int
	MaxCompletionTokens int
}

// TitleRequest builds the request used for conversation titles.
func TitleRequest(user, assistant string) ExtractionRequest {
	return ExtractionRequest{
		TaskInstruction:      titleTask,
		LastUserMessage:      user,
		LastAssistantMessage: assistant,
		FieldName:            extract.FieldTitle,
		Placeholder:          "your_title_here",
		MaxOutputLength:      extract.DefaultTitleLength,
		MaxCompletionTokens:  128,
	}
}

// IconRequest builds the request used for conversation icons.
func IconRequest(user, assistant string) ExtractionRequest {
	return ExtractionRequest{
		TaskInstruction:      iconTask,
		LastUserMessage:      user,
		LastAssistantMessage: assistant,
		FieldName:            extract.FieldIcon,
		Placeholder:          "💬",
		MaxCompletionTokens:  256,
	}
}

type conversationPrompt struct {
	XMLName              xml.Name     `xml:"conversation"`
	Task                 string       `xml:"task"`
	LastUserMessage      string       `xml:"last_user_message"`
	LastAssistantMessage string       `xml:"last_assistant_message"`
	OutputFormat         outputFormat `xml:"output_format"`
}

type outputFormat struct {
	Field outputField
}

type outputField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Prompt renders the request as the XML document sent to the model.
func (r ExtractionRequest) Prompt() (string, error) {
	doc := conversationPrompt{
		Task:                 r.TaskInstruction,
		LastUserMessage:      r.LastUserMessage,
		LastAssistantMessage: r.LastAssistantMessage,
		OutputFormat: outputFormat{
			Field: outputField{XMLName: xml.Name{Local: r.FieldName}, Value: r.Placeholder},
		},
	}
	out, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	return string(out), nil
}

// Inferrer is the model inference collaborator.
type Inferrer interface {
	Infer(ctx context.Context, model string, maxCompletionTokens int, messages []inference.Message) (inference.Response, error)
}

// Generator runs extraction requests against a model.
type Generator struct {
	infer Inferrer
	model string
	log   *zap.Logger
}

// NewGenerator creates a generator that uses model for every request.
func NewGenerator(infer Inferrer, model string) *Generator {
	return &Generator{infer: infer, model: model, log: logger.Named("postaction")}
}

// Generate asks the model for req's field. Any failure yields false: a
// missing title or icon never blocks the conversation.
func (g *Generator) Generate(ctx context.Context, req ExtractionRequest) (string, bool) {
	prompt, err := req.Prompt()
	if err != nil {
		g.log.Error("failed to build prompt", zap.String("field", req.FieldName), zap.Error(err))
		return "", false
	}
	resp, err := g.infer.Infer(ctx, g.model, req.MaxCompletionTokens, []inference.Message{
		{Role: inference.RoleSystem, Text: req.TaskInstruction},
		{Role: inference.RoleUser, Text: prompt},
	})
	if err != nil {
		g.log.Error("failed to generate field", zap.String("field", req.FieldName), zap.Error(err))
		return "", false
	}
	v, ok := extract.Run(resp.Content, req.FieldName, req.MaxOutputLength)
	g.log.Debug("generated field",
		zap.String("field", req.FieldName),
		zap.String("value", v),
		zap.Bool("accepted", ok),
	)
	return v, ok
}

// Store is the conversation storage used by Renamer.
type Store interface {
	Get(id string) (*models.Conversation, bool)
	Edit(id string, fn func(*models.Conversation)) error
}

// Renamer updates stored conversations with generated titles and icons.
type Renamer struct {
	gen   *Generator
	store Store
	log   *zap.Logger
}

// NewRenamer creates a renamer.
func NewRenamer(gen *Generator, store Store) *Renamer {
	return &Renamer{gen: gen, store: store, log: logger.Named("rename")}
}

// UpdateTitleAndIcon derives a title and an icon from the last user and
// assistant messages and stores whichever were produced. Conversations
// without both messages are left untouched.
func (r *Renamer) UpdateTitleAndIcon(ctx context.Context, id string) (*models.Conversation, error) {
	conv, ok := r.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	user, hasUser := conv.LastMessage(inference.RoleUser)
	assistant, hasAssistant := conv.LastMessage(inference.RoleAssistant)
	if !hasUser || !hasAssistant {
		r.log.Debug("skipping rename without a complete exchange", zap.String("conversation", id))
		return conv, nil
	}

	if title, ok := r.gen.Generate(ctx, TitleRequest(user, assistant)); ok {
		if err := r.store.Edit(id, func(c *models.Conversation) {
			c.Title = title
			c.ShouldAutoRename = false
		}); err != nil {
			return nil, fmt.Errorf("store title: %w", err)
		}
	}
	if icon, ok := r.gen.Generate(ctx, IconRequest(user, assistant)); ok {
		if err := r.store.Edit(id, func(c *models.Conversation) {
			c.Icon = icon
			c.ShouldAutoRename = false
		}); err != nil {
			return nil, fmt.Errorf("store icon: %w", err)
		}
	}

	updated, ok := r.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return updated, nil
}
