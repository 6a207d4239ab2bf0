package models

import "time"

// ==================== Conversation Models ====================

// Conversation is the persisted metadata of a chat plus the messages the
// title and icon are derived from.
type Conversation struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	Icon             string                `json:"icon,omitempty"`
	ShouldAutoRename bool                  `json:"should_auto_rename"`
	Messages         []ConversationMessage `json:"messages,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// ConversationMessage is a role-tagged message in a conversation
type ConversationMessage struct {
	Role     string `json:"role"` // "user", "assistant", "system", "tool"
	Document string `json:"document"`
}

// LastMessage returns the document of the last message with role.
func (c *Conversation) LastMessage(role string) (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return c.Messages[i].Document, true
		}
	}
	return "", false
}

// ==================== Tool API Models ====================

// ToolCallRequest represents a POST /v1/tools/call body
type ToolCallRequest struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolCallResponse carries the folded tool output
type ToolCallResponse struct {
	Name   string `json:"name"`
	Output string `json:"output"`
	Images int    `json:"images,omitempty"`
	Audios int    `json:"audios,omitempty"`
}

// ToolListResponse lists function-calling definitions
type ToolListResponse struct {
	Tools []ToolInfo `json:"tools"`
}

// ToolInfo summarizes one tool
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
	Strict      bool   `json:"strict"`
}

// RenameResponse reports the outcome of a rename post-action
type RenameResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon,omitempty"`
}

// ==================== Conversation API Models ====================

// MessageRequest represents a POST /v1/conversations/{id}/messages body
type MessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse reports one completed turn
type MessageResponse struct {
	ID    string          `json:"id"`
	Reply string          `json:"reply"`
	Calls []ToolCallTrace `json:"tool_calls,omitempty"`
	Title string          `json:"title,omitempty"`
	Icon  string          `json:"icon,omitempty"`
}

// ToolCallTrace summarizes a tool call made during a turn
type ToolCallTrace struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// SearchRequest represents a POST /v1/search body
type SearchRequest struct {
	Query string `json:"query"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
