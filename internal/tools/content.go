package tools

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/pkg/logger"
)

// Content types carried in a tool result.
const (
	ContentText     = "text"
	ContentImage    = "image"
	ContentAudio    = "audio"
	ContentResource = "resource"
)

// Content is one block of a tool result.
type Content struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Data     string         `json:"data,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Resource *Resource      `json:"resource,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Resource is an embedded resource reference.
type Resource struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Result is the outcome of a tool call as reported by the server.
// IsError is tri-state: nil and false both mean success.
type Result struct {
	Content []Content
	IsError *bool
}

// SerializeContent encodes content as a JSON array. An encoding failure
// yields the error text instead, so callers always receive a string.
func SerializeContent(content []Content) string {
	if content == nil {
		content = []Content{}
	}
	data, err := json.Marshal(content)
	if err != nil {
		logger.Error("failed to encode tool content", zap.Error(err))
		return err.Error()
	}
	return string(data)
}

// DecodeContents parses the output of SerializeContent. Empty input yields
// no content.
func DecodeContents(input string) ([]Content, error) {
	if input == "" {
		return nil, nil
	}
	var content []Content
	if err := json.Unmarshal([]byte(input), &content); err != nil {
		return nil, fmt.Errorf("failed to decode tool content: %w", err)
	}
	return content, nil
}

// Attachment is binary media produced by a tool.
type Attachment struct {
	Name     string
	Data     []byte
	MimeType string
}

// ResultContents is a tool result folded for the model loop: text for the
// model plus media that must be attached separately.
type ResultContents struct {
	Text             string
	ImageAttachments []Attachment
	AudioAttachments []Attachment
}

// ProcessResult folds serialized tool output. Output that is not a content
// array is passed through as text.
func ProcessResult(output string) ResultContents {
	content, err := DecodeContents(output)
	if err != nil {
		return ResultContents{Text: output}
	}

	var (
		texts  []string
		result ResultContents
	)
	for _, item := range content {
		switch item.Type {
		case ContentText:
			texts = append(texts, item.Text)
		case ContentImage:
			name, _ := item.Metadata["name"].(string)
			if name == "" {
				name = "Tool Provided Image " + item.MimeType
			}
			data, ok := ParseData(item.Data)
			if !ok {
				logger.Error("failed to parse image data from string")
				continue
			}
			result.ImageAttachments = append(result.ImageAttachments, Attachment{
				Name:     strings.TrimSpace(name),
				Data:     data,
				MimeType: item.MimeType,
			})
		case ContentAudio:
			name := "Tool Provided Audio"
			if item.MimeType != "" {
				name += " " + item.MimeType
			}
			data, ok := ParseData(item.Data)
			if !ok {
				logger.Error("failed to parse audio data from string")
				continue
			}
			result.AudioAttachments = append(result.AudioAttachments, Attachment{
				Name:     name,
				Data:     data,
				MimeType: item.MimeType,
			})
		case ContentResource:
			if item.Resource == nil {
				continue
			}
			label := item.Resource.Text
			if label == "" {
				label = "Resource"
			}
			texts = append(texts, fmt.Sprintf("[%s %s](%s)", label, item.Resource.MimeType, item.Resource.URI))
		}
	}
	result.Text = strings.Join(texts, "\n")
	return result
}

// ParseData decodes media carried as a data URL, a bare base64 string, or
// as a last resort the raw UTF-8 bytes.
func ParseData(s string) ([]byte, bool) {
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		if _, payload, found := strings.Cut(rest, ";base64,"); found {
			data, err := base64.StdEncoding.DecodeString(payload)
			return data, err == nil
		}
		if _, payload, found := strings.Cut(rest, ","); found {
			if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
				return data, true
			}
			return []byte(payload), true
		}
		return nil, false
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, true
	}
	return []byte(s), true
}
