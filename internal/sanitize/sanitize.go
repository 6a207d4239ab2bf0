// Package sanitize strips reasoning scaffolding such as <think> blocks from
// raw model output.
package sanitize

import (
	"regexp"
	"strings"
)

// Complete spans first, then unterminated openers that run to end of text.
var rawPatterns = []string{
	`(?is)<think>.*?</think>`,
	`(?is)<thinking>.*?</thinking>`,
	`(?is)<reasoning>.*?</reasoning>`,
	`(?is)<think>.*`,
	`(?is)<thinking>.*`,
	`(?is)<reasoning>.*`,
}

var reasoningPatterns = compile(rawPatterns)

func compile(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = append(out, re)
	}
	return out
}

// StripReasoning removes reasoning spans from text and trims the result.
// Each pattern runs against the output of the previous one.
func StripReasoning(text string) string {
	if text == "" {
		return text
	}
	sanitized := text
	for _, re := range reasoningPatterns {
		sanitized = re.ReplaceAllString(sanitized, "")
	}
	return strings.TrimSpace(sanitized)
}
