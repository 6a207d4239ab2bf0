// Package extract pulls a single named field out of loosely structured model
// output. Extraction runs in tiers: a structured XML decode, a tag pattern
// match, and finally the whole sanitized text. The first tier that yields a
// non-empty value wins.
package extract

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/rivo/uniseg"

	"github.com/young1lin/chatbridge/internal/sanitize"
)

// Field names understood by Run.
const (
	FieldTitle = "title"
	FieldIcon  = "icon"
)

// DefaultTitleLength caps generated titles, counted in characters.
const DefaultTitleLength = 32

// Tier is one extraction strategy.
type Tier func(text, field string) (string, bool)

// Tiers lists the strategies in the order they are attempted.
var Tiers = []Tier{StructuredDecode, PatternFallback, RawFallback}

// xmlDocument captures the direct children of whatever root element the
// model emitted.
type xmlDocument struct {
	XMLName  xml.Name
	Children []xmlChild `xml:",any"`
}

type xmlChild struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// StructuredDecode decodes text as an XML document and returns the trimmed
// content of the root's child element named field.
func StructuredDecode(text, field string) (string, bool) {
	var doc xmlDocument
	if err := xml.Unmarshal([]byte(text), &doc); err != nil {
		return "", false
	}
	for _, child := range doc.Children {
		if child.XMLName.Local != field {
			continue
		}
		v := strings.TrimSpace(child.Value)
		return v, v != ""
	}
	return "", false
}

// PatternFallback finds the first <field>...</field> span anywhere in text,
// case-insensitively and across line breaks.
func PatternFallback(text, field string) (string, bool) {
	name := regexp.QuoteMeta(field)
	re, err := regexp.Compile(`(?is)<` + name + `>(.*?)</` + name + `>`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// RawFallback accepts the whole trimmed text.
func RawFallback(text, _ string) (string, bool) {
	v := strings.TrimSpace(text)
	return v, v != ""
}

// Extract sanitizes raw and runs the tiers. It reports false when every
// tier comes up empty.
func Extract(raw, field string) (string, bool) {
	text := sanitize.StripReasoning(raw)
	for _, tier := range Tiers {
		if v, ok := tier(text, field); ok {
			return v, true
		}
	}
	return "", false
}

// Run extracts field from raw and applies the field's post-processing.
// Icons must be a single character; every other field is capped to
// maxLength characters when maxLength is positive.
func Run(raw, field string, maxLength int) (string, bool) {
	v, ok := Extract(raw, field)
	if !ok {
		return "", false
	}
	if field == FieldIcon {
		return ValidateIcon(v)
	}
	if maxLength > 0 {
		v = Truncate(v, maxLength)
	}
	return v, true
}

// Title extracts a conversation title capped at DefaultTitleLength.
func Title(raw string) (string, bool) {
	return Run(raw, FieldTitle, DefaultTitleLength)
}

// Icon extracts a single character, preferring the first emoji glyph.
func Icon(raw string) (string, bool) {
	return Run(raw, FieldIcon, 0)
}

// ValidateIcon accepts any single character unchanged. Longer input is
// reduced to its first emoji glyph; input without one is rejected.
func ValidateIcon(icon string) (string, bool) {
	if icon == "" {
		return "", false
	}
	if uniseg.GraphemeClusterCount(icon) == 1 {
		return icon, true
	}
	return FirstEmoji(icon)
}

// Truncate returns the first n grapheme clusters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	g := uniseg.NewGraphemes(s)
	var sb strings.Builder
	for count := 0; count < n && g.Next(); count++ {
		sb.WriteString(g.Str())
	}
	return sb.String()
}
