package extract

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
)

func TestTiers(t *testing.T) {
	tests := []struct {
		name    string
		tier    Tier
		text    string
		want    string
		matched bool
	}{
		{"structured child", StructuredDecode, "<conversation><title> Weekly Sync </title></conversation>", "Weekly Sync", true},
		{"structured root only", StructuredDecode, "<title>Weekly Sync Notes</title>", "", false},
		{"structured empty child", StructuredDecode, "<output><title></title></output>", "", false},
		{"structured invalid", StructuredDecode, "not xml", "", false},
		{"pattern", PatternFallback, "<title>Weekly Sync Notes</title>", "Weekly Sync Notes", true},
		{"pattern multiline", PatternFallback, "x <TITLE>\nRoad Map\n</TITLE> y", "Road Map", true},
		{"pattern empty", PatternFallback, "<title>  </title>", "", false},
		{"raw", RawFallback, "  just text ", "just text", true},
		{"raw empty", RawFallback, "   ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.tier(tt.text, FieldTitle)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"tagged", "<title>Weekly Sync Notes</title>", "Weekly Sync Notes", true},
		{"nested in document", "<conversation><title>Trip Planning</title></conversation>", "Trip Planning", true},
		{"after reasoning", "<think>the user wants a title</think>\n<title>Tax Questions</title>", "Tax Questions", true},
		{"empty tag falls through to raw", "Sure! <title></title> here it is: Project Kickoff", "Sure! <title></title> here it is", true},
		{"raw text", "Budget Review", "Budget Review", true},
		{"only reasoning", "<think>nothing else", "", false},
		{"empty", "", "", false},
		{"capped by characters", "<title>会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要</title>", "会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要会议纪要", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Title(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIcon(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"single emoji", "🔖", "🔖", true},
		{"emoji with label", "🔖 (bookmark)", "🔖", true},
		{"no emoji", "ok", "", false},
		{"tagged", "<icon>📚</icon>", "📚", true},
		{"zwj sequence", "👩‍💻", "👩‍💻", true},
		{"skin tone", "👍🏽 nice", "👍🏽", true},
		{"keycap", "1️⃣", "1️⃣", true},
		{"single letter", "a", "a", true},
		{"single symbol", "©", "©", true},
		{"single check mark", "✓", "✓", true},
		{"symbol with label", "© (copyright)", "", false},
		{"text before emoji", "Here you go: 🎉", "🎉", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Icon(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunWithoutLimit(t *testing.T) {
	got, ok := Run("<summary>a fairly long summary that is not capped at all</summary>", "summary", 0)
	assert.True(t, ok)
	assert.Equal(t, "a fairly long summary that is not capped at all", got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "👩‍💻a", Truncate("👩‍💻abc", 2))
}

func TestExtractionProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("tagged titles win over surrounding text", prop.ForAll(
		func(prefix, title string) bool {
			got, ok := Extract(prefix+" <title>"+title+"</title> trailing", FieldTitle)
			return ok && got == title
		},
		gen.AlphaString(),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("titles never exceed the cap", prop.ForAll(
		func(s string) bool {
			got, _ := Title(s)
			return uniseg.GraphemeClusterCount(got) <= DefaultTitleLength
		},
		gen.AnyString(),
	))

	properties.Property("accepted icons are one character, emoji unless given alone", prop.ForAll(
		func(s string) bool {
			got, ok := Icon(s)
			if !ok {
				return got == ""
			}
			if uniseg.GraphemeClusterCount(got) != 1 {
				return false
			}
			extracted, _ := Extract(s, FieldIcon)
			return IsEmojiGlyph(got) || got == extracted
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
