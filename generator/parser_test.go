package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scriptResponse = "[Variation 1]\nHello, buy now while it lasts!\n[Change Point] Added urgency.\n---\n" +
	"[Variation 2]\nHey you. Yes, you. Buy now!\n[Change Point] Direct address.\n"

func TestParseScriptVariations(t *testing.T) {
	got := ParseScriptVariations(scriptResponse)
	require.Len(t, got, 2)
	assert.Equal(t, "Hello, buy now while it lasts!", got[0].Body)
	assert.Equal(t, "Added urgency.", got[0].Rationale)
	assert.Equal(t, "Hey you. Yes, you. Buy now!", got[1].Body)
	assert.Equal(t, "Direct address.", got[1].Rationale)
}

func TestParseScriptVariations_BareBody(t *testing.T) {
	got := ParseScriptVariations("This block has no header but is long enough.\n---\nshort")
	require.Len(t, got, 1)
	assert.Equal(t, "This block has no header but is long enough.", got[0].Body)
	assert.Empty(t, got[0].Rationale)
}

func TestParseScriptVariations_Cap(t *testing.T) {
	text := scriptResponse + "---\n[Variation 3]\nA third one that should be dropped.\n[Change Point] extra\n"
	assert.Len(t, ParseScriptVariations(text), MaxVariationsPerBatch)
}

func TestParseScriptVariations_RationaleOnNextLine(t *testing.T) {
	got := ParseScriptVariations("[Variation 1]\nBody text here\n[Change Point]\nNext line reason\n")
	require.Len(t, got, 1)
	assert.Equal(t, "Next line reason", got[0].Rationale)
}

func TestParseScriptVariations_Prefixes(t *testing.T) {
	want := ParseScriptVariations(scriptResponse)
	for i := 0; i <= len(scriptResponse); i++ {
		prefix := scriptResponse[:i]
		assert.NotPanics(t, func() {
			got := ParseScriptVariations(prefix)
			assert.LessOrEqual(t, len(got), MaxVariationsPerBatch)
		})
	}
	assert.Equal(t, want, ParseScriptVariations(scriptResponse[:len(scriptResponse)]))
}

const copyResponse = "[Variation 1]\nMain Copy: Wake up to better.\nSub Copy: Fresh coffee daily.\nChange Point: Shorter hook.\n" +
	"[Variation 2]\n**Main Copy:** Your morning, upgraded.\nSub Copy: Brewed fresh.\nChange Point: Benefit first.\n"

func TestParseCopyVariations(t *testing.T) {
	got := ParseCopyVariations(copyResponse)
	require.Len(t, got, 2)
	assert.Equal(t, Variation{MainText: "Wake up to better.", SecondaryText: "Fresh coffee daily.", Rationale: "Shorter hook."}, got[0])
	assert.Equal(t, "Your morning, upgraded.", got[1].MainText)
}

func TestParseCopyVariations_Japanese(t *testing.T) {
	text := "---\nメインコピー：朝を変える一杯\nサブコピー：毎朝、挽きたて。\n変更点：短くした\n---\n変更点：本文なし\n"
	got := ParseCopyVariations(text)
	require.Len(t, got, 1)
	assert.Equal(t, "朝を変える一杯", got[0].MainText)
	assert.Equal(t, "短くした", got[0].Rationale)
}

func TestParseCopyVariations_Prefixes(t *testing.T) {
	for i := 0; i <= len(copyResponse); i++ {
		prefix := copyResponse[:i]
		assert.NotPanics(t, func() { ParseCopyVariations(prefix) })
	}
	assert.Equal(t, ParseCopyVariations(copyResponse), Parse(GrammarCopy, copyResponse))
}

func TestParseCopyIdeas(t *testing.T) {
	text := "Here you go:\n1. Morning Boost: Coffee that starts your day.\n2. **Calm Cup**: Slow down.\nnot a line\n10. Late Night: Decaf too."
	got := ParseCopyIdeas(text)
	require.Len(t, got, 3)
	assert.Equal(t, CopyIdea{Title: "Morning Boost", Description: "Coffee that starts your day."}, got[0])
	assert.Equal(t, "Calm Cup", got[1].Title)
	assert.Equal(t, "Late Night", got[2].Title)
}
