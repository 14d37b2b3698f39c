package render

import (
	"strings"
	"testing"

	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleStripsMarkdownLinks(t *testing.T) {
	assert.Equal(t, "Check main.go please", Title("Check [main.go](file:///repo/main.go) please"))
}

func TestTitleCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "one two three", Title("one\n\ntwo   three"))
}

func TestTitleTruncates(t *testing.T) {
	long := strings.Repeat("a", 100)
	title := Title(long)
	assert.Equal(t, strings.Repeat("a", 48)+"...", title)
}

func TestTitleShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "hello world", Title("hello world"))
}

func TestAssistantTextClosesDanglingFence(t *testing.T) {
	out := AssistantText("here you go:\n```go\nfunc main() {}")
	assert.True(t, strings.HasSuffix(out, "\n```"))
	assert.Equal(t, 0, strings.Count(out, "```")%2)
}

func TestAssistantTextLeadingFenceGetsNewline(t *testing.T) {
	out := AssistantText("```go\nfunc main() {}\n```")
	assert.True(t, strings.HasPrefix(out, "\n```"))
}

func TestAssistantTextPlainUnchanged(t *testing.T) {
	assert.Equal(t, "just text", AssistantText("just text"))
}

func TestHumanTextWithoutContextUnchanged(t *testing.T) {
	assert.Equal(t, "hi", HumanText("hi", nil))
}

func TestHumanTextAppendsFileLinks(t *testing.T) {
	items := []transcript.ContextItem{
		{URI: "file:///repo/main.go"},
		{
			URI:  "file:///repo/util.go",
			Span: &transcript.Span{Anchor: transcript.Position{Line: 4}, Active: transcript.Position{Line: 1}},
		},
	}
	out := HumanText("look at these", items)

	assert.Contains(t, out, "[main.go](file:///repo/main.go)")
	// one-based display lines, reversed span normalized
	assert.Contains(t, out, "[util.go:2-5](file:///repo/util.go)")
}

func TestHumanTextSingleLineRange(t *testing.T) {
	items := []transcript.ContextItem{
		{
			URI:   "file:///repo/main.go",
			Range: &transcript.Range{Start: transcript.Position{Line: 9}, End: transcript.Position{Line: 9, Character: 12}},
		},
	}
	out := HumanText("look", items)
	assert.Contains(t, out, "[main.go:10](file:///repo/main.go)")
}

func TestNewIgnorePredicate(t *testing.T) {
	isIgnored := NewIgnorePredicate([]string{"*.env", "*/secrets/*"})

	assert.True(t, isIgnored("production.env"))
	assert.True(t, isIgnored("file:///repo/secrets/key.pem"))
	assert.False(t, isIgnored("file:///repo/main.go"))
}

func TestOptionsWireCollaborators(t *testing.T) {
	tr := transcript.New(Options([]string{"*.env"})...)
	require.NoError(t, tr.AddHumanMessage(transcript.Message{
		Text: "first question",
		ContextFiles: []transcript.ContextItem{
			{URI: "file:///repo/prod.env"},
			{URI: "file:///repo/main.go"},
		},
	}))
	require.NoError(t, tr.AddBotMessage(transcript.Message{Text: "first answer"}))
	require.NoError(t, tr.AddHumanMessage(transcript.Message{
		Text: "check [this](http://example.com) out",
	}))

	msgs := tr.Messages()
	require.Len(t, msgs[0].ContextFiles, 1)
	assert.Equal(t, "file:///repo/main.go", msgs[0].ContextFiles[0].URI)
	assert.Equal(t, "check this out", tr.ChatTitle())
}
