package render

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/mb0/glob"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// HumanText renders raw human message text for display by appending markdown
// file links for the attached context items. With no context items the text
// is returned unchanged.
func HumanText(message string, items []transcript.ContextItem) string {
	if len(items) == 0 {
		return message
	}

	var sb strings.Builder
	sb.WriteString(message)
	sb.WriteString("\n\nContext:\n")
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(fileLink(item))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func fileLink(item transcript.ContextItem) string {
	label := path.Base(strings.TrimSuffix(item.URI, "/"))
	if r := itemRange(item); r != nil {
		// ranges are zero-based, display is one-based
		if r.Start.Line == r.End.Line {
			label = fmt.Sprintf("%s:%d", label, r.Start.Line+1)
		} else {
			label = fmt.Sprintf("%s:%d-%d", label, r.Start.Line+1, r.End.Line+1)
		}
	}
	return fmt.Sprintf("[%s](%s)", label, item.URI)
}

func itemRange(item transcript.ContextItem) *transcript.Range {
	if item.Span != nil {
		r := item.Span.Range()
		return &r
	}
	return item.Range
}

// AssistantText reformats raw assistant output so that it renders as valid
// markdown: a leading code fence gets pushed onto its own line and a
// dangling fence is closed.
func AssistantText(message string) string {
	if strings.HasPrefix(message, "```") {
		message = "\n" + message
	}
	if strings.Count(message, "```")%2 == 1 {
		message = message + "\n```"
	}
	return message
}

const maxTitleLength = 48

// Title derives a session title from display text: markdown is reduced to
// plain text (stripping link and heading syntax), whitespace is collapsed,
// and the result is truncated.
func Title(message string) string {
	plain := plainText(message)
	plain = strings.Join(strings.Fields(plain), " ")
	runes := []rune(plain)
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength]) + "..."
	}
	return plain
}

// plainText flattens markdown to the text content of its block nodes.
func plainText(markdown string) string {
	source := []byte(markdown)
	document := goldmark.DefaultParser().Parse(text.NewReader(source))

	var parts []string
	_ = ast.Walk(document, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			parts = append(parts, string(v.Text(source)))
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			parts = append(parts, string(v.Text(source)))
			return ast.WalkSkipChildren, nil
		case *ast.TextBlock:
			parts = append(parts, string(v.Text(source)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	if len(parts) == 0 {
		return markdown
	}
	return strings.Join(parts, " ")
}

// NewIgnorePredicate builds a context classifier from glob patterns. A URI
// matching any pattern is treated as ignored and filtered out before
// attachment. Invalid patterns never match.
func NewIgnorePredicate(patterns []string) transcript.IgnorePredicate {
	return func(uri string) bool {
		for _, pattern := range patterns {
			matching, err := glob.Match(pattern, uri)
			if err != nil {
				continue
			}
			if matching {
				return true
			}
		}
		return false
	}
}

// Options returns the transcript options wiring in this package's default
// collaborators.
func Options(ignorePatterns []string) []transcript.Option {
	return []transcript.Option{
		transcript.WithRenderer(HumanText),
		transcript.WithAssistantReformatter(AssistantText),
		transcript.WithTitleDeriver(Title),
		transcript.WithIgnorePredicate(NewIgnorePredicate(ignorePatterns)),
	}
}
