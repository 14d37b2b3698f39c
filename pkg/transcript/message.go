package transcript

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

type Speaker string

const (
	SpeakerHuman     Speaker = "human"
	SpeakerAssistant Speaker = "assistant"
)

// Position is a zero-based line/character location inside a source artifact.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p comes before other in document order.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// Range is the dehydrated form of a selection: start never comes after end.
// This is the only shape that appears in serialized transcripts.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Span is a live editor selection. Anchor is where the selection started and
// Active is where the cursor currently sits, so the two may be reversed.
// Spans do not survive serialization; they are dehydrated to a Range first.
type Span struct {
	Anchor Position `json:"anchor"`
	Active Position `json:"active"`
}

// Reversed reports whether the selection was made bottom-up.
func (s Span) Reversed() bool {
	return s.Active.Before(s.Anchor)
}

// Range returns the normalized start/end pair for the span.
func (s Span) Range() Range {
	if s.Reversed() {
		return Range{Start: s.Active, End: s.Anchor}
	}
	return Range{Start: s.Anchor, End: s.Active}
}

// ContextItem is a reference to a source artifact attached to a human message
// to ground generation. Span is the live in-memory selection; Range is its
// dehydrated form and the only one carried on the wire.
type ContextItem struct {
	URI   string `json:"uri"`
	Span  *Span  `json:"-"`
	Range *Range `json:"range,omitempty"`
}

// Dehydrated returns a copy of the item with any live span converted to a
// plain start/end range.
func (c ContextItem) Dehydrated() ContextItem {
	if c.Span != nil {
		r := c.Span.Range()
		c.Range = &r
		c.Span = nil
	}
	return c
}

// MessageError is the normalized payload recorded on an assistant message
// when generation fails. It is data, not control flow: once recorded, the
// transcript treats it like any other message field.
type MessageError struct {
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *MessageError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Message
}

// NormalizeError converts an arbitrary generation failure into a
// MessageError. Already-normalized payloads pass through unchanged.
func NormalizeError(err error) *MessageError {
	if err == nil {
		return nil
	}
	var payload *MessageError
	if errors.As(err, &payload) {
		return payload
	}
	ret := &MessageError{
		Kind:    "error",
		Message: err.Error(),
	}
	switch {
	case errors.Is(err, context.Canceled):
		ret.Kind = "aborted"
	case errors.Is(err, context.DeadlineExceeded):
		ret.Kind = "timeout"
		ret.Retryable = true
	}
	return ret
}

// Message is a single turn in a transcript.
//
// Text is the raw content used for generation; DisplayText is its rendering
// for presentation and is derived on demand when empty. ContextFiles is only
// meaningful on human messages, Error only on assistant messages.
type Message struct {
	Speaker      Speaker       `json:"speaker"`
	Text         string        `json:"text,omitempty"`
	DisplayText  string        `json:"displayText,omitempty"`
	ContextFiles []ContextItem `json:"contextFiles,omitempty"`
	Error        *MessageError `json:"error,omitempty"`
}
