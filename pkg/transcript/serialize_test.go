package transcript

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeOddLengthTranscript(t *testing.T) {
	tr := New(WithSessionID("session-1"), WithModelID("test-model"))
	require.NoError(t, tr.AddHumanMessage(Message{Text: "hi"}))

	s, err := tr.Serialize()
	require.NoError(t, err)

	assert.Equal(t, "session-1", s.ID)
	assert.Equal(t, "test-model", s.ChatModel)
	assert.Equal(t, "session-1", s.LastInteractionTimestamp)
	require.Len(t, s.Interactions, 1)
	assert.Equal(t, "hi", s.Interactions[0].HumanMessage.Text)
	assert.Nil(t, s.Interactions[0].AssistantMessage)
}

func TestSerializeEndToEnd(t *testing.T) {
	tr := New(WithSessionID("session-1"))
	require.NoError(t, tr.AddHumanMessage(Message{Text: "hi"}))
	require.NoError(t, tr.AddBotMessage(Message{Text: "hello"}))
	require.NoError(t, tr.AddHumanMessage(Message{Text: "bye"}))

	s, err := tr.Serialize()
	require.NoError(t, err)

	require.Len(t, s.Interactions, 2)
	assert.Equal(t, "hi", s.Interactions[0].HumanMessage.Text)
	require.NotNil(t, s.Interactions[0].AssistantMessage)
	assert.Equal(t, "hello", s.Interactions[0].AssistantMessage.Text)
	assert.Equal(t, "bye", s.Interactions[1].HumanMessage.Text)
	assert.Nil(t, s.Interactions[1].AssistantMessage)

	// display text is always materialized on the persisted record
	assert.Equal(t, "hi", s.Interactions[0].HumanMessage.DisplayText)
	assert.Equal(t, "hello", s.Interactions[0].AssistantMessage.DisplayText)
}

func TestSerializeEmptyTranscript(t *testing.T) {
	tr := New()
	s, err := tr.Serialize()
	require.NoError(t, err)
	require.NotNil(t, s.Interactions)
	require.Len(t, s.Interactions, 0)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"interactions":[]`)
}

func TestSerializeRejectsParityViolation(t *testing.T) {
	tr := New(WithMessages(Message{Speaker: SpeakerAssistant, Text: "orphan"}))

	_, err := tr.Serialize()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidState))
}

func TestSerializeDoesNotMutateTranscript(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddHumanMessage(Message{
		Text: "hi",
		ContextFiles: []ContextItem{
			{URI: "file:///repo/main.go", Span: &Span{Anchor: Position{Line: 3}, Active: Position{Line: 1}}},
		},
	}))

	before := tr.Messages()
	_, err := tr.Serialize()
	require.NoError(t, err)
	assert.Equal(t, before, tr.Messages())

	// the live span is still attached in memory
	require.NotNil(t, tr.Messages()[0].ContextFiles[0].Span)
}

func TestSerializeEnhancedContext(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddHumanMessage(Message{Text: "hi"}))

	s, err := tr.Serialize()
	require.NoError(t, err)
	assert.Nil(t, s.EnhancedContext)

	tr.SetSelectedRepos([]RepoRef{{ID: "r1", Name: "repo-one"}})
	s, err = tr.Serialize()
	require.NoError(t, err)
	require.NotNil(t, s.EnhancedContext)
	require.Len(t, s.EnhancedContext.SelectedRepos, 1)

	// the serialized record holds an independent copy
	s.EnhancedContext.SelectedRepos[0].Name = "mutated"
	assert.Equal(t, "repo-one", tr.SelectedRepos()[0].Name)
}

func TestSerializeCustomTitle(t *testing.T) {
	tr := New()
	require.NoError(t, tr.AddHumanMessage(Message{Text: "hi"}))

	s, err := tr.Serialize()
	require.NoError(t, err)
	assert.Empty(t, s.ChatTitle)

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "chatTitle")

	tr.SetCustomChatTitle("Foo")
	s, err = tr.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "Foo", s.ChatTitle)
}

func TestPrepareMessageForTransport(t *testing.T) {
	tr := New()
	msg := Message{
		Speaker: SpeakerHuman,
		Text:    "hi",
		ContextFiles: []ContextItem{
			{
				URI: "file:///repo/main.go",
				// reversed selection: active sits before the anchor
				Span: &Span{Anchor: Position{Line: 5, Character: 2}, Active: Position{Line: 1, Character: 0}},
			},
		},
	}

	out := tr.PrepareMessageForTransport(msg)

	assert.Equal(t, "hi", out.DisplayText)
	require.Len(t, out.ContextFiles, 1)
	item := out.ContextFiles[0]
	assert.Nil(t, item.Span)
	require.NotNil(t, item.Range)
	assert.Equal(t, Position{Line: 1, Character: 0}, item.Range.Start)
	assert.Equal(t, Position{Line: 5, Character: 2}, item.Range.End)

	// the input message is untouched
	assert.Empty(t, msg.DisplayText)
	require.NotNil(t, msg.ContextFiles[0].Span)
	assert.Nil(t, msg.ContextFiles[0].Range)
}

func TestFromSerializedRoundTrip(t *testing.T) {
	tr := New(WithSessionID("session-1"), WithModelID("test-model"))
	require.NoError(t, tr.AddHumanMessage(Message{Text: "hi"}))
	require.NoError(t, tr.AddBotMessage(Message{Text: "hello"}))
	require.NoError(t, tr.AddHumanMessage(Message{Text: "bye"}))
	tr.SetSelectedRepos([]RepoRef{{ID: "r1", Name: "repo-one"}})
	tr.SetCustomChatTitle("Foo")

	s, err := tr.Serialize()
	require.NoError(t, err)

	restored, err := FromSerialized(s)
	require.NoError(t, err)

	assert.Equal(t, "session-1", restored.SessionID())
	assert.Equal(t, "test-model", restored.ModelID())
	assert.Equal(t, "Foo", restored.ChatTitle())
	assert.Equal(t, 3, restored.Len())

	again, err := restored.Serialize()
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestFromSerializedRejectsBadRecord(t *testing.T) {
	_, err := FromSerialized(nil)
	require.Error(t, err)

	_, err = FromSerialized(&Serialized{
		ID: "session-1",
		Interactions: []Interaction{
			{HumanMessage: Message{Speaker: SpeakerAssistant, Text: "wrong"}},
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidState))

	// a pair missing its assistant message is only valid at the tail
	_, err = FromSerialized(&Serialized{
		ID: "session-1",
		Interactions: []Interaction{
			{HumanMessage: Message{Speaker: SpeakerHuman, Text: "one"}},
			{
				HumanMessage:     Message{Speaker: SpeakerHuman, Text: "two"},
				AssistantMessage: &Message{Speaker: SpeakerAssistant, Text: "reply"},
			},
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidState))
}
