package transcript

import (
	"github.com/pkg/errors"
)

// Interaction is a paired (human message, assistant message or nil) unit
// used only at serialization time. AssistantMessage is nil while the pair is
// still awaiting a response.
type Interaction struct {
	HumanMessage     Message  `json:"humanMessage"`
	AssistantMessage *Message `json:"assistantMessage"`
}

// EnhancedContext carries the repository scope of a session on the wire.
type EnhancedContext struct {
	SelectedRepos []RepoRef `json:"selectedRepos"`
}

// Serialized is the durable transcript record consumed by storage and
// history surfaces. LastInteractionTimestamp repeats the session identifier,
// which doubles as a human-readable timestamp string.
type Serialized struct {
	ID                       string           `json:"id"`
	ChatModel                string           `json:"chatModel"`
	ChatTitle                string           `json:"chatTitle,omitempty"`
	LastInteractionTimestamp string           `json:"lastInteractionTimestamp"`
	Interactions             []Interaction    `json:"interactions"`
	EnhancedContext          *EnhancedContext `json:"enhancedContext,omitempty"`
}

// Serialize walks the messages two at a time and emits one interaction per
// human/assistant pair. Display text is materialized on every emitted
// message and live spans are dehydrated, so the record is self-contained.
// The source transcript is never mutated.
//
// A non-human message at an even offset means an alternation invariant was
// bypassed upstream; that is surfaced as ErrInvalidState rather than
// coerced.
func (t *Transcript) Serialize() (*Serialized, error) {
	interactions := make([]Interaction, 0, (len(t.messages)+1)/2)
	for i := 0; i < len(t.messages); i += 2 {
		human := t.messages[i]
		if human.Speaker != SpeakerHuman {
			return nil, errors.Wrapf(ErrInvalidState, "expected human message at index %d", i)
		}
		interaction := Interaction{
			HumanMessage: t.PrepareMessageForTransport(*human),
		}
		if i+1 < len(t.messages) {
			assistant := t.PrepareMessageForTransport(*t.messages[i+1])
			interaction.AssistantMessage = &assistant
		}
		interactions = append(interactions, interaction)
	}

	ret := &Serialized{
		ID:                       t.sessionID,
		ChatModel:                t.modelID,
		LastInteractionTimestamp: t.sessionID,
		Interactions:             interactions,
	}
	if t.hasCustomTitle {
		ret.ChatTitle = t.customTitle
	}
	if t.selectedRepos != nil {
		ret.EnhancedContext = &EnhancedContext{
			SelectedRepos: t.SelectedRepos(),
		}
	}
	return ret, nil
}

// PrepareMessageForTransport returns a copy of the message with its display
// text resolved and every context item dehydrated to the plain start/end
// range form. Live span objects do not survive structural serialization.
func (t *Transcript) PrepareMessageForTransport(msg Message) Message {
	ret := copyMessage(msg)
	ret.DisplayText = t.ResolveDisplayText(ret)
	for i := range ret.ContextFiles {
		ret.ContextFiles[i] = ret.ContextFiles[i].Dehydrated()
	}
	return ret
}

// FromSerialized restores a transcript from a persisted record. Options are
// applied after the record's fields, so they can override collaborators or
// identifiers.
func FromSerialized(s *Serialized, options ...Option) (*Transcript, error) {
	if s == nil {
		return nil, errors.Wrap(ErrInvalidState, "nil serialized transcript")
	}

	messages := make([]Message, 0, len(s.Interactions)*2)
	for i, interaction := range s.Interactions {
		if interaction.HumanMessage.Speaker != SpeakerHuman {
			return nil, errors.Wrapf(ErrInvalidState, "expected human message in interaction %d", i)
		}
		messages = append(messages, interaction.HumanMessage)
		if interaction.AssistantMessage != nil {
			if interaction.AssistantMessage.Speaker != SpeakerAssistant {
				return nil, errors.Wrapf(ErrInvalidState, "expected assistant message in interaction %d", i)
			}
			messages = append(messages, *interaction.AssistantMessage)
		} else if i != len(s.Interactions)-1 {
			return nil, errors.Wrapf(ErrInvalidState, "missing assistant message in interaction %d", i)
		}
	}

	opts := []Option{
		WithSessionID(s.ID),
		WithModelID(s.ChatModel),
		WithMessages(messages...),
	}
	if s.ChatTitle != "" {
		opts = append(opts, WithCustomChatTitle(s.ChatTitle))
	}
	if s.EnhancedContext != nil {
		opts = append(opts, WithSelectedRepos(s.EnhancedContext.SelectedRepos))
	}
	opts = append(opts, options...)

	return New(opts...), nil
}
