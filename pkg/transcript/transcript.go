package transcript

import (
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrInvalidState is returned when an operation is invoked against a
// transcript whose state violates the operation's precondition. These are
// caller bugs: they are surfaced immediately and never retried internally.
var ErrInvalidState = errors.New("invalid state")

// FallbackTitle is returned by ChatTitle when there is neither a custom
// title nor a human message to derive one from.
const FallbackTitle = "New Chat"

// RenderFunc renders raw human message text into display markup, applying
// file-link markup for the attached context items. Must be pure.
type RenderFunc func(text string, items []ContextItem) string

// ReformatFunc reformats raw assistant text for display. Must be pure.
type ReformatFunc func(text string) string

// TitleFunc derives a session title from display text. Must be pure.
type TitleFunc func(text string) string

// IgnorePredicate classifies a context URI as ignored. Ignored items are
// filtered out before they are attached to a message.
type IgnorePredicate func(uri string) bool

// Transcript is the ordered sequence of turns of one chat session. Messages
// strictly alternate: even indices are human, odd indices assistant, and an
// odd-length transcript ends on a human message awaiting its response.
//
// A Transcript is confined to a single orchestrator: all operations are
// synchronous, there is no internal locking, and callers must not interleave
// mutating calls on the same instance.
type Transcript struct {
	sessionID string
	modelID   string
	messages  []*Message

	customTitle    string
	hasCustomTitle bool

	selectedRepos []RepoRef

	render      RenderFunc
	reformat    ReformatFunc
	deriveTitle TitleFunc
	isIgnored   IgnorePredicate
}

// RepoRef describes a repository associated with the session's context
// scope. The transcript stores and returns independent copies so callers
// can never alias its internal list.
type RepoRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Option func(*Transcript)

// WithSessionID overrides the generated session identifier. The identifier
// is expected to double as a human-readable creation timestamp.
func WithSessionID(id string) Option {
	return func(t *Transcript) {
		t.sessionID = id
	}
}

func WithModelID(modelID string) Option {
	return func(t *Transcript) {
		t.modelID = modelID
	}
}

// WithMessages seeds the transcript with an existing message sequence. The
// caller is expected to supply a strictly alternating sequence; the
// serializer re-checks parity defensively.
func WithMessages(messages ...Message) Option {
	return func(t *Transcript) {
		t.messages = make([]*Message, 0, len(messages))
		for _, msg := range messages {
			m := msg
			t.messages = append(t.messages, &m)
		}
	}
}

func WithSelectedRepos(repos []RepoRef) Option {
	return func(t *Transcript) {
		t.SetSelectedRepos(repos)
	}
}

func WithCustomChatTitle(title string) Option {
	return func(t *Transcript) {
		t.SetCustomChatTitle(title)
	}
}

// WithRenderer sets the display renderer for human message text.
func WithRenderer(render RenderFunc) Option {
	return func(t *Transcript) {
		t.render = render
	}
}

// WithAssistantReformatter sets the display reformatter for assistant text.
func WithAssistantReformatter(reformat ReformatFunc) Option {
	return func(t *Transcript) {
		t.reformat = reformat
	}
}

// WithTitleDeriver sets the function used to derive a chat title from the
// latest human message.
func WithTitleDeriver(deriveTitle TitleFunc) Option {
	return func(t *Transcript) {
		t.deriveTitle = deriveTitle
	}
}

// WithIgnorePredicate sets the classifier used to filter ignored context
// items before attachment.
func WithIgnorePredicate(isIgnored IgnorePredicate) Option {
	return func(t *Transcript) {
		t.isIgnored = isIgnored
	}
}

// New creates an empty transcript. The session identifier defaults to the
// creation time in RFC1123 form so it can double as a display timestamp.
func New(options ...Option) *Transcript {
	ret := &Transcript{
		sessionID:   time.Now().UTC().Format(time.RFC1123),
		render:      func(text string, _ []ContextItem) string { return text },
		reformat:    func(text string) string { return text },
		deriveTitle: func(text string) string { return text },
		isIgnored:   func(string) bool { return false },
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (t *Transcript) SessionID() string {
	return t.sessionID
}

func (t *Transcript) ModelID() string {
	return t.modelID
}

func (t *Transcript) SetModelID(modelID string) {
	t.modelID = modelID
}

func (t *Transcript) IsEmpty() bool {
	return len(t.messages) == 0
}

func (t *Transcript) lastMessage() *Message {
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1]
}

func (t *Transcript) filterIgnored(items []ContextItem) []ContextItem {
	ret := make([]ContextItem, 0, len(items))
	for _, item := range items {
		if t.isIgnored(item.URI) {
			log.Debug().Str("uri", item.URI).Msg("dropping ignored context item")
			continue
		}
		ret = append(ret, item)
	}
	return ret
}

// SetLastMessageContext replaces the context items of the most recent
// message. The most recent message must be a human message. Ignored items
// are filtered out; everything else is kept in order.
func (t *Transcript) SetLastMessageContext(items []ContextItem) error {
	last := t.lastMessage()
	if last == nil {
		return errors.Wrap(ErrInvalidState, "no last message")
	}
	if last.Speaker != SpeakerHuman {
		return errors.Wrap(ErrInvalidState, "cannot set context on assistant turn")
	}
	last.ContextFiles = t.filterIgnored(items)
	return nil
}

// AddHumanMessage appends a new human message. Two consecutive human
// messages are forbidden.
func (t *Transcript) AddHumanMessage(msg Message) error {
	if last := t.lastMessage(); last != nil && last.Speaker == SpeakerHuman {
		return errors.Wrap(ErrInvalidState, "cannot add human after human")
	}
	msg.Speaker = SpeakerHuman
	if len(msg.ContextFiles) > 0 {
		msg.ContextFiles = t.filterIgnored(msg.ContextFiles)
	}
	t.messages = append(t.messages, &msg)
	return nil
}

// AddBotMessage appends an assistant message. If the previous message is an
// assistant placeholder (no text, typically left behind by a recorded
// error), the placeholder is replaced and its error annotation carried
// forward onto the new message. Two assistant messages that both carry text
// are forbidden.
func (t *Transcript) AddBotMessage(msg Message) error {
	var carried *MessageError
	if last := t.lastMessage(); last != nil && last.Speaker == SpeakerAssistant {
		if last.Text != "" {
			return errors.Wrap(ErrInvalidState, "cannot add bot after bot")
		}
		carried = last.Error
		t.messages = t.messages[:len(t.messages)-1]
	}
	msg.Speaker = SpeakerAssistant
	msg.Error = carried
	t.messages = append(t.messages, &msg)
	return nil
}

// AddErrorAsBotMessage records a generation failure on the assistant side of
// the current exchange. If the last message is already an assistant message
// its fields are reused, so partial text produced before the failure is
// kept. This is the designated recovery path: it never fails and always
// leaves the transcript alternating.
func (t *Transcript) AddErrorAsBotMessage(err error) {
	msg := Message{}
	if last := t.lastMessage(); last != nil && last.Speaker == SpeakerAssistant {
		msg = *last
		t.messages = t.messages[:len(t.messages)-1]
	}
	msg.Speaker = SpeakerAssistant
	msg.Error = NormalizeError(err)
	t.messages = append(t.messages, &msg)
	log.Debug().
		Str("session_id", t.sessionID).
		Err(err).
		Msg("recorded generation failure on assistant message")
}

// LastHumanMessage returns a copy of the most recent human message.
func (t *Transcript) LastHumanMessage() (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Speaker == SpeakerHuman {
			return copyMessage(*t.messages[i]), true
		}
	}
	return Message{}, false
}

// LastSpeakerIndex returns the highest index whose message was authored by
// the given speaker.
func (t *Transcript) LastSpeakerIndex(speaker Speaker) (int, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Speaker == speaker {
			return i, true
		}
	}
	return 0, false
}

// RemoveMessagesFromIndex discards all messages from index onward,
// inclusive. The message at index must have the expected speaker; this
// guards callers against truncating at a stale index.
func (t *Transcript) RemoveMessagesFromIndex(index int, expected Speaker) error {
	if len(t.messages) == 0 {
		return errors.Wrap(ErrInvalidState, "no message to remove")
	}
	if index < 0 || index >= len(t.messages) || t.messages[index].Speaker != expected {
		return errors.Wrap(ErrInvalidState, "speaker mismatch")
	}
	t.messages = t.messages[:index]
	return nil
}

// Messages returns a deep copy of the message sequence. Mutating the
// returned slice or its elements never affects the transcript.
func (t *Transcript) Messages() []Message {
	ret := make([]Message, 0, len(t.messages))
	for _, msg := range t.messages {
		ret = append(ret, copyMessage(*msg))
	}
	return ret
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// ChatTitle returns the custom title if one was set, otherwise a title
// derived from the latest human message's display text, otherwise
// FallbackTitle.
func (t *Transcript) ChatTitle() string {
	if t.hasCustomTitle {
		return t.customTitle
	}
	if msg, ok := t.LastHumanMessage(); ok {
		if text := t.ResolveDisplayText(msg); text != "" {
			return t.deriveTitle(text)
		}
	}
	return FallbackTitle
}

func (t *Transcript) CustomChatTitle() (string, bool) {
	return t.customTitle, t.hasCustomTitle
}

func (t *Transcript) SetCustomChatTitle(title string) {
	t.customTitle = title
	t.hasCustomTitle = true
}

// SelectedRepos returns an independent copy of the repository scope, or nil
// when no scoping is set.
func (t *Transcript) SelectedRepos() []RepoRef {
	if t.selectedRepos == nil {
		return nil
	}
	return clone.Clone(t.selectedRepos).([]RepoRef)
}

// SetSelectedRepos replaces the repository scope with an independent copy of
// the given list. nil clears the scope.
func (t *Transcript) SetSelectedRepos(repos []RepoRef) {
	if repos == nil {
		t.selectedRepos = nil
		return
	}
	t.selectedRepos = clone.Clone(repos).([]RepoRef)
}

func copyMessage(msg Message) Message {
	return clone.Clone(msg).(Message)
}
