package events

import (
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/google/uuid"
)

type EventType string

const (
	// EventTypeUpdated carries a full serialized snapshot after a mutation.
	EventTypeUpdated EventType = "transcript-updated"
	// EventTypeErrorRecorded signals a generation failure was absorbed into
	// the transcript.
	EventTypeErrorRecorded EventType = "transcript-error"
	// EventTypeTitleChanged signals a custom title change.
	EventTypeTitleChanged EventType = "transcript-title-changed"
)

// Event is one transcript lifecycle notification. Snapshot is present on
// updates, Error on recorded failures.
type Event struct {
	ID        string                   `json:"id"`
	Type      EventType                `json:"type"`
	SessionID string                   `json:"sessionId"`
	Title     string                   `json:"title,omitempty"`
	Snapshot  *transcript.Serialized   `json:"snapshot,omitempty"`
	Error     *transcript.MessageError `json:"error,omitempty"`
}

// Notifier publishes transcript lifecycle events for one session.
type Notifier struct {
	pm    *PublisherManager
	topic string
}

func NewNotifier(pm *PublisherManager, topic string) *Notifier {
	return &Notifier{pm: pm, topic: topic}
}

// TranscriptUpdated serializes the transcript and publishes a snapshot
// event. Serialization failures propagate: they indicate an invariant was
// bypassed upstream.
func (n *Notifier) TranscriptUpdated(t *transcript.Transcript) error {
	snapshot, err := t.Serialize()
	if err != nil {
		return err
	}
	n.pm.PublishBlind(&Event{
		ID:        uuid.NewString(),
		Type:      EventTypeUpdated,
		SessionID: t.SessionID(),
		Title:     t.ChatTitle(),
		Snapshot:  snapshot,
	})
	return nil
}

// ErrorRecorded publishes the normalized payload of an absorbed generation
// failure.
func (n *Notifier) ErrorRecorded(t *transcript.Transcript, err error) {
	n.pm.PublishBlind(&Event{
		ID:        uuid.NewString(),
		Type:      EventTypeErrorRecorded,
		SessionID: t.SessionID(),
		Error:     transcript.NormalizeError(err),
	})
}

// TitleChanged publishes the session's current title.
func (n *Notifier) TitleChanged(t *transcript.Transcript) {
	n.pm.PublishBlind(&Event{
		ID:        uuid.NewString(),
		Type:      EventTypeTitleChanged,
		SessionID: t.SessionID(),
		Title:     t.ChatTitle(),
	})
}
