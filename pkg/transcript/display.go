package transcript

// ResolveDisplayText returns the display form of a message:
//
//  1. an already-materialized DisplayText is returned unchanged,
//  2. human text is rendered with file-link markup for its context items,
//  3. assistant text is reformatted for presentation,
//  4. otherwise the raw text is returned as-is.
//
// The resolution is deterministic and never mutates the message, so
// resolving twice yields the same value.
func (t *Transcript) ResolveDisplayText(msg Message) string {
	switch {
	case msg.DisplayText != "":
		return msg.DisplayText
	case msg.Speaker == SpeakerHuman && msg.Text != "":
		return t.render(msg.Text, msg.ContextFiles)
	case msg.Speaker == SpeakerAssistant && msg.Text != "":
		return t.reformat(msg.Text)
	}
	return msg.Text
}
