package transcript

// Transcript is an append-ordered list of conversation messages with
// monotonically increasing sequence numbers.
type Transcript struct {
	messages []Message
	nextSeq  int
}

// NewTranscript creates an empty transcript. Sequence numbers start at 1.
func NewTranscript() *Transcript {
	return &Transcript{nextSeq: 1}
}

// Append adds a new entry and returns it with its assigned sequence number.
func (t *Transcript) Append(role Role, content string, complete bool) Message {
	msg := newMessage(role, content, complete, t.nextSeq)
	t.nextSeq++
	t.messages = append(t.messages, msg)
	return msg
}

// appendToLastIncomplete extends the most recent incomplete entry of the
// given role with more content. Reports false when no such entry exists.
func (t *Transcript) appendToLastIncomplete(role Role, delta string) (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role != role {
			continue
		}
		if t.messages[i].IsComplete {
			return Message{}, false
		}
		t.messages[i].Content += delta
		return t.messages[i], true
	}
	return Message{}, false
}

// amendLastIncomplete replaces the content of the most recent incomplete
// entry of the given role and optionally marks it complete. The entry keeps
// its sequence number. Reports false when no such entry exists.
func (t *Transcript) amendLastIncomplete(role Role, content string, complete bool) (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role != role {
			continue
		}
		if t.messages[i].IsComplete {
			return Message{}, false
		}
		t.messages[i].Content = content
		t.messages[i].IsComplete = complete
		return t.messages[i], true
	}
	return Message{}, false
}

// Messages returns a copy of all entries in display order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Reset discards all entries and restarts sequence numbering.
func (t *Transcript) Reset() {
	t.messages = nil
	t.nextSeq = 1
}
