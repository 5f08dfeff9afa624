package transcript

import "strings"

// queuedMessage is an AI message held back while a participant transcript is
// outstanding. isUpdate marks a finalization of content that was already
// streaming when the hold started.
type queuedMessage struct {
	content    string
	isComplete bool
	isUpdate   bool
}

// Engine orders conversation messages for display. The remote endpoint often
// delivers the AI response before the transcription of the participant turn
// that prompted it; the engine holds AI content back until that transcription
// arrives so question and answer appear in spoken order.
type Engine struct {
	transcript *Transcript

	// pendingParticipant is set when the participant starts speaking and
	// cleared only by their finalized transcript.
	pendingParticipant bool

	// firstAISeen is set on the first AI fragment, partial or complete.
	// The opening message has no participant turn before it and is never
	// held back.
	firstAISeen bool

	// heldPartial accumulates streaming AI fragments while holding.
	heldPartial string

	// queue holds complete AI messages, in arrival order, while holding.
	queue []queuedMessage
}

// NewEngine creates an engine with an empty transcript.
func NewEngine() *Engine {
	return &Engine{transcript: NewTranscript()}
}

// SetListening records a voice-activity boundary. Participant speech starting
// means a participant transcript is now owed; speech stopping does not cancel
// that, since the transcription arrives well after the audio ends.
func (e *Engine) SetListening(listening bool) {
	if listening {
		e.pendingParticipant = true
	}
}

// AIFragment processes an AI transcript fragment and returns the transcript
// entries that were appended or amended, in order. Fragments arriving while a
// participant transcript is owed are held; the returned slice is then empty.
func (e *Engine) AIFragment(content string, complete bool) []Message {
	if content == "" {
		return nil
	}

	firstAI := !e.firstAISeen
	e.firstAISeen = true

	holding := e.pendingParticipant && !firstAI

	if !complete {
		if holding {
			e.heldPartial += content
			return nil
		}
		if msg, ok := e.transcript.appendToLastIncomplete(RoleAI, content); ok {
			return []Message{msg}
		}
		return []Message{e.transcript.Append(RoleAI, content, false)}
	}

	if holding {
		// The finalized transcript supersedes any fragments accumulated for
		// the same response, so drop them and queue this as an update.
		e.queue = append(e.queue, queuedMessage{content: content, isComplete: true, isUpdate: true})
		e.heldPartial = ""
		return nil
	}

	if msg, ok := e.transcript.amendLastIncomplete(RoleAI, content, true); ok {
		return []Message{msg}
	}
	return []Message{e.transcript.Append(RoleAI, content, true)}
}

// ParticipantTranscript processes a participant transcription. A finalized
// transcription always settles the owed-transcript state and flushes the held
// AI content behind it, even when the transcription itself is blank; only
// non-blank content becomes a transcript entry. Partial transcriptions amend
// an open participant entry in place without touching the hold.
func (e *Engine) ParticipantTranscript(content string, complete bool) []Message {
	if !complete {
		if content == "" {
			return nil
		}
		if msg, ok := e.transcript.appendToLastIncomplete(RoleParticipant, content); ok {
			return []Message{msg}
		}
		return []Message{e.transcript.Append(RoleParticipant, content, false)}
	}

	e.pendingParticipant = false

	var changes []Message
	if strings.TrimSpace(content) != "" {
		if msg, ok := e.transcript.amendLastIncomplete(RoleParticipant, content, true); ok {
			changes = append(changes, msg)
		} else {
			changes = append(changes, e.transcript.Append(RoleParticipant, content, true))
		}
	}

	if e.heldPartial != "" {
		changes = append(changes, e.transcript.Append(RoleAI, e.heldPartial, false))
		e.heldPartial = ""
	}

	for _, q := range e.queue {
		if q.isUpdate {
			if msg, ok := e.transcript.amendLastIncomplete(RoleAI, q.content, true); ok {
				changes = append(changes, msg)
				continue
			}
		}
		changes = append(changes, e.transcript.Append(RoleAI, q.content, q.isComplete))
	}
	e.queue = nil

	return changes
}

// Messages returns the transcript in display order.
func (e *Engine) Messages() []Message {
	return e.transcript.Messages()
}

// Reset discards the transcript, held content and all ordering state. Used
// when a connection ends; nothing held survives a disconnect.
func (e *Engine) Reset() {
	e.transcript.Reset()
	e.pendingParticipant = false
	e.firstAISeen = false
	e.heldPartial = ""
	e.queue = nil
}
