package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// SessionOptions configures the remote voice session.
type SessionOptions struct {
	Instructions   string
	Voice          string
	WelcomeMessage string
	ClosingMessage string
}

// interpreter translates raw data-channel messages into domain events and
// drives the session handshake. The send function is injected so the wire
// logic can be exercised without a live connection.
type interpreter struct {
	opts   SessionOptions
	send   func([]byte) error
	emit   func(Event)
	closer *ClosingDetector

	mu          sync.Mutex
	configured  bool
	welcomeSent bool
}

func newInterpreter(opts SessionOptions, send func([]byte) error, emit func(Event), closer *ClosingDetector) *interpreter {
	return &interpreter{
		opts:   opts,
		send:   send,
		emit:   emit,
		closer: closer,
	}
}

// configureSession pushes the session parameters to the remote endpoint.
// Called once when the data channel opens.
func (in *interpreter) configureSession() error {
	update := sessionUpdate{
		Type: typeSessionUpdate,
		Session: sessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      in.opts.Instructions,
			Voice:             in.opts.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionConfig{
				Model: "whisper-1",
			},
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         0.5,
				PrefixPaddingMs:   300,
				SilenceDurationMs: 500,
			},
		},
	}
	return in.sendJSON(update)
}

// handleMessage processes one inbound data-channel message. Unknown event
// types are logged and dropped.
func (in *interpreter) handleMessage(raw []byte) {
	var event serverEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("realtime: dropping malformed event: %v", err)
		return
	}

	switch event.Type {
	case typeSessionUpdated:
		in.onSessionConfigured()

	case typeResponseTranscriptDelta:
		if event.Delta == "" {
			return
		}
		in.emit(Event{
			Type:    EventTranscript,
			Role:    RoleAI,
			Content: event.Delta,
		})

	case typeResponseTranscriptDone:
		in.emit(Event{
			Type:       EventTranscript,
			Role:       RoleAI,
			Content:    event.Transcript,
			IsComplete: true,
		})
		in.closer.Scan(event.Transcript)

	case typeInputTranscriptDone:
		// Empty transcriptions still go through: downstream ordering relies
		// on every completed transcription, even a blank one, to settle the
		// participant turn.
		in.emit(Event{
			Type:       EventTranscript,
			Role:       RoleParticipant,
			Content:    event.Transcript,
			IsComplete: true,
		})

	case typeSpeechStarted:
		in.emit(Event{Type: EventListening, IsListening: true})

	case typeSpeechStopped:
		in.emit(Event{Type: EventListening, IsListening: false})

	case typeResponseAudioStarted:
		in.emit(Event{Type: EventSpeaking, IsSpeaking: true})

	case typeResponseAudioDone, typeResponseDone:
		in.emit(Event{Type: EventSpeaking, IsSpeaking: false})

	case typeServerError:
		message := msgGenericError
		if event.Error != nil && event.Error.Message != "" {
			log.Printf("realtime: server error: %s", event.Error.Message)
			message = event.Error.Message
		}
		in.emit(Event{Type: EventError, Message: message})

	default:
		log.Printf("realtime: ignoring event type %q", event.Type)
	}
}

// onSessionConfigured marks the handshake complete and triggers the welcome
// message exactly once.
func (in *interpreter) onSessionConfigured() {
	in.mu.Lock()
	in.configured = true
	shouldWelcome := in.opts.WelcomeMessage != "" && !in.welcomeSent
	if shouldWelcome {
		in.welcomeSent = true
	}
	in.mu.Unlock()

	if shouldWelcome {
		if err := in.speakAssistant(in.opts.WelcomeMessage); err != nil {
			log.Printf("realtime: failed to send welcome message: %v", err)
		}
	}
}

// sessionConfigured reports whether session.updated has been received.
func (in *interpreter) sessionConfigured() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.configured
}

// speakAssistant injects an assistant turn and asks the model to voice it.
func (in *interpreter) speakAssistant(text string) error {
	item := conversationItemCreate{
		Type: typeConversationItemCreate,
		Item: conversationItem{
			Type: "message",
			Role: "assistant",
			Content: []itemContent{
				{Type: "text", Text: text},
			},
		},
	}
	if err := in.sendJSON(item); err != nil {
		return err
	}
	return in.sendJSON(responseCreate{Type: typeResponseCreate})
}

// sendUserText injects a user turn and requests a response. Used for text
// fallback input alongside the audio path.
func (in *interpreter) sendUserText(text string) error {
	item := conversationItemCreate{
		Type: typeConversationItemCreate,
		Item: conversationItem{
			Type: "message",
			Role: "user",
			Content: []itemContent{
				{Type: "input_text", Text: text},
			},
		},
	}
	if err := in.sendJSON(item); err != nil {
		return err
	}
	return in.sendJSON(responseCreate{Type: typeResponseCreate})
}

func (in *interpreter) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return in.send(data)
}
