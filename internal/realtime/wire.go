package realtime

// Wire types for the control channel. Field names are part of the remote
// endpoint's protocol and must not change.

const (
	typeSessionUpdate          = "session.update"
	typeSessionUpdated         = "session.updated"
	typeConversationItemCreate = "conversation.item.create"
	typeResponseCreate         = "response.create"

	typeResponseTranscriptDelta = "response.audio_transcript.delta"
	typeResponseTranscriptDone  = "response.audio_transcript.done"
	typeInputTranscriptDone     = "conversation.item.input_audio_transcription.completed"
	typeSpeechStarted           = "input_audio_buffer.speech_started"
	typeSpeechStopped           = "input_audio_buffer.speech_stopped"
	typeResponseAudioStarted    = "response.audio.started"
	typeResponseAudioDone       = "response.audio.done"
	typeResponseDone            = "response.done"
	typeServerError             = "error"
)

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`
	TurnDetection           turnDetection       `json:"turn_detection"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type conversationItemCreate struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []itemContent `json:"content"`
}

type itemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseCreate struct {
	Type string `json:"type"`
}

// serverEvent is the inbound envelope. Only the fields the interpreter reads
// are decoded; everything else is ignored.
type serverEvent struct {
	Type       string       `json:"type"`
	Delta      string       `json:"delta"`
	Transcript string       `json:"transcript"`
	Error      *serverError `json:"error"`
}

type serverError struct {
	Message string `json:"message"`
}
