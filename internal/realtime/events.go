package realtime

// EventType tags the domain events emitted to subscribers.
type EventType string

const (
	EventStatus          EventType = "status"
	EventSpeaking        EventType = "speaking"
	EventListening       EventType = "listening"
	EventTranscript      EventType = "transcript"
	EventError           EventType = "error"
	EventClosingDetected EventType = "closing_detected"
)

// Status mirrors the transport lifecycle as seen by subscribers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Role identifies who produced a transcript fragment.
type Role string

const (
	RoleAI          Role = "ai"
	RoleParticipant Role = "participant"
)

// Event is the normalized domain event delivered to subscribers. Only the
// fields relevant to the Type are populated.
type Event struct {
	Type        EventType
	Status      Status
	IsSpeaking  bool
	IsListening bool
	Role        Role
	Content     string
	IsComplete  bool
	Message     string
}

// EventHandler receives domain events. Handlers are invoked synchronously in
// subscription order on the delivery goroutine.
type EventHandler func(Event)
