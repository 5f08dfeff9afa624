package server

import (
	"time"

	"github.com/intervox/intervox/internal/transcript"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type StatusEvent struct {
	Event
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type SpeakingEvent struct {
	Event
	SessionID string `json:"session_id"`
	Speaking  bool   `json:"speaking"`
}

type ListeningEvent struct {
	Event
	SessionID string `json:"session_id"`
	Listening bool   `json:"listening"`
}

type TranscriptEvent struct {
	Event
	SessionID string             `json:"session_id"`
	Message   transcript.Message `json:"message"`
}

type ErrorEvent struct {
	Event
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ClosingDetectedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type SessionEndedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	Status    string  `json:"status"`
	Duration  float64 `json:"duration"`
}

type SummaryReadyEvent struct {
	Event
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
	Status    string `json:"status"`
	Preset    string `json:"preset"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
