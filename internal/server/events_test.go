package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/intervox/intervox/internal/transcript"
)

func TestEventSerialization(t *testing.T) {
	msg := transcript.Message{ID: "m1", Role: transcript.RoleAI, Content: "Welkom", IsComplete: true, SequenceNumber: 1, Timestamp: time.Unix(1, 0)}

	events := []any{
		StatusEvent{Event: newEvent("status", time.Unix(1, 0)), SessionID: "abc", Status: "connected"},
		SpeakingEvent{Event: newEvent("speaking", time.Unix(1, 0)), SessionID: "abc", Speaking: true},
		ListeningEvent{Event: newEvent("listening", time.Unix(1, 0)), SessionID: "abc", Listening: true},
		TranscriptEvent{Event: newEvent("transcript", time.Unix(1, 0)), SessionID: "abc", Message: msg},
		ErrorEvent{Event: newEvent("error", time.Unix(1, 0)), SessionID: "abc", Message: "Er is een fout opgetreden"},
		ClosingDetectedEvent{Event: newEvent("closing_detected", time.Unix(1, 0)), SessionID: "abc"},
		SessionStartedEvent{Event: newEvent("session_started", time.Unix(1, 0)), SessionID: "abc"},
		SessionEndedEvent{Event: newEvent("session_ended", time.Unix(1, 0)), SessionID: "abc", Status: "completed", Duration: 30},
		SummaryReadyEvent{Event: newEvent("summary_ready", time.Unix(1, 0)), SessionID: "abc", Summary: "ok", Status: "completed", Preset: "default"},
	}

	for _, event := range events {
		b, err := json.Marshal(event)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var payload map[string]any
		if err := json.Unmarshal(b, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		if payload["type"] == nil {
			t.Fatalf("missing type in payload: %s", string(b))
		}
		if payload["version"] == nil {
			t.Fatalf("missing version in payload: %s", string(b))
		}
		if payload["timestamp"] == nil {
			t.Fatalf("missing timestamp in payload: %s", string(b))
		}
	}
}

func TestTranscriptEventCarriesMessageFields(t *testing.T) {
	hub := NewHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.BroadcastTranscript("s1", transcript.Message{
		ID:             "m1",
		Role:           transcript.RoleParticipant,
		Content:        "mijn antwoord",
		IsComplete:     true,
		SequenceNumber: 3,
		Timestamp:      time.Now().UTC(),
	})

	select {
	case raw := <-ch:
		var payload struct {
			Type      string `json:"type"`
			SessionID string `json:"session_id"`
			Message   struct {
				Role           string `json:"role"`
				Content        string `json:"content"`
				IsComplete     bool   `json:"isComplete"`
				SequenceNumber int    `json:"sequenceNumber"`
			} `json:"message"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload.Type != "transcript" {
			t.Fatalf("expected transcript event, got %q", payload.Type)
		}
		if payload.SessionID != "s1" {
			t.Fatalf("expected session id s1, got %q", payload.SessionID)
		}
		if payload.Message.Role != "participant" || payload.Message.SequenceNumber != 3 {
			t.Fatalf("unexpected message payload: %+v", payload.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
	}
}
