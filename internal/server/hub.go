package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/intervox/intervox/internal/transcript"
)

// Hub fans interview events out to every connected observer. Slow clients
// are skipped rather than blocking the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastStatus(sessionID, status string) {
	h.broadcastEvent(StatusEvent{
		Event:     newEvent("status", time.Now().UTC()),
		SessionID: sessionID,
		Status:    status,
	})
}

func (h *Hub) BroadcastSpeaking(sessionID string, speaking bool) {
	h.broadcastEvent(SpeakingEvent{
		Event:     newEvent("speaking", time.Now().UTC()),
		SessionID: sessionID,
		Speaking:  speaking,
	})
}

func (h *Hub) BroadcastListening(sessionID string, listening bool) {
	h.broadcastEvent(ListeningEvent{
		Event:     newEvent("listening", time.Now().UTC()),
		SessionID: sessionID,
		Listening: listening,
	})
}

func (h *Hub) BroadcastTranscript(sessionID string, msg transcript.Message) {
	h.broadcastEvent(TranscriptEvent{
		Event:     newEvent("transcript", msg.Timestamp),
		SessionID: sessionID,
		Message:   msg,
	})
}

func (h *Hub) BroadcastError(sessionID, message string) {
	h.broadcastEvent(ErrorEvent{
		Event:     newEvent("error", time.Now().UTC()),
		SessionID: sessionID,
		Message:   message,
	})
}

func (h *Hub) BroadcastClosingDetected(sessionID string) {
	h.broadcastEvent(ClosingDetectedEvent{
		Event:     newEvent("closing_detected", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) BroadcastSessionStarted(sessionID string) {
	h.broadcastEvent(SessionStartedEvent{
		Event:     newEvent("session_started", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) BroadcastSessionEnded(sessionID, status string, duration time.Duration) {
	h.broadcastEvent(SessionEndedEvent{
		Event:     newEvent("session_ended", time.Now().UTC()),
		SessionID: sessionID,
		Status:    status,
		Duration:  duration.Seconds(),
	})
}

func (h *Hub) BroadcastSummaryReady(sessionID, summary, status, preset string) {
	h.broadcastEvent(SummaryReadyEvent{
		Event:     newEvent("summary_ready", time.Now().UTC()),
		SessionID: sessionID,
		Summary:   summary,
		Status:    status,
		Preset:    preset,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
