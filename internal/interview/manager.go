package interview

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/intervox/intervox/internal/realtime"
	"github.com/intervox/intervox/internal/storage"
	"github.com/intervox/intervox/internal/transcript"
)

// Manager owns the lifecycle of one interview session at a time: it feeds
// voice-session events through the ordering engine, persists finalized
// messages, broadcasts changes to observers and wraps the session up when it
// ends.
type Manager struct {
	store      Store
	recorder   Recorder
	summarizer Summarizer
	hub        EventBroadcaster
	exporter   Exporter

	mu        sync.Mutex
	engine    *transcript.Engine
	sessionID string
	projectID string
	startedAt time.Time
}

func NewManager(store Store, recorder Recorder, summarizer Summarizer, hub EventBroadcaster, exporter Exporter) *Manager {
	return &Manager{
		store:      store,
		recorder:   recorder,
		summarizer: summarizer,
		hub:        hub,
		exporter:   exporter,
		engine:     transcript.NewEngine(),
	}
}

// StartSession binds the manager to a new session. Only one session can be
// active at a time.
func (m *Manager) StartSession(sessionID, projectID string) error {
	m.mu.Lock()
	if m.sessionID != "" {
		m.mu.Unlock()
		return ErrSessionActive
	}
	startedAt := time.Now().UTC()
	m.sessionID = sessionID
	m.projectID = projectID
	m.startedAt = startedAt
	m.engine.Reset()
	m.mu.Unlock()

	if err := m.store.CreateSession(sessionID, projectID, startedAt); err != nil {
		m.clearSession()
		return fmt.Errorf("create session: %w", err)
	}

	if m.recorder != nil {
		if err := m.recorder.StartSession(sessionID); err != nil {
			m.clearSession()
			_ = m.store.EndSession(sessionID, storage.StatusAbandoned, time.Now().UTC(), "")
			return fmt.Errorf("start audio recorder session: %w", err)
		}
	}

	if m.hub != nil {
		m.hub.BroadcastSessionStarted(sessionID)
	}
	return nil
}

// HandleEvent is the realtime event handler. Events arriving without an
// active session are only broadcast, never persisted.
func (m *Manager) HandleEvent(event realtime.Event) {
	sessionID := m.currentSession()

	switch event.Type {
	case realtime.EventStatus:
		if m.hub != nil {
			m.hub.BroadcastStatus(sessionID, string(event.Status))
		}
		if event.Status == realtime.StatusDisconnected || event.Status == realtime.StatusError {
			m.handleDisconnect()
		}

	case realtime.EventListening:
		m.mu.Lock()
		m.engine.SetListening(event.IsListening)
		m.mu.Unlock()
		if m.hub != nil {
			m.hub.BroadcastListening(sessionID, event.IsListening)
		}

	case realtime.EventSpeaking:
		if m.hub != nil {
			m.hub.BroadcastSpeaking(sessionID, event.IsSpeaking)
		}

	case realtime.EventTranscript:
		m.handleTranscript(sessionID, event)

	case realtime.EventError:
		if m.hub != nil {
			m.hub.BroadcastError(sessionID, event.Message)
		}

	case realtime.EventClosingDetected:
		if m.hub != nil {
			m.hub.BroadcastClosingDetected(sessionID)
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.EndSession(ctx, storage.StatusCompleted); err != nil && err != ErrNoActiveSession {
				log.Printf("interview: failed to end session after closing detection: %v", err)
			}
		}()
	}
}

func (m *Manager) handleTranscript(sessionID string, event realtime.Event) {
	m.mu.Lock()
	var changes []transcript.Message
	if event.Role == realtime.RoleParticipant {
		changes = m.engine.ParticipantTranscript(event.Content, event.IsComplete)
	} else {
		changes = m.engine.AIFragment(event.Content, event.IsComplete)
	}
	m.mu.Unlock()

	for _, change := range changes {
		if m.hub != nil {
			m.hub.BroadcastTranscript(sessionID, change)
		}
		if change.IsComplete && sessionID != "" {
			if err := m.store.AppendMessage(sessionID, change); err != nil {
				log.Printf("interview: failed to persist message: %v", err)
			}
		}
	}
}

// handleDisconnect abandons the active session, if any. A session ended
// through EndSession has already been cleared by the time the disconnect
// status arrives, so completed sessions are not touched.
func (m *Manager) handleDisconnect() {
	m.mu.Lock()
	m.engine.Reset()
	active := m.sessionID != ""
	m.mu.Unlock()

	if !active {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.EndSession(ctx, storage.StatusAbandoned); err != nil && err != ErrNoActiveSession {
		log.Printf("interview: failed to abandon session: %v", err)
	}
}

// EndSession closes the active session with the given terminal status. For
// completed sessions a summary is generated in the background.
func (m *Manager) EndSession(ctx context.Context, status string) error {
	m.mu.Lock()
	sessionID := m.sessionID
	startedAt := m.startedAt
	if sessionID == "" {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	m.sessionID = ""
	m.projectID = ""
	m.startedAt = time.Time{}
	m.engine.Reset()
	m.mu.Unlock()

	endedAt := time.Now().UTC()
	audioPath := ""
	if m.recorder != nil {
		path, err := m.recorder.EndSession()
		if err != nil {
			log.Printf("interview: failed to end audio recorder session: %v", err)
		} else {
			audioPath = path
		}
	}

	if err := m.store.EndSession(sessionID, status, endedAt, audioPath); err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	if m.hub != nil {
		m.hub.BroadcastSessionEnded(sessionID, status, endedAt.Sub(startedAt))
	}

	if status == storage.StatusCompleted {
		go m.generateSummary(context.Background(), sessionID)
	} else {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryCompleted, "")
	}
	return nil
}

// Transcript returns the live in-memory transcript of the active session.
func (m *Manager) Transcript() []transcript.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Messages()
}

// ActiveSession returns the ID of the active session, or empty.
func (m *Manager) ActiveSession() string {
	return m.currentSession()
}

func (m *Manager) generateSummary(ctx context.Context, sessionID string) {
	if m.summarizer == nil {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryCompleted, "")
		m.export(sessionID)
		return
	}

	_ = m.store.UpdateSummary(sessionID, "", storage.SummaryRunning, "")

	messages, err := m.store.GetMessages(sessionID)
	if err != nil {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed, "")
		m.broadcastSummaryStatus(sessionID, "", storage.SummaryFailed, "")
		return
	}

	summaryText, preset, err := m.summarizer.Summarize(ctx, sessionID, renderTranscript(messages))
	if err != nil {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed, preset)
		m.broadcastSummaryStatus(sessionID, "", storage.SummaryFailed, preset)
		return
	}

	if err := m.store.UpdateSummary(sessionID, summaryText, storage.SummaryCompleted, preset); err != nil {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed, preset)
		m.broadcastSummaryStatus(sessionID, "", storage.SummaryFailed, preset)
		return
	}

	m.broadcastSummaryStatus(sessionID, summaryText, storage.SummaryCompleted, preset)
	m.export(sessionID)
}

// Resummarize regenerates the summary of a finished session. An empty preset
// lets the summarizer pick one; a named preset requires a PresetSummarizer.
func (m *Manager) Resummarize(ctx context.Context, sessionID, preset string) error {
	if m.summarizer == nil {
		return fmt.Errorf("no summarizer configured")
	}

	messages, err := m.store.GetMessages(sessionID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	_ = m.store.UpdateSummary(sessionID, "", storage.SummaryRunning, preset)

	text := renderTranscript(messages)
	summaryText := ""
	usedPreset := preset
	if preset != "" {
		ps, ok := m.summarizer.(PresetSummarizer)
		if !ok {
			_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed, preset)
			return fmt.Errorf("summarizer does not support preset selection")
		}
		summaryText, err = ps.SummarizeWithPreset(ctx, sessionID, text, preset)
	} else {
		summaryText, usedPreset, err = m.summarizer.Summarize(ctx, sessionID, text)
	}
	if err != nil {
		_ = m.store.UpdateSummary(sessionID, "", storage.SummaryFailed, usedPreset)
		m.broadcastSummaryStatus(sessionID, "", storage.SummaryFailed, usedPreset)
		return err
	}

	if err := m.store.UpdateSummary(sessionID, summaryText, storage.SummaryCompleted, usedPreset); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	m.broadcastSummaryStatus(sessionID, summaryText, storage.SummaryCompleted, usedPreset)
	m.export(sessionID)
	return nil
}

func renderTranscript(messages []transcript.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		label := "Interviewer"
		if msg.Role == transcript.RoleParticipant {
			label = "Deelnemer"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// export writes the transcript archive for a finished session.
func (m *Manager) export(sessionID string) {
	if m.exporter == nil {
		return
	}

	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		log.Printf("interview: failed to load session %s for export: %v", sessionID, err)
		return
	}
	messages, err := m.store.GetMessages(sessionID)
	if err != nil {
		log.Printf("interview: failed to load messages for export: %v", err)
		return
	}
	if _, err := m.exporter.Export(sess, messages); err != nil {
		log.Printf("interview: failed to export session %s: %v", sessionID, err)
	}
}

func (m *Manager) broadcastSummaryStatus(sessionID, summary, status, preset string) {
	if m.hub != nil {
		m.hub.BroadcastSummaryReady(sessionID, summary, status, preset)
	}
}

func (m *Manager) clearSession() {
	m.mu.Lock()
	m.sessionID = ""
	m.projectID = ""
	m.startedAt = time.Time{}
	m.mu.Unlock()
}

func (m *Manager) currentSession() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}
