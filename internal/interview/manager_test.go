package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/intervox/intervox/internal/realtime"
	"github.com/intervox/intervox/internal/storage"
	"github.com/intervox/intervox/internal/transcript"
)

type storeMock struct {
	mu       sync.Mutex
	sessions map[string]storage.Session
	messages map[string][]transcript.Message
	summary  map[string]string
	sumState map[string]string
}

func newStoreMock() *storeMock {
	return &storeMock{
		sessions: map[string]storage.Session{},
		messages: map[string][]transcript.Message{},
		summary:  map[string]string{},
		sumState: map[string]string{},
	}
}

func (s *storeMock) CreateSession(id, projectID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = storage.Session{ID: id, ProjectID: projectID, StartedAt: startedAt, Status: storage.StatusActive}
	return nil
}

func (s *storeMock) EndSession(id, status string, endedAt time.Time, audioPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.Status = status
	sess.EndedAt = &endedAt
	sess.AudioPath = audioPath
	s.sessions[id] = sess
	return nil
}

func (s *storeMock) AppendMessage(sessionID string, msg transcript.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return nil
}

func (s *storeMock) GetMessages(sessionID string) ([]transcript.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Message(nil), s.messages[sessionID]...), nil
}

func (s *storeMock) GetSession(id string) (storage.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id], nil
}

func (s *storeMock) UpdateSummary(sessionID, summary, status, preset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary[sessionID] = summary
	s.sumState[sessionID] = status
	return nil
}

func (s *storeMock) storedSummary(id string) (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary[id], s.sumState[id]
}

func (s *storeMock) sessionStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id].Status
}

func (s *storeMock) storedMessages(id string) []transcript.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Message(nil), s.messages[id]...)
}

type summarizerMock struct {
	called chan string
}

func (s summarizerMock) Summarize(_ context.Context, sessionID, transcript string) (string, string, error) {
	if s.called != nil {
		s.called <- sessionID
	}
	return "## Samenvatting\n- " + transcript, "default", nil
}

type presetSummarizerMock struct {
	summarizerMock
	preset chan string
}

func (s presetSummarizerMock) SummarizeWithPreset(_ context.Context, _ string, _, presetName string) (string, error) {
	if s.preset != nil {
		s.preset <- presetName
	}
	return "## Samenvatting (" + presetName + ")", nil
}

type hubMock struct {
	mu          sync.Mutex
	transcripts []transcript.Message
	statuses    []string
	errors      []string
	closing     int
	started     int
	ended       int
	endedStatus string
}

func (h *hubMock) BroadcastStatus(_ string, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, status)
}

func (h *hubMock) BroadcastSpeaking(string, bool)  {}
func (h *hubMock) BroadcastListening(string, bool) {}

func (h *hubMock) BroadcastTranscript(_ string, msg transcript.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transcripts = append(h.transcripts, msg)
}

func (h *hubMock) BroadcastError(_ string, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, message)
}

func (h *hubMock) BroadcastClosingDetected(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing++
}

func (h *hubMock) BroadcastSessionStarted(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started++
}

func (h *hubMock) BroadcastSessionEnded(_ string, status string, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ended++
	h.endedStatus = status
}

func (h *hubMock) BroadcastSummaryReady(string, string, string, string) {}

func (h *hubMock) broadcastCount(t *testing.T) int {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.transcripts)
}

func newTestManager(store *storeMock, hub *hubMock, summarizer Summarizer) *Manager {
	return NewManager(store, nil, summarizer, hub, nil)
}

func TestManagerPersistsCompletedMessagesInOrder(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	m := newTestManager(store, hub, nil)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	// Opening message, then a participant turn whose AI answer arrives
	// before the participant transcription.
	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleAI, Content: "Welkom bij dit interview.", IsComplete: true})
	m.HandleEvent(realtime.Event{Type: realtime.EventListening, IsListening: true})
	m.HandleEvent(realtime.Event{Type: realtime.EventListening, IsListening: false})
	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleAI, Content: "Mooi, vertel eens meer.", IsComplete: true})
	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleParticipant, Content: "Ik ben verpleegkundige.", IsComplete: true})

	messages := store.storedMessages("sess-1")
	if len(messages) != 3 {
		t.Fatalf("expected 3 persisted messages, got %d", len(messages))
	}
	if messages[0].Role != transcript.RoleAI || messages[1].Role != transcript.RoleParticipant || messages[2].Role != transcript.RoleAI {
		t.Errorf("unexpected persisted order: %s, %s, %s", messages[0].Role, messages[1].Role, messages[2].Role)
	}
	if messages[1].Content != "Ik ben verpleegkundige." {
		t.Errorf("unexpected participant content: %q", messages[1].Content)
	}
}

func TestManagerDoesNotPersistStreamingFragments(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	m := newTestManager(store, hub, nil)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleAI, Content: "Welkom "})
	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleAI, Content: "bij dit gesprek."})

	if got := len(store.storedMessages("sess-1")); got != 0 {
		t.Fatalf("streaming fragments must not be persisted, got %d", got)
	}
	if hub.broadcastCount(t) != 2 {
		t.Errorf("expected 2 live broadcasts, got %d", hub.broadcastCount(t))
	}

	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleAI, Content: "Welkom bij dit gesprek.", IsComplete: true})

	messages := store.storedMessages("sess-1")
	if len(messages) != 1 {
		t.Fatalf("expected 1 persisted message after finalization, got %d", len(messages))
	}
	if messages[0].Content != "Welkom bij dit gesprek." {
		t.Errorf("unexpected content: %q", messages[0].Content)
	}
}

func TestManagerRejectsSecondActiveSession(t *testing.T) {
	store := newStoreMock()
	m := newTestManager(store, &hubMock{}, nil)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := m.StartSession("sess-2", "proj-1"); err != ErrSessionActive {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestManagerEndSessionCompletesAndSummarizes(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	summarizer := summarizerMock{called: make(chan string, 1)}
	m := newTestManager(store, hub, summarizer)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	m.HandleEvent(realtime.Event{Type: realtime.EventTranscript, Role: realtime.RoleAI, Content: "Welkom.", IsComplete: true})

	if err := m.EndSession(context.Background(), storage.StatusCompleted); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	select {
	case id := <-summarizer.called:
		if id != "sess-1" {
			t.Errorf("unexpected session summarized: %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("expected summarizer to run")
	}

	if store.sessionStatus("sess-1") != storage.StatusCompleted {
		t.Errorf("expected completed, got %q", store.sessionStatus("sess-1"))
	}
	if m.ActiveSession() != "" {
		t.Error("expected no active session after end")
	}
	if err := m.EndSession(context.Background(), storage.StatusCompleted); err != ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestManagerClosingDetectionEndsSessionCompleted(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	summarizer := summarizerMock{called: make(chan string, 1)}
	m := newTestManager(store, hub, summarizer)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	m.HandleEvent(realtime.Event{Type: realtime.EventClosingDetected})

	select {
	case <-summarizer.called:
	case <-time.After(time.Second):
		t.Fatal("expected closing detection to complete the session")
	}

	if store.sessionStatus("sess-1") != storage.StatusCompleted {
		t.Errorf("expected completed, got %q", store.sessionStatus("sess-1"))
	}
}

func TestManagerDisconnectAbandonsActiveSession(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	m := newTestManager(store, hub, nil)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	m.HandleEvent(realtime.Event{Type: realtime.EventStatus, Status: realtime.StatusDisconnected})

	if store.sessionStatus("sess-1") != storage.StatusAbandoned {
		t.Errorf("expected abandoned, got %q", store.sessionStatus("sess-1"))
	}
	if len(m.Transcript()) != 0 {
		t.Error("expected transcript to be discarded on disconnect")
	}
}

func TestManagerDisconnectAfterEndDoesNotReopenSession(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	m := newTestManager(store, hub, nil)

	if err := m.StartSession("sess-1", "proj-1"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := m.EndSession(context.Background(), storage.StatusCompleted); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	m.HandleEvent(realtime.Event{Type: realtime.EventStatus, Status: realtime.StatusDisconnected})

	if store.sessionStatus("sess-1") != storage.StatusCompleted {
		t.Errorf("completed session must stay completed, got %q", store.sessionStatus("sess-1"))
	}
}

func TestManagerResummarizeWithPreset(t *testing.T) {
	store := newStoreMock()
	store.messages["sess-1"] = []transcript.Message{
		{Role: transcript.RoleAI, Content: "Wat doe je voor werk?", IsComplete: true},
		{Role: transcript.RoleParticipant, Content: "Ik ben verpleegkundige.", IsComplete: true},
	}
	summarizer := presetSummarizerMock{preset: make(chan string, 1)}
	m := newTestManager(store, &hubMock{}, summarizer)

	if err := m.Resummarize(context.Background(), "sess-1", "detailed"); err != nil {
		t.Fatalf("Resummarize failed: %v", err)
	}

	select {
	case preset := <-summarizer.preset:
		if preset != "detailed" {
			t.Errorf("unexpected preset: %q", preset)
		}
	default:
		t.Fatal("expected the preset summarizer to run")
	}

	summaryText, status := store.storedSummary("sess-1")
	if status != storage.SummaryCompleted {
		t.Errorf("expected completed summary status, got %q", status)
	}
	if summaryText != "## Samenvatting (detailed)" {
		t.Errorf("unexpected summary: %q", summaryText)
	}
}

func TestManagerResummarizeWithoutPresetUsesRouter(t *testing.T) {
	store := newStoreMock()
	store.messages["sess-1"] = []transcript.Message{
		{Role: transcript.RoleParticipant, Content: "Ik ben verpleegkundige.", IsComplete: true},
	}
	m := newTestManager(store, &hubMock{}, summarizerMock{})

	if err := m.Resummarize(context.Background(), "sess-1", ""); err != nil {
		t.Fatalf("Resummarize failed: %v", err)
	}

	if _, status := store.storedSummary("sess-1"); status != storage.SummaryCompleted {
		t.Errorf("expected completed summary status, got %q", status)
	}
}

func TestManagerResummarizeRejectsPresetWithoutSupport(t *testing.T) {
	m := newTestManager(newStoreMock(), &hubMock{}, summarizerMock{})

	if err := m.Resummarize(context.Background(), "sess-1", "detailed"); err == nil {
		t.Fatal("expected an error for a summarizer without preset support")
	}
}

func TestManagerBroadcastsErrors(t *testing.T) {
	store := newStoreMock()
	hub := &hubMock{}
	m := newTestManager(store, hub, nil)

	m.HandleEvent(realtime.Event{Type: realtime.EventError, Message: "Verbinding verbroken"})

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.errors) != 1 || hub.errors[0] != "Verbinding verbroken" {
		t.Errorf("unexpected errors: %#v", hub.errors)
	}
}
