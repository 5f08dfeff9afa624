package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/intervox/intervox/internal/transcript"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func newTestSession(t *testing.T, store *SQLiteStore) string {
	t.Helper()

	if err := store.CreateProject("proj-1", "Zorginstelling Noord"); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	sessionID := "sess-1"
	if err := store.CreateSession(sessionID, "proj-1", time.Now().UTC()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return sessionID
}

func TestSQLitePragmas(t *testing.T) {
	store := newTestSQLiteStore(t)

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected journal_mode wal, got %q", mode)
	}

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout failed: %v", err)
	}
	if timeout < 5000 {
		t.Fatalf("expected busy_timeout >= 5000, got %d", timeout)
	}
}

func TestSQLiteSessionLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	sessionID := newTestSession(t, store)

	if err := store.AppendMessage(sessionID, transcript.Message{
		Role:    transcript.RoleAI,
		Content: "Welkom bij dit interview.",
	}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := store.AppendMessage(sessionID, transcript.Message{
		Role:    transcript.RoleParticipant,
		Content: "Dank u wel.",
	}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := store.UpdateSummary(sessionID, "## Samenvatting\n- afgerond", SummaryCompleted, "default"); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}

	if err := store.EndSession(sessionID, StatusCompleted, time.Now().UTC(), ""); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	session, err := store.GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q", StatusCompleted, session.Status)
	}
	if session.SummaryStatus != SummaryCompleted {
		t.Fatalf("expected summary_status %q, got %q", SummaryCompleted, session.SummaryStatus)
	}
	if session.SummaryPreset != "default" {
		t.Fatalf("expected summary_preset %q, got %q", "default", session.SummaryPreset)
	}

	messages, err := store.GetMessages(sessionID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != transcript.RoleAI || messages[1].Role != transcript.RoleParticipant {
		t.Fatalf("unexpected roles: %s, %s", messages[0].Role, messages[1].Role)
	}
	if messages[0].SequenceNumber != 1 || messages[1].SequenceNumber != 2 {
		t.Fatalf("unexpected sequence numbers: %d, %d", messages[0].SequenceNumber, messages[1].SequenceNumber)
	}

	sessions, err := store.GetSessionsByProject("proj-1")
	if err != nil {
		t.Fatalf("GetSessionsByProject failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session for project, got %d", len(sessions))
	}
}

func TestEndSessionFirstTerminalStatusWins(t *testing.T) {
	store := newTestSQLiteStore(t)
	sessionID := newTestSession(t, store)

	if err := store.EndSession(sessionID, StatusCompleted, time.Now().UTC(), ""); err != nil {
		t.Fatalf("first EndSession failed: %v", err)
	}
	if err := store.EndSession(sessionID, StatusAbandoned, time.Now().UTC(), ""); err != nil {
		t.Fatalf("second EndSession failed: %v", err)
	}

	session, err := store.GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.Status != StatusCompleted {
		t.Fatalf("expected completed to stick, got %q", session.Status)
	}
}

func TestEndSessionRejectsNonTerminalStatus(t *testing.T) {
	store := newTestSQLiteStore(t)
	sessionID := newTestSession(t, store)

	if err := store.EndSession(sessionID, StatusActive, time.Now().UTC(), ""); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestAppendMessageDeduplicatesWithinWindow(t *testing.T) {
	store := newTestSQLiteStore(t)
	sessionID := newTestSession(t, store)

	msg := transcript.Message{Role: transcript.RoleAI, Content: "Kunt u dat toelichten?"}
	if err := store.AppendMessage(sessionID, msg); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	// Same role and content again, right away: a duplicate delivery.
	if err := store.AppendMessage(sessionID, transcript.Message{Role: transcript.RoleAI, Content: "Kunt u dat toelichten?"}); err != nil {
		t.Fatalf("duplicate append failed: %v", err)
	}
	// Same content from the other role is a real message.
	if err := store.AppendMessage(sessionID, transcript.Message{Role: transcript.RoleParticipant, Content: "Kunt u dat toelichten?"}); err != nil {
		t.Fatalf("participant append failed: %v", err)
	}

	messages, err := store.GetMessages(sessionID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after dedup, got %d", len(messages))
	}
}

func TestAppendMessageSkipsBlankAndTruncatesLongContent(t *testing.T) {
	store := newTestSQLiteStore(t)
	sessionID := newTestSession(t, store)

	if err := store.AppendMessage(sessionID, transcript.Message{Role: transcript.RoleAI, Content: "   "}); err != nil {
		t.Fatalf("blank append failed: %v", err)
	}

	long := strings.Repeat("a", maxMessageLength+500)
	if err := store.AppendMessage(sessionID, transcript.Message{Role: transcript.RoleAI, Content: long}); err != nil {
		t.Fatalf("long append failed: %v", err)
	}

	messages, err := store.GetMessages(sessionID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if len(messages[0].Content) != maxMessageLength {
		t.Fatalf("expected content truncated to %d, got %d", maxMessageLength, len(messages[0].Content))
	}
}

func TestProjectConfigUpsert(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.CreateProject("proj-1", "Zorginstelling Noord"); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	cfg := ProjectConfig{
		ProjectID:      "proj-1",
		SystemPrompt:   "Je interviewt zorgmedewerkers.",
		WelcomeMessage: "Welkom!",
		ClosingMessage: "Bedankt voor dit gesprek.",
		Voice:          "alloy",
	}
	if err := store.UpsertProjectConfig(cfg); err != nil {
		t.Fatalf("UpsertProjectConfig failed: %v", err)
	}

	cfg.Voice = "verse"
	if err := store.UpsertProjectConfig(cfg); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := store.GetProjectConfig("proj-1")
	if err != nil {
		t.Fatalf("GetProjectConfig failed: %v", err)
	}
	if got.Voice != "verse" {
		t.Fatalf("expected updated voice verse, got %q", got.Voice)
	}
	if got.Language != "nl" {
		t.Fatalf("expected default language nl, got %q", got.Language)
	}
	if got.MaxQuestions != 10 {
		t.Fatalf("expected default max questions 10, got %d", got.MaxQuestions)
	}
}

func TestAbandonStaleSessions(t *testing.T) {
	store := newTestSQLiteStore(t)
	if err := store.CreateProject("proj-1", "Test"); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	if err := store.CreateSession("old", "proj-1", time.Now().UTC().Add(-2*time.Hour)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateSession("fresh", "proj-1", time.Now().UTC()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	ids, err := store.AbandonStaleSessions(time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("AbandonStaleSessions failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Fatalf("expected [old], got %#v", ids)
	}

	old, err := store.GetSession("old")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if old.Status != StatusAbandoned {
		t.Fatalf("expected abandoned, got %q", old.Status)
	}

	fresh, err := store.GetSession("fresh")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if fresh.Status != StatusActive {
		t.Fatalf("expected fresh session to stay active, got %q", fresh.Status)
	}
}

func TestSQLiteSummaryClaimIsIdempotent(t *testing.T) {
	store := newTestSQLiteStore(t)

	claimed, err := store.ClaimSummaryRequest("s1", "hash-1")
	if err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to be accepted")
	}

	claimed, err = store.ClaimSummaryRequest("s1", "hash-1")
	if err != nil {
		t.Fatalf("second claim failed: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to be ignored")
	}
}

func TestSQLiteConcurrentAccess(t *testing.T) {
	store := newTestSQLiteStore(t)
	sessionID := newTestSession(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_ = store.AppendMessage(sessionID, transcript.Message{
				Role:    transcript.RoleParticipant,
				Content: fmt.Sprintf("antwoord-%d", idx),
			})
			_, _ = store.GetSession(sessionID)
		}(i)
	}
	wg.Wait()

	messages, err := store.GetMessages(sessionID)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(messages))
	}

	seen := make(map[int]bool)
	for _, msg := range messages {
		if seen[msg.SequenceNumber] {
			t.Fatalf("duplicate sequence number %d", msg.SequenceNumber)
		}
		seen[msg.SequenceNumber] = true
	}
}
