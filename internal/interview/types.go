package interview

import (
	"context"
	"time"

	"github.com/intervox/intervox/internal/storage"
	"github.com/intervox/intervox/internal/transcript"
)

type Store interface {
	CreateSession(id, projectID string, startedAt time.Time) error
	EndSession(id, status string, endedAt time.Time, audioPath string) error
	AppendMessage(sessionID string, msg transcript.Message) error
	GetMessages(sessionID string) ([]transcript.Message, error)
	GetSession(id string) (storage.Session, error)
	UpdateSummary(sessionID, summary, status, preset string) error
}

type Recorder interface {
	StartSession(sessionID string) error
	EndSession() (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, sessionID, transcript string) (string, string, error)
}

// PresetSummarizer is implemented by summarizers that can regenerate a
// summary under a caller-chosen preset instead of picking one themselves.
type PresetSummarizer interface {
	SummarizeWithPreset(ctx context.Context, sessionID, transcript, presetName string) (string, error)
}

type Exporter interface {
	Export(sess storage.Session, messages []transcript.Message) (string, error)
}

type EventBroadcaster interface {
	BroadcastStatus(sessionID, status string)
	BroadcastSpeaking(sessionID string, speaking bool)
	BroadcastListening(sessionID string, listening bool)
	BroadcastTranscript(sessionID string, msg transcript.Message)
	BroadcastError(sessionID, message string)
	BroadcastClosingDetected(sessionID string)
	BroadcastSessionStarted(sessionID string)
	BroadcastSessionEnded(sessionID, status string, duration time.Duration)
	BroadcastSummaryReady(sessionID, summary, status, preset string)
}
