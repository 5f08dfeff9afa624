package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intervox/intervox/internal/config"
	"github.com/intervox/intervox/internal/storage"
	"github.com/intervox/intervox/internal/transcript"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const maxMessageLength = 10000

type SessionStore interface {
	GetProject(id string) (storage.Project, error)
	GetProjectConfig(projectID string) (storage.ProjectConfig, error)
	ListProjects() ([]storage.Project, error)
	CreateSession(id, projectID string, startedAt time.Time) error
	EndSession(id, status string, endedAt time.Time, audioPath string) error
	AppendMessage(sessionID string, msg transcript.Message) error
	GetMessages(sessionID string) ([]transcript.Message, error)
	GetSession(id string) (storage.Session, error)
	GetSessionsByProject(projectID string) ([]storage.Session, error)
}

// ControlHooks connects the HTTP surface to the in-process interview
// client. Every hook is optional; missing hooks degrade to store-only
// behavior.
type ControlHooks struct {
	StartInterview func(sessionID, projectID string) error
	EndInterview   func(ctx context.Context, sessionID, status string) error
	ActiveSession  func() string
	SetMicMuted    func(muted bool)
	MicMuted       func() bool
	SetVolume      func(level float64)
	Presets        func() map[string]config.Preset
	Resummarize    func(ctx context.Context, sessionID, preset string) error
	Warnings       func() []string
}

func registerAPIRoutes(mux *http.ServeMux, store SessionStore, issuer *TokenIssuer, limiter *RateLimiter, controls ControlHooks) {
	mux.HandleFunc("POST /api/interview/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProjectID string `json:"projectId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" {
			writeJSONError(w, http.StatusBadRequest, "Project ID is vereist")
			return
		}

		if limiter != nil && !limiter.Allow(body.ProjectID) {
			writeJSONError(w, http.StatusTooManyRequests, "Te veel verzoeken. Probeer het over een minuut opnieuw.")
			return
		}

		if _, err := store.GetProject(body.ProjectID); err != nil {
			writeJSONError(w, http.StatusNotFound, "Project niet gevonden")
			return
		}

		cfg, err := store.GetProjectConfig(body.ProjectID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "Configuratie niet gevonden")
			return
		}

		voice := cfg.Voice
		if voice == "" {
			voice = "alloy"
		}

		token, err := issuer.Issue(r.Context(), voice)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Kon geen verbinding maken met de AI service")
			return
		}

		welcome := cfg.WelcomeMessage
		if welcome == "" {
			welcome = DefaultWelcomeMessage
		}
		closing := cfg.ClosingMessage
		if closing == "" {
			closing = DefaultClosingMessage
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		writeJSON(w, http.StatusOK, map[string]any{
			"token": token,
			"config": map[string]any{
				"systemPrompt":   BuildSystemPrompt(cfg),
				"welcomeMessage": welcome,
				"closingMessage": closing,
				"maxQuestions":   cfg.MaxQuestions,
				"voice":          voice,
			},
		})
	})

	mux.HandleFunc("POST /api/interview/start", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProjectID string `json:"projectId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" {
			writeJSONError(w, http.StatusBadRequest, "Project ID is vereist")
			return
		}

		if _, err := store.GetProject(body.ProjectID); err != nil {
			writeJSONError(w, http.StatusNotFound, "Project niet gevonden")
			return
		}

		sessionID := uuid.NewString()
		startedAt := time.Now().UTC()

		if controls.StartInterview != nil {
			if err := controls.StartInterview(sessionID, body.ProjectID); err != nil {
				writeJSONError(w, http.StatusConflict, fmt.Sprintf("Kon sessie niet aanmaken: %v", err))
				return
			}
		} else if err := store.CreateSession(sessionID, body.ProjectID, startedAt); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Kon sessie niet aanmaken")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": sessionID,
			"startedAt": startedAt.Format(time.RFC3339Nano),
		})
	})

	mux.HandleFunc("POST /api/interview/message", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID string `json:"sessionId"`
			Role      string `json:"role"`
			Content   string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" {
			writeJSONError(w, http.StatusBadRequest, "Session ID is vereist")
			return
		}

		var role transcript.Role
		switch body.Role {
		case "ai":
			role = transcript.RoleAI
		case "user", "participant":
			role = transcript.RoleParticipant
		default:
			writeJSONError(w, http.StatusBadRequest, "Ongeldige rol")
			return
		}

		if body.Content == "" {
			writeJSONError(w, http.StatusBadRequest, "Inhoud is vereist")
			return
		}
		if len(body.Content) > maxMessageLength {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Bericht is te lang (max %d tekens)", maxMessageLength))
			return
		}
		if strings.TrimSpace(body.Content) == "" {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "skipped": true})
			return
		}

		if _, err := store.GetSession(body.SessionID); err != nil {
			writeJSONError(w, http.StatusNotFound, "Sessie niet gevonden")
			return
		}

		msg := transcript.Message{
			Role:       role,
			Content:    body.Content,
			IsComplete: true,
			Timestamp:  time.Now().UTC(),
		}
		if err := store.AppendMessage(body.SessionID, msg); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Kon bericht niet opslaan")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	mux.HandleFunc("POST /api/interview/end", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID string `json:"sessionId"`
			Status    string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SessionID == "" {
			writeJSONError(w, http.StatusBadRequest, "Session ID is vereist")
			return
		}
		if body.Status != storage.StatusCompleted && body.Status != storage.StatusAbandoned {
			writeJSONError(w, http.StatusBadRequest, "Ongeldige status")
			return
		}

		sess, err := store.GetSession(body.SessionID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "Sessie niet gevonden")
			return
		}

		if sess.Status != storage.StatusActive {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true,
				"message": "Sessie was al beeindigd",
				"status":  sess.Status,
			})
			return
		}

		if controls.EndInterview != nil {
			if err := controls.EndInterview(r.Context(), body.SessionID, body.Status); err != nil {
				writeJSONError(w, http.StatusInternalServerError, "Kon sessie niet beeindigen")
				return
			}
		} else if err := store.EndSession(body.SessionID, body.Status, time.Now().UTC(), ""); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Kon sessie niet beeindigen")
			return
		}

		updated, err := store.GetSession(body.SessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Er is een fout opgetreden")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"session": map[string]any{
				"id":      updated.ID,
				"status":  updated.Status,
				"endedAt": updated.EndedAt,
			},
		})
	})

	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		projects, err := store.ListProjects()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list projects: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, projects)
	})

	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		projectID := r.URL.Query().Get("project")
		if projectID == "" {
			writeJSONError(w, http.StatusBadRequest, "Project ID is vereist")
			return
		}

		sessions, err := store.GetSessionsByProject(projectID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sess, err := store.GetSession(sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get session: %v", err))
			return
		}

		messages, err := store.GetMessages(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session messages: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"session":  sess,
			"messages": messages,
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sess, err := store.GetSession(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}

		if sess.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(sess.AudioPath)
		if cleanPath == "" || cleanPath == "." || filepath.IsAbs(cleanPath) || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("POST /api/interview/mute", func(w http.ResponseWriter, r *http.Request) {
		if controls.SetMicMuted != nil {
			controls.SetMicMuted(true)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/interview/unmute", func(w http.ResponseWriter, r *http.Request) {
		if controls.SetMicMuted != nil {
			controls.SetMicMuted(false)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/interview/volume", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Level float64 `json:"level"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Ongeldig volume")
			return
		}
		if controls.SetVolume != nil {
			controls.SetVolume(body.Level)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/presets", func(w http.ResponseWriter, r *http.Request) {
		descriptions := map[string]string{}
		if controls.Presets != nil {
			for name, preset := range controls.Presets() {
				descriptions[name] = preset.Description
			}
		}
		writeJSON(w, http.StatusOK, descriptions)
	})

	mux.HandleFunc("POST /api/sessions/{id}/resummarize", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}
		if controls.Resummarize == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "summarization not configured")
			return
		}

		var body struct {
			Preset string `json:"preset"`
		}
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
				writeJSONError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := controls.Resummarize(ctx, sessionID, body.Preset); err != nil {
				log.Printf("resummarize %s failed: %v", sessionID, err)
			}
		}()

		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		muted := false
		if controls.MicMuted != nil {
			muted = controls.MicMuted()
		}
		active := ""
		if controls.ActiveSession != nil {
			active = controls.ActiveSession()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"muted":          muted,
			"active_session": active,
			"warnings":       warnings,
		})
	})
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	switch filepath.Ext(path) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
