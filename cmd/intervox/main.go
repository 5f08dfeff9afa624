package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/intervox/intervox/internal/audio"
	"github.com/intervox/intervox/internal/config"
	"github.com/intervox/intervox/internal/gdrive"
	"github.com/intervox/intervox/internal/interview"
	"github.com/intervox/intervox/internal/llm"
	"github.com/intervox/intervox/internal/realtime"
	"github.com/intervox/intervox/internal/server"
	"github.com/intervox/intervox/internal/storage"
	"github.com/intervox/intervox/internal/summary"
)

type muteState struct {
	mu    sync.RWMutex
	muted bool
}

func (m *muteState) Set(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *muteState) Get() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted
}

func main() {
	configPath := flag.String("config", envOrDefault("INTERVOX_CONFIG", "intervox.yaml"), "path to the YAML configuration file")
	flag.Parse()

	log.Println("intervox: starting")

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, warning := range warnings {
		log.Printf("warning: %s", warning)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	hub := server.NewHub()
	recorder := audio.NewRecorder(cfg.AudioDir)
	exporter := storage.NewWriter(cfg.ExportDir)

	summarizer, presetSummarizer := buildSummarizer(cfg, store)
	manager := interview.NewManager(store, recorder, summarizer, hub, exporter)

	rtClient := realtime.NewClient(realtime.ClientOptions{
		BaseURL:    cfg.RealtimeBaseURL,
		Model:      cfg.RealtimeModel,
		Microphone: func() (realtime.Microphone, error) { return audio.NewMicrophone() },
		Speaker:    func() (realtime.Speaker, error) { return audio.NewSpeaker() },
		AudioSink:  recorder.WritePCM,
	})
	stopEvents := rtClient.OnEvent(manager.HandleEvent)
	defer stopEvents()

	issuer := server.NewTokenIssuer(cfg.OpenAIAPIKey, cfg.RealtimeModel, "")
	limiter := server.NewRateLimiter(cfg.TokenRateLimit, time.Minute)

	mutes := &muteState{}

	controls := server.ControlHooks{
		StartInterview: func(sessionID, projectID string) error {
			return startInterview(cfg, store, manager, rtClient, issuer, sessionID, projectID)
		},
		EndInterview: func(ctx context.Context, sessionID, status string) error {
			if manager.ActiveSession() != sessionID {
				return store.EndSession(sessionID, status, time.Now().UTC(), "")
			}
			err := manager.EndSession(ctx, status)
			rtClient.Disconnect()
			return err
		},
		ActiveSession: manager.ActiveSession,
		SetMicMuted: func(muted bool) {
			mutes.Set(muted)
			rtClient.SetMicrophoneMuted(muted)
		},
		MicMuted:  mutes.Get,
		SetVolume: rtClient.SetOutputVolume,
		Warnings:  func() []string { return warnings },
	}
	if presetSummarizer != nil {
		controls.Presets = presetSummarizer.Presets
		controls.Resummarize = manager.Resummarize
	}

	handler := server.Handler(hub, store, issuer, limiter, controls)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		log.Printf("intervox: interview API on http://%s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	go sweepStaleSessions(ctx, store, cfg.ParsedSessionTimeout())

	if cfg.GDriveFolderID != "" {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive sync disabled: %v", syncErr)
		} else {
			go syncTranscripts(ctx, syncer, cfg.ExportDir)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("intervox: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := manager.EndSession(shutdownCtx, storage.StatusAbandoned); err != nil && err != interview.ErrNoActiveSession {
		log.Printf("warning: end session failed: %v", err)
	}
	rtClient.Disconnect()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

// startInterview binds a new session to the realtime client using the
// project's interview settings and connects with a fresh ephemeral token.
func startInterview(cfg config.Config, store *storage.SQLiteStore, manager *interview.Manager, rtClient *realtime.Client, issuer *server.TokenIssuer, sessionID, projectID string) error {
	projectCfg, err := store.GetProjectConfig(projectID)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	voice := projectCfg.Voice
	if voice == "" {
		voice = cfg.Voice
	}
	welcome := projectCfg.WelcomeMessage
	if welcome == "" {
		welcome = server.DefaultWelcomeMessage
	}
	closing := projectCfg.ClosingMessage
	if closing == "" {
		closing = server.DefaultClosingMessage
	}

	rtClient.SetSessionOptions(realtime.SessionOptions{
		Instructions:   server.BuildSystemPrompt(projectCfg),
		Voice:          voice,
		WelcomeMessage: welcome,
		ClosingMessage: closing,
	})

	if err := manager.StartSession(sessionID, projectID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	token, err := issuer.Issue(ctx, voice)
	if err != nil {
		_ = manager.EndSession(ctx, storage.StatusAbandoned)
		return fmt.Errorf("issue session token: %w", err)
	}

	if err := rtClient.Connect(ctx, token); err != nil {
		_ = manager.EndSession(ctx, storage.StatusAbandoned)
		return fmt.Errorf("connect voice session: %w", err)
	}
	return nil
}

// buildSummarizer picks the preset router when presets are configured and
// falls back to the direct OpenAI summarizer otherwise. The second return is
// non-nil only for the preset variant.
func buildSummarizer(cfg config.Config, store *storage.SQLiteStore) (interview.Summarizer, *summary.Summarizer) {
	if len(cfg.Summarization.Presets) > 0 {
		factory := func(provider, model string) (llm.Client, error) {
			key := ""
			switch provider {
			case "openai":
				key = cfg.OpenAIAPIKey
			case "anthropic":
				key = cfg.AnthropicAPIKey
			case "gemini":
				key = cfg.GeminiAPIKey
			}
			if key == "" {
				return nil, fmt.Errorf("no API key configured for provider %q", provider)
			}
			return llm.NewClient(provider, key, model)
		}
		s := summary.New(cfg.Summarization, factory)
		return s, s
	}

	if cfg.OpenAIAPIKey != "" {
		return summary.NewOpenAI(cfg.OpenAIAPIKey, "gpt-4o-mini", store), nil
	}

	log.Println("warning: no summarizer configured, session summaries are disabled")
	return nil, nil
}

// sweepStaleSessions periodically abandons sessions that never ended, so a
// crashed browser or killed process cannot leave sessions active forever.
func sweepStaleSessions(ctx context.Context, store *storage.SQLiteStore, timeout time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := store.AbandonStaleSessions(time.Now().UTC().Add(-timeout))
			if err != nil {
				log.Printf("stale session sweep error: %v", err)
				continue
			}
			for _, id := range swept {
				log.Printf("abandoned stale session %s", id)
			}
		}
	}
}

// syncTranscripts mirrors exported transcript files to Google Drive. The
// export filename is the session ID, which keys the remote document.
func syncTranscripts(ctx context.Context, syncer *gdrive.Syncer, exportDir string) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries, err := os.ReadDir(exportDir)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Printf("gdrive sync error: %v", err)
				}
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
					continue
				}
				sessionID := strings.TrimSuffix(entry.Name(), ".md")
				if err := syncer.Sync(filepath.Join(exportDir, entry.Name()), sessionID); err != nil {
					log.Printf("gdrive sync error for %s: %v", sessionID, err)
				}
			}
		}
	}
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
