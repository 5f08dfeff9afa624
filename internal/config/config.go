package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Intervox environment variables.
const EnvPrefix = "INTERVOX_"

// Preset is one summarization style: prompts plus an optional model override.
type Preset struct {
	SystemPrompt string `yaml:"system_prompt"`
	UserTemplate string `yaml:"user_template"`
	Model        string `yaml:"model"`
	Description  string `yaml:"description"`
}

// Summarization configures post-interview summary generation.
type Summarization struct {
	Model   string            `yaml:"model"`
	Presets map[string]Preset `yaml:"presets"`
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string        `yaml:"listen_addr"`
	DBPath                string        `yaml:"db_path"`
	AudioDir              string        `yaml:"audio_dir"`
	ExportDir             string        `yaml:"export_dir"`
	RealtimeModel         string        `yaml:"realtime_model"`
	RealtimeBaseURL       string        `yaml:"realtime_base_url"`
	Voice                 string        `yaml:"voice"`
	SessionTimeout        string        `yaml:"session_timeout"`
	TokenRateLimit        int           `yaml:"token_rate_limit"`
	Summarization         Summarization `yaml:"summarization"`
	GDriveFolderID        string        `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string        `yaml:"google_credentials_file"`

	// Secrets come from env vars only and are never serialized to YAML.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "data/intervox.db",
		AudioDir:        "data/audio",
		ExportDir:       "data/transcripts",
		RealtimeModel:   "gpt-4o-realtime-preview-2024-12-17",
		RealtimeBaseURL: "https://api.openai.com/v1/realtime",
		Voice:           "alloy",
		SessionTimeout:  "1h",
		TokenRateLimit:  10,
		Summarization: Summarization{
			Model: "openai/gpt-4o-mini",
			Presets: map[string]Preset{
				"default": {
					SystemPrompt: "Je vat Nederlandse sollicitatie-interviews samen voor recruiters.",
					UserTemplate: "Vat dit interview van {{date}} samen in maximaal 300 woorden. Benoem sterke punten, aandachtspunten en een algemene indruk.\n\n{{transcript}}",
					Description:  "Algemene interviewsamenvatting",
				},
			},
		},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedSessionTimeout returns SessionTimeout as a time.Duration, falling
// back to one hour if the value is invalid. Sessions still active past this
// age are swept to abandoned.
func (c *Config) ParsedSessionTimeout() time.Duration {
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil {
		return time.Hour
	}
	return d
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "AUDIO_DIR"); v != "" {
		cfg.AudioDir = v
	}
	if v := os.Getenv(EnvPrefix + "EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := os.Getenv(EnvPrefix + "REALTIME_MODEL"); v != "" {
		cfg.RealtimeModel = v
	}
	if v := os.Getenv(EnvPrefix + "REALTIME_BASE_URL"); v != "" {
		cfg.RealtimeBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "VOICE"); v != "" {
		cfg.Voice = v
	}
	if v := os.Getenv(EnvPrefix + "SESSION_TIMEOUT"); v != "" {
		cfg.SessionTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "TOKEN_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && limit > 0 {
			cfg.TokenRateLimit = limit
		}
	}
	if v := os.Getenv(EnvPrefix + "SUMMARY_MODEL"); v != "" {
		cfg.Summarization.Model = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured, voice sessions are disabled. Set "+EnvPrefix+"OPENAI_API_KEY.")
	}
	if _, err := time.ParseDuration(cfg.SessionTimeout); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid session_timeout %q, using default 1h.", cfg.SessionTimeout))
	}
	if len(cfg.Summarization.Presets) == 0 {
		warnings = append(warnings, "No summarization presets configured, session summaries are disabled.")
	}

	return warnings
}
