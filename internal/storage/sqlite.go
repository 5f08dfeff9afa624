package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/intervox/intervox/internal/transcript"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"

	SummaryPending   = "pending"
	SummaryRunning   = "running"
	SummaryCompleted = "completed"
	SummaryFailed    = "failed"
)

const (
	// maxMessageLength caps stored transcript content.
	maxMessageLength = 10000

	// dedupWindow is how recently an identical message must have been stored
	// for a new one to be treated as a duplicate delivery.
	dedupWindow = 10 * time.Second
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectConfig holds the interview settings for one project.
type ProjectConfig struct {
	ProjectID      string `json:"project_id"`
	SystemPrompt   string `json:"system_prompt"`
	WelcomeMessage string `json:"welcome_message"`
	ClosingMessage string `json:"closing_message"`
	ToneOfVoice    string `json:"tone_of_voice"`
	MaxQuestions   int    `json:"max_questions"`
	Voice          string `json:"voice"`
	Language       string `json:"language"`
}

type Session struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Status        string     `json:"status"`
	Summary       string     `json:"summary"`
	SummaryStatus string     `json:"summary_status"`
	SummaryPreset string     `json:"summary_preset"`
	AudioPath     string     `json:"audio_path"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "intervox.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create projects table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS project_config (
			project_id TEXT PRIMARY KEY,
			system_prompt TEXT NOT NULL DEFAULT '',
			welcome_message TEXT NOT NULL DEFAULT '',
			closing_message TEXT NOT NULL DEFAULT '',
			tone_of_voice TEXT NOT NULL DEFAULT '',
			max_questions INTEGER NOT NULL DEFAULT 10,
			voice TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT 'nl',
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create project_config table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			summary_status TEXT NOT NULL DEFAULT 'pending',
			summary_preset TEXT NOT NULL DEFAULT '',
			audio_path TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('ai', 'user')),
			content TEXT NOT NULL,
			sequence_number INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create transcripts table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS summary_requests (
			session_id TEXT NOT NULL,
			prompt_hash TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id, prompt_hash)
		);
	`); err != nil {
		return fmt.Errorf("create summary_requests table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id, started_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id, sequence_number)"); err != nil {
		return fmt.Errorf("create transcripts index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateProject(id, name string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("project id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO projects(id, name, created_at) VALUES(?, ?, ?)`,
		id,
		name,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create project %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetProject(id string) (Project, error) {
	row := s.db.QueryRow(`SELECT id, name, created_at FROM projects WHERE id = ?`, id)

	var p Project
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &createdAt); err != nil {
		return Project{}, fmt.Errorf("query project %s: %w", id, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Project{}, fmt.Errorf("parse project %s created_at: %w", id, err)
	}
	p.CreatedAt = parsed

	return p, nil
}

func (s *SQLiteStore) ListProjects() ([]Project, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := make([]Project, 0, 8)
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse project created_at: %w", err)
		}
		p.CreatedAt = parsed
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project rows: %w", err)
	}

	return projects, nil
}

func (s *SQLiteStore) UpsertProjectConfig(cfg ProjectConfig) error {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return errors.New("project id is required")
	}
	if cfg.Language == "" {
		cfg.Language = "nl"
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = 10
	}

	_, err := s.db.Exec(
		`INSERT INTO project_config(project_id, system_prompt, welcome_message, closing_message, tone_of_voice, max_questions, voice, language, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id) DO UPDATE SET
			system_prompt = excluded.system_prompt,
			welcome_message = excluded.welcome_message,
			closing_message = excluded.closing_message,
			tone_of_voice = excluded.tone_of_voice,
			max_questions = excluded.max_questions,
			voice = excluded.voice,
			language = excluded.language,
			updated_at = excluded.updated_at`,
		cfg.ProjectID,
		cfg.SystemPrompt,
		cfg.WelcomeMessage,
		cfg.ClosingMessage,
		cfg.ToneOfVoice,
		cfg.MaxQuestions,
		cfg.Voice,
		cfg.Language,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert config for project %s: %w", cfg.ProjectID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProjectConfig(projectID string) (ProjectConfig, error) {
	row := s.db.QueryRow(
		`SELECT project_id, system_prompt, welcome_message, closing_message, tone_of_voice, max_questions, voice, language
		 FROM project_config WHERE project_id = ?`,
		projectID,
	)

	var cfg ProjectConfig
	err := row.Scan(&cfg.ProjectID, &cfg.SystemPrompt, &cfg.WelcomeMessage, &cfg.ClosingMessage, &cfg.ToneOfVoice, &cfg.MaxQuestions, &cfg.Voice, &cfg.Language)
	if err != nil {
		return ProjectConfig{}, fmt.Errorf("query config for project %s: %w", projectID, err)
	}
	return cfg, nil
}

func (s *SQLiteStore) CreateSession(id, projectID string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions(id, project_id, started_at, status, summary_status) VALUES(?, ?, ?, ?, ?)`,
		id,
		projectID,
		startedAt.UTC().Format(time.RFC3339Nano),
		StatusActive,
		SummaryPending,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

// EndSession marks a session completed or abandoned. Ending an already ended
// session is not an error; the first terminal status wins.
func (s *SQLiteStore) EndSession(id, status string, endedAt time.Time, audioPath string) error {
	if status != StatusCompleted && status != StatusAbandoned {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, status = ?, audio_path = ? WHERE id = ? AND status = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		status,
		audioPath,
		id,
		StatusActive,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows affected: %w", err)
	}
	if rows == 0 {
		var existing string
		if scanErr := s.db.QueryRow(`SELECT status FROM sessions WHERE id = ?`, id).Scan(&existing); scanErr != nil {
			return sql.ErrNoRows
		}
		return nil
	}
	return nil
}

// AppendMessage stores one finalized transcript message. Blank content is
// skipped, over-long content is truncated and an identical message stored
// within the dedup window is treated as a duplicate delivery and dropped.
func (s *SQLiteStore) AppendMessage(sessionID string, msg transcript.Message) error {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return nil
	}
	if len(content) > maxMessageLength {
		content = content[:maxMessageLength]
	}

	role := "ai"
	if msg.Role == transcript.RoleParticipant {
		role = "user"
	}

	now := time.Now().UTC()
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append for session %s: %w", sessionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var duplicates int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM transcripts WHERE session_id = ? AND role = ? AND content = ? AND timestamp > ?`,
		sessionID,
		role,
		content,
		now.Add(-dedupWindow).Format(time.RFC3339Nano),
	).Scan(&duplicates)
	if err != nil {
		return fmt.Errorf("check duplicates for session %s: %w", sessionID, err)
	}
	if duplicates > 0 {
		return nil
	}

	var nextSeq int
	err = tx.QueryRow(
		`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM transcripts WHERE session_id = ?`,
		sessionID,
	).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("next sequence for session %s: %w", sessionID, err)
	}

	_, err = tx.Exec(
		`INSERT INTO transcripts(id, session_id, role, content, sequence_number, timestamp) VALUES(?, ?, ?, ?, ?, ?)`,
		id,
		sessionID,
		role,
		content,
		nextSeq,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append message for session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(sessionID string) ([]transcript.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, sequence_number, timestamp
		 FROM transcripts
		 WHERE session_id = ?
		 ORDER BY sequence_number ASC, timestamp ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	messages := make([]transcript.Message, 0, 32)
	for rows.Next() {
		var msg transcript.Message
		var role, ts string
		if err := rows.Scan(&msg.ID, &role, &msg.Content, &msg.SequenceNumber, &ts); err != nil {
			return nil, fmt.Errorf("scan message for session %s: %w", sessionID, err)
		}

		if role == "user" {
			msg.Role = transcript.RoleParticipant
		} else {
			msg.Role = transcript.RoleAI
		}
		msg.IsComplete = true

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse message timestamp for session %s: %w", sessionID, err)
		}
		msg.Timestamp = parsedTS

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows for session %s: %w", sessionID, err)
	}

	return messages, nil
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT id, project_id, started_at, ended_at, status, summary, summary_status, summary_preset, audio_path
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row.Scan)
	if err != nil {
		return Session{}, fmt.Errorf("query session %s: %w", id, err)
	}
	return sess, nil
}

func (s *SQLiteStore) GetSessionsByProject(projectID string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, started_at, ended_at, status, summary, summary_status, summary_preset, audio_path
		 FROM sessions
		 WHERE project_id = ?
		 ORDER BY started_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions for project %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]Session, 0, 16)
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions rows: %w", err)
	}

	return sessions, nil
}

// AbandonStaleSessions marks sessions still active after the cutoff as
// abandoned. Returns the IDs that were updated.
func (s *SQLiteStore) AbandonStaleSessions(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT id FROM sessions WHERE status = ? AND started_at < ?`,
		StatusActive,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("query stale sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale session rows: %w", err)
	}

	now := time.Now().UTC()
	for _, id := range ids {
		if err := s.EndSession(id, StatusAbandoned, now, ""); err != nil {
			return nil, fmt.Errorf("abandon session %s: %w", id, err)
		}
	}

	return ids, nil
}

func (s *SQLiteStore) UpdateSummary(sessionID, summary, status, preset string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET summary = ?, summary_status = ?, summary_preset = ? WHERE id = ?`,
		summary,
		status,
		preset,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("update summary for session %s: %w", sessionID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (s *SQLiteStore) ClaimSummaryRequest(sessionID, promptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO summary_requests(session_id, prompt_hash) VALUES(?, ?)`,
		sessionID,
		promptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim summary request for session %s: %w", sessionID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim summary rows affected: %w", err)
	}

	return rows > 0, nil
}

func scanSession(scan func(...any) error) (Session, error) {
	var sess Session
	var startedAt string
	var endedAt sql.NullString
	if err := scan(&sess.ID, &sess.ProjectID, &startedAt, &endedAt, &sess.Status, &sess.Summary, &sess.SummaryStatus, &sess.SummaryPreset, &sess.AudioPath); err != nil {
		return Session{}, err
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	sess.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &parsedEnd
	}

	return sess, nil
}
