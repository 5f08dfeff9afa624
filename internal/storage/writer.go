package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/intervox/intervox/internal/transcript"
)

// Writer exports finished session transcripts as markdown files, one file
// per session, for archival and external sync.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Export writes the full transcript of a session, replacing any previous
// export for the same session.
func (w *Writer) Export(sess Session, messages []transcript.Message) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Interview %s\n\n", sess.ID)
	fmt.Fprintf(&b, "- Project: %s\n", sess.ProjectID)
	fmt.Fprintf(&b, "- Gestart: %s\n", sess.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if sess.EndedAt != nil {
		fmt.Fprintf(&b, "- Beëindigd: %s\n", sess.EndedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "- Status: %s\n\n", sess.Status)

	for _, msg := range messages {
		b.WriteString(msg.FormatMarkdown())
		b.WriteString("\n")
	}

	if sess.Summary != "" {
		b.WriteString("\n## Samenvatting\n\n")
		b.WriteString(sess.Summary)
		b.WriteString("\n")
	}

	path := w.Path(sess.ID)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

// Path returns where the export for a session lives.
func (w *Writer) Path(sessionID string) string {
	return filepath.Join(w.dir, sessionID+".md")
}
