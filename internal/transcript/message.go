package transcript

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message.
type Role string

const (
	RoleAI          Role = "ai"
	RoleParticipant Role = "participant"
)

// Message is one entry in the conversation transcript. Sequence numbers are
// assigned when the entry is appended and never change afterwards, so the
// display order is stable even when content arrives out of order.
type Message struct {
	ID             string    `json:"id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	IsComplete     bool      `json:"isComplete"`
	SequenceNumber int       `json:"sequenceNumber"`
	Timestamp      time.Time `json:"timestamp"`
}

// FormatMarkdown renders the message as a transcript line with a local
// timestamp and a Dutch speaker label.
func (m Message) FormatMarkdown() string {
	label := "Interviewer"
	if m.Role == RoleParticipant {
		label = "Deelnemer"
	}
	return fmt.Sprintf("**[%s] %s:** %s", m.Timestamp.Local().Format("15:04:05"), label, m.Content)
}

func newMessage(role Role, content string, complete bool, sequence int) Message {
	return Message{
		ID:             uuid.NewString(),
		Role:           role,
		Content:        content,
		IsComplete:     complete,
		SequenceNumber: sequence,
		Timestamp:      time.Now().UTC(),
	}
}
