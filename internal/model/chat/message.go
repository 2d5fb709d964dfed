package chat

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Storable reports whether the role may appear in a session history.
// System prompts are injected per completion call and never stored.
func (r Role) Storable() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversation turn.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// UserMessage builds an unsaved user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
