package chat

import "time"

// Session captures a transient anonymous conversation.
type Session struct {
	ID         string    `json:"id"`
	PersonaKey string    `json:"personaKey"`
	History    []Message `json:"history"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}
