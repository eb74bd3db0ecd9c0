package model

import (
	"fmt"
	"strings"
	"time"
)

// ChatMessage is a message of the chat channel with the external actor.
type ChatMessage struct {
	ID        int64     `json:"id"`
	FromUser  bool      `json:"from_user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Validate validates the message.
func (m ChatMessage) Validate() error {
	if strings.TrimSpace(m.Message) == "" {
		return fmt.Errorf("message is required: %w", ErrNotValid)
	}
	return nil
}
