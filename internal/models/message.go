package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat bubble. Content of an assistant placeholder grows by
// append while its turn streams and is fixed once the turn completes or fails.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`

	// Image is a data URL ("data:image/png;base64,...") attached by the user.
	Image string `json:"image,omitempty"`

	IsError bool `json:"isError,omitempty"`
}

func (m Message) HasImage() bool { return m.Image != "" }
