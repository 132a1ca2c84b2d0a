package models

import "time"

const DefaultTitle = "New Chat"

type ChatSession struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Messages []Message  `json:"messages"`
	Provider ProviderID `json:"modelProvider"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no message storage with s.
func (s *ChatSession) Clone() ChatSession {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}

// IndexOf returns the position of the message with the given id, or -1.
func (s *ChatSession) IndexOf(messageID string) int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}
