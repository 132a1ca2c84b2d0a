package models

import "time"

type EventType string

const (
	EventUserMessage    EventType = "user_message"
	EventPlaceholder    EventType = "placeholder"
	EventChunk          EventType = "chunk"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
	EventTitle          EventType = "title"
	EventSessionDeleted EventType = "session_deleted"
)

// TurnEvent is pushed to browsers watching a session.
type TurnEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id,omitempty"`
	Seq       int64     `json:"seq,omitempty"`
	Text      string    `json:"text,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// EventChannel is the pub/sub channel carrying a session's turn events.
func EventChannel(sessionID string) string {
	return "session:" + sessionID + ":events"
}
