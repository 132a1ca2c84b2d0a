package storage

import (
	"context"
)

// Blob keys used by the chat client.
const (
	KeySessions = "chat_sessions"
	KeySettings = "chat_settings"
)

// BlobStore keeps named JSON documents. Get returns utils.ErrNotFound when the
// key has never been written.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
