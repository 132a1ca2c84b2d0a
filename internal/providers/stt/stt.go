package stt

import (
	"context"
	"strings"
)

// Transcription is the best recognition alternative for a dictation clip.
type Transcription struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (Transcription, error)
	Close() error
}

// NormalizeLanguage maps short codes to BCP-47 tags; empty means en-US.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "":
		return "en-US"
	case "id", "id-id":
		return "id-ID"
	case "en", "en-us":
		return "en-US"
	case "en-gb":
		return "en-GB"
	default:
		return v
	}
}
