package models

import "strings"

// ProviderID identifies one of the hosted model providers. The set is closed.
type ProviderID string

const (
	ProviderGemini   ProviderID = "gemini"   // Vertex AI SDK, credential from the environment
	ProviderOpenAI   ProviderID = "openai"   // REST streaming, vision-capable
	ProviderDeepSeek ProviderID = "deepseek" // REST streaming, text only
)

// Providers lists every supported provider in display order.
var Providers = []ProviderID{ProviderGemini, ProviderOpenAI, ProviderDeepSeek}

func ParseProvider(s string) (ProviderID, bool) {
	p := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

func (p ProviderID) Valid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderDeepSeek:
		return true
	}
	return false
}

// RequiresAPIKey reports whether sends through p need a key from Settings.APIKeys.
func (p ProviderID) RequiresAPIKey() bool {
	return p != ProviderGemini
}

func (p ProviderID) String() string { return string(p) }
