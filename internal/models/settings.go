package models

const DefaultSystemInstruction = "You are a helpful, concise assistant. Format answers with Markdown when it improves readability."

type UserProfile struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Settings is the single persisted configuration object. Field order and
// encoding are stable so that saving unchanged settings yields identical bytes.
type Settings struct {
	ActiveProvider    ProviderID            `json:"activeProvider"`
	SystemInstruction string                `json:"systemInstruction"`
	APIKeys           map[ProviderID]string `json:"apiKeys"`
	Profile           UserProfile           `json:"userProfile"`

	// UI toggles, stored for the browser and otherwise unused.
	EnterToSend bool `json:"enterToSend"`
	DarkMode    bool `json:"darkMode"`
}

func DefaultSettings() Settings {
	return Settings{
		ActiveProvider:    ProviderGemini,
		SystemInstruction: DefaultSystemInstruction,
		APIKeys:           map[ProviderID]string{},
		Profile:           UserProfile{DisplayName: "User"},
		EnterToSend:       true,
	}
}

// APIKey returns the configured key for p, empty when unset.
func (s Settings) APIKey(p ProviderID) string {
	if s.APIKeys == nil {
		return ""
	}
	return s.APIKeys[p]
}

// Clone deep-copies the key map.
func (s Settings) Clone() Settings {
	out := s
	out.APIKeys = make(map[ProviderID]string, len(s.APIKeys))
	for k, v := range s.APIKeys {
		out.APIKeys[k] = v
	}
	return out
}
