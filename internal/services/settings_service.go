package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/storage"
	"github.com/yoockh/yoochat/internal/utils"
)

type SettingsService interface {
	Load(ctx context.Context) error
	Get() models.Settings
	Update(ctx context.Context, next models.Settings) (models.Settings, error)
}

type settingsService struct {
	store storage.BlobStore

	mu      sync.RWMutex
	current models.Settings
}

func NewSettingsService(store storage.BlobStore) SettingsService {
	return &settingsService{store: store, current: models.DefaultSettings()}
}

// Load reads the persisted settings; a missing blob keeps the defaults.
func (s *settingsService) Load(ctx context.Context) error {
	const op = "SettingsService.Load"

	raw, err := s.store.Get(ctx, storage.KeySettings)
	if errors.Is(err, utils.ErrNotFound) {
		return nil
	}
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to read settings", err)
	}

	loaded := models.DefaultSettings()
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return utils.E(utils.CodeInternal, op, "stored settings are not valid JSON", err)
	}
	if !loaded.ActiveProvider.Valid() {
		loaded.ActiveProvider = models.ProviderGemini
	}
	if loaded.APIKeys == nil {
		loaded.APIKeys = map[models.ProviderID]string{}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return nil
}

func (s *settingsService) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Update validates and persists next. encoding/json sorts map keys, so
// saving unchanged settings writes identical bytes.
func (s *settingsService) Update(ctx context.Context, next models.Settings) (models.Settings, error) {
	const op = "SettingsService.Update"

	if !next.ActiveProvider.Valid() {
		return models.Settings{}, utils.E(utils.CodeInvalidArgument, op, "unknown provider: "+string(next.ActiveProvider), nil)
	}

	next = next.Clone()
	for p, k := range next.APIKeys {
		if !p.Valid() {
			return models.Settings{}, utils.E(utils.CodeInvalidArgument, op, "unknown provider in api keys: "+string(p), nil)
		}
		k = strings.TrimSpace(k)
		if k == "" || !p.RequiresAPIKey() {
			delete(next.APIKeys, p)
			continue
		}
		next.APIKeys[p] = k
	}
	if strings.TrimSpace(next.Profile.DisplayName) == "" {
		next.Profile.DisplayName = models.DefaultSettings().Profile.DisplayName
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return models.Settings{}, utils.E(utils.CodeInternal, op, "failed to encode settings", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Put(ctx, storage.KeySettings, raw); err != nil {
		return models.Settings{}, utils.E(utils.CodeUnavailable, op, "failed to write settings", err)
	}
	s.current = next
	return next.Clone(), nil
}
