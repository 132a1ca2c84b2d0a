package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/storage"
	"github.com/yoockh/yoochat/internal/utils"
)

// SessionService owns the ordered list of chat sessions (newest first).
// Writers address sessions and messages by id only; a missing target makes
// the write a no-op so a deleted session is never brought back.
type SessionService interface {
	Load(ctx context.Context) error
	Save(ctx context.Context) error
	Snapshot() ([]byte, error)
	OnChange(fn func())

	Create(provider models.ProviderID) models.ChatSession
	List() []models.ChatSession
	Get(sessionID string) (models.ChatSession, error)
	Delete(sessionID string) error
	Rename(sessionID, title string) (models.ChatSession, error)

	// BeginTurn appends the user message and the empty assistant placeholder
	// and returns the provider context: the prior messages plus the user
	// message, without the placeholder.
	BeginTurn(sessionID string, user, placeholder models.Message) ([]models.Message, error)
	AppendChunk(sessionID, messageID, text string) bool
	FailMessage(sessionID, messageID, text string) bool
	SetTitle(sessionID, title string) bool
	Message(sessionID, messageID string) (models.Message, bool)
}

type sessionService struct {
	store storage.BlobStore

	mu       sync.RWMutex
	sessions []*models.ChatSession
	changed  func()
}

func NewSessionService(store storage.BlobStore) SessionService {
	return &sessionService{store: store}
}

func (s *sessionService) OnChange(fn func()) {
	s.mu.Lock()
	s.changed = fn
	s.mu.Unlock()
}

func (s *sessionService) Load(ctx context.Context) error {
	const op = "SessionService.Load"

	raw, err := s.store.Get(ctx, storage.KeySessions)
	if errors.Is(err, utils.ErrNotFound) {
		return nil
	}
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to read sessions", err)
	}

	var list []models.ChatSession
	if err := json.Unmarshal(raw, &list); err != nil {
		return utils.E(utils.CodeInternal, op, "stored sessions are not valid JSON", err)
	}

	loaded := make([]*models.ChatSession, 0, len(list))
	for i := range list {
		cs := list[i]
		if cs.ID == "" {
			continue
		}
		if cs.Messages == nil {
			cs.Messages = []models.Message{}
		}
		loaded = append(loaded, &cs)
	}

	s.mu.Lock()
	s.sessions = loaded
	s.mu.Unlock()
	return nil
}

func (s *sessionService) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]models.ChatSession, 0, len(s.sessions))
	for _, cs := range s.sessions {
		list = append(list, *cs)
	}
	return json.Marshal(list)
}

func (s *sessionService) Save(ctx context.Context) error {
	const op = "SessionService.Save"

	raw, err := s.Snapshot()
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode sessions", err)
	}
	if err := s.store.Put(ctx, storage.KeySessions, raw); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to write sessions", err)
	}
	return nil
}

func (s *sessionService) Create(provider models.ProviderID) models.ChatSession {
	now := time.Now().UTC()
	cs := &models.ChatSession{
		ID:        uuid.NewString(),
		Title:     models.DefaultTitle,
		Messages:  []models.Message{},
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions = append([]*models.ChatSession{cs}, s.sessions...)
	out := cs.Clone()
	s.mu.Unlock()

	s.notify()
	return out
}

func (s *sessionService) List() []models.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ChatSession, 0, len(s.sessions))
	for _, cs := range s.sessions {
		out = append(out, cs.Clone())
	}
	return out
}

func (s *sessionService) Get(sessionID string) (models.ChatSession, error) {
	const op = "SessionService.Get"

	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.find(sessionID)
	if cs == nil {
		return models.ChatSession{}, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	return cs.Clone(), nil
}

func (s *sessionService) Delete(sessionID string) error {
	const op = "SessionService.Delete"

	s.mu.Lock()
	idx := -1
	for i, cs := range s.sessions {
		if cs.ID == sessionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	s.mu.Unlock()

	s.notify()
	return nil
}

func (s *sessionService) Rename(sessionID, title string) (models.ChatSession, error) {
	const op = "SessionService.Rename"

	title = strings.TrimSpace(title)
	if title == "" {
		return models.ChatSession{}, utils.E(utils.CodeInvalidArgument, op, "title is required", nil)
	}

	s.mu.Lock()
	cs := s.find(sessionID)
	if cs == nil {
		s.mu.Unlock()
		return models.ChatSession{}, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	cs.Title = title
	cs.UpdatedAt = time.Now().UTC()
	out := cs.Clone()
	s.mu.Unlock()

	s.notify()
	return out, nil
}

func (s *sessionService) BeginTurn(sessionID string, user, placeholder models.Message) ([]models.Message, error) {
	const op = "SessionService.BeginTurn"

	s.mu.Lock()
	cs := s.find(sessionID)
	if cs == nil {
		s.mu.Unlock()
		return nil, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	if cs.IndexOf(placeholder.ID) >= 0 || cs.IndexOf(user.ID) >= 0 {
		s.mu.Unlock()
		return nil, utils.E(utils.CodeConflict, op, "message id already used in this session", nil)
	}

	convo := make([]models.Message, 0, len(cs.Messages)+1)
	convo = append(convo, cs.Messages...)
	convo = append(convo, user)

	cs.Messages = append(cs.Messages, user, placeholder)
	cs.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.notify()
	return convo, nil
}

func (s *sessionService) AppendChunk(sessionID, messageID, text string) bool {
	return s.patch(sessionID, messageID, func(m *models.Message) {
		m.Content += text
	})
}

func (s *sessionService) FailMessage(sessionID, messageID, text string) bool {
	return s.patch(sessionID, messageID, func(m *models.Message) {
		m.Content = text
		m.IsError = true
	})
}

func (s *sessionService) SetTitle(sessionID, title string) bool {
	s.mu.Lock()
	cs := s.find(sessionID)
	if cs == nil {
		s.mu.Unlock()
		return false
	}
	cs.Title = title
	cs.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *sessionService) Message(sessionID, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs := s.find(sessionID)
	if cs == nil {
		return models.Message{}, false
	}
	i := cs.IndexOf(messageID)
	if i < 0 {
		return models.Message{}, false
	}
	return cs.Messages[i], true
}

func (s *sessionService) patch(sessionID, messageID string, fn func(m *models.Message)) bool {
	s.mu.Lock()
	cs := s.find(sessionID)
	if cs == nil {
		s.mu.Unlock()
		return false
	}
	i := cs.IndexOf(messageID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	fn(&cs.Messages[i])
	cs.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	s.notify()
	return true
}

// find must be called with mu held.
func (s *sessionService) find(sessionID string) *models.ChatSession {
	for _, cs := range s.sessions {
		if cs.ID == sessionID {
			return cs
		}
	}
	return nil
}

func (s *sessionService) notify() {
	s.mu.RLock()
	fn := s.changed
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
