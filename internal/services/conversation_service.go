package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/providers/llm"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/utils"
)

// Streamer is satisfied by *llm.Normalizer.
type Streamer interface {
	StreamResponse(ctx context.Context, messages []models.Message, settings models.Settings, cb llm.Callbacks)
}

// TitleJob asks for a title derived from a session's first message.
type TitleJob struct {
	SessionID    string
	FirstMessage string
	Provider     models.ProviderID
}

// TitleScheduler runs title jobs off the turn goroutine.
type TitleScheduler interface {
	Schedule(job TitleJob)
}

type SendRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
}

// Turn describes a send that was accepted; the reply streams in afterwards.
type Turn struct {
	SessionID   string           `json:"session_id"`
	UserMessage models.Message   `json:"user_message"`
	Placeholder models.Message   `json:"placeholder"`
	Context     []models.Message `json:"-"`
}

type ConversationService interface {
	Send(ctx context.Context, req SendRequest) (*Turn, error)
	InFlight(sessionID string) bool
	AwaitingResponse() bool
	// Wait blocks until every accepted turn has reached a terminal state.
	Wait()
}

type conversationService struct {
	sessions SessionService
	settings SettingsService
	streamer Streamer
	titles   TitleScheduler
	bus      pubsub.Bus
	log      *logrus.Logger

	// turns outlive the request that started them; base is cancelled only
	// on shutdown
	base context.Context

	mu       sync.Mutex
	inFlight map[string]string // session id -> placeholder id
	seq      atomic.Int64
	wg       sync.WaitGroup
}

func NewConversationService(
	base context.Context,
	sessions SessionService,
	settings SettingsService,
	streamer Streamer,
	titles TitleScheduler,
	bus pubsub.Bus,
	log *logrus.Logger,
) ConversationService {
	if base == nil {
		base = context.Background()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &conversationService{
		sessions: sessions,
		settings: settings,
		streamer: streamer,
		titles:   titles,
		bus:      bus,
		log:      log,
		base:     base,
		inFlight: map[string]string{},
	}
}

func (s *conversationService) Send(ctx context.Context, req SendRequest) (*Turn, error) {
	const op = "ConversationService.Send"

	if req.SessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if strings.TrimSpace(req.Text) == "" && req.Image == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message text or image is required", nil)
	}
	if _, err := s.sessions.Get(req.SessionID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   req.Text,
		Image:     req.Image,
		CreatedAt: now,
	}
	placeholder := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		CreatedAt: now,
	}

	if !s.claim(req.SessionID, placeholder.ID) {
		return nil, utils.E(utils.CodeConflict, op, "a reply is still streaming in this session", nil)
	}

	convo, err := s.sessions.BeginTurn(req.SessionID, user, placeholder)
	if err != nil {
		s.release(req.SessionID, placeholder.ID)
		return nil, err
	}
	settings := s.settings.Get()

	s.publish(models.TurnEvent{Type: models.EventUserMessage, SessionID: req.SessionID, MessageID: user.ID, Message: &user})
	s.publish(models.TurnEvent{Type: models.EventPlaceholder, SessionID: req.SessionID, MessageID: placeholder.ID, Message: &placeholder})

	turn := &Turn{SessionID: req.SessionID, UserMessage: user, Placeholder: placeholder, Context: convo}

	s.wg.Add(1)
	go s.stream(turn, settings)

	return turn, nil
}

func (s *conversationService) stream(turn *Turn, settings models.Settings) {
	defer s.wg.Done()
	defer s.release(turn.SessionID, turn.Placeholder.ID)

	sessionID, messageID := turn.SessionID, turn.Placeholder.ID
	log := s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"message_id": messageID,
		"provider":   settings.ActiveProvider,
	})

	s.streamer.StreamResponse(s.base, turn.Context, settings, llm.Callbacks{
		OnChunk: func(text string) {
			if !s.sessions.AppendChunk(sessionID, messageID, text) {
				return
			}
			s.publish(models.TurnEvent{Type: models.EventChunk, SessionID: sessionID, MessageID: messageID, Text: text})
		},
		OnComplete: func(fullText string) {
			s.release(sessionID, messageID)

			ev := models.TurnEvent{Type: models.EventComplete, SessionID: sessionID, MessageID: messageID, Text: fullText}
			if m, ok := s.sessions.Message(sessionID, messageID); ok {
				ev.Message = &m
			}
			s.publish(ev)

			if len(turn.Context) == 1 && s.titles != nil {
				s.titles.Schedule(TitleJob{
					SessionID:    sessionID,
					FirstMessage: turn.Context[0].Content,
					Provider:     settings.ActiveProvider,
				})
			}
		},
		OnError: func(err error) {
			s.release(sessionID, messageID)
			log.WithError(err).Warn("turn failed")

			text := "Error: " + utils.UserMessage(err)
			if !s.sessions.FailMessage(sessionID, messageID, text) {
				return
			}
			s.publish(models.TurnEvent{Type: models.EventError, SessionID: sessionID, MessageID: messageID, Error: text})
		},
	})
}

func (s *conversationService) InFlight(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[sessionID]
	return ok
}

func (s *conversationService) AwaitingResponse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight) > 0
}

func (s *conversationService) Wait() { s.wg.Wait() }

func (s *conversationService) claim(sessionID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = messageID
	return true
}

// release clears the session's flag only if it still belongs to messageID.
func (s *conversationService) release(sessionID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sessionID] == messageID {
		delete(s.inFlight, sessionID)
	}
}

func (s *conversationService) publish(ev models.TurnEvent) {
	if s.bus == nil {
		return
	}
	ev.Seq = s.seq.Add(1)
	ev.At = time.Now().UTC()
	if err := s.bus.Publish(s.base, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"session_id": ev.SessionID, "type": ev.Type}).Warn("publish failed")
	}
}
