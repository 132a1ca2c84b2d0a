package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoochat/internal/logger"
	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/providers/llm"
	"github.com/yoockh/yoochat/internal/providers/stt"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/storage"
	"github.com/yoockh/yoochat/internal/utils"
)

// echoAdapter streams the last message back one word at a time.
type echoAdapter struct{}

func (echoAdapter) Stream(_ context.Context, conversation []models.Message, _ string, _ llm.Credentials) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		for i, w := range strings.Fields(conversation[len(conversation)-1].Content) {
			if i > 0 {
				w = " " + w
			}
			out <- w
		}
	}()
	return out, errs
}

type fakeTranscriber struct {
	got []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, language string) (stt.Transcription, error) {
	f.got = audio
	return stt.Transcription{Text: "hello there", Confidence: 0.8, Language: stt.NormalizeLanguage(language)}, nil
}

func (f *fakeTranscriber) Close() error { return nil }

type testServer struct {
	engine       *gin.Engine
	sessions     services.SessionService
	settings     services.SettingsService
	conversation services.ConversationService
	transcriber  *fakeTranscriber
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Discard()
	store := storage.NewMemoryStore()
	bus := pubsub.NewMemoryBus(log)
	sessions := services.NewSessionService(store)
	settings := services.NewSettingsService(store)
	normalizer := llm.NewNormalizer(map[models.ProviderID]llm.Adapter{
		models.ProviderGemini: echoAdapter{},
		models.ProviderOpenAI: llm.NewOpenAI("http://127.0.0.1:1", "", nil, log),
	}, log)
	conversation := services.NewConversationService(context.Background(), sessions, settings, normalizer, nil, bus, log)
	tr := &fakeTranscriber{}

	r := gin.New()
	session := NewSessionHandler(sessions, settings, bus, log)
	settingsH := NewSettingsHandler(settings)
	convo := NewConversationHandler(conversation)
	events := NewEventsHandler(sessions, bus)

	r.GET("/settings", settingsH.Get)
	r.PUT("/settings", settingsH.Update)
	r.GET("/sessions", session.List)
	r.POST("/sessions", session.Create)
	r.GET("/sessions/:session_id", session.Get)
	r.PATCH("/sessions/:session_id", session.Rename)
	r.DELETE("/sessions/:session_id", session.Delete)
	r.POST("/sessions/:session_id/messages", convo.Send)
	r.GET("/sessions/:session_id/status", convo.Status)
	r.GET("/sessions/:session_id/events", events.Stream)
	r.POST("/dictation", NewDictationHandler(tr).Transcribe)

	return &testServer{engine: r, sessions: sessions, settings: settings, conversation: conversation, transcriber: tr}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSessionHandlers_CRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/sessions", map[string]string{"modelProvider": "deepseek"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.ChatSession](t, w)
	assert.Equal(t, models.ProviderDeepSeek, created.Provider)
	assert.Equal(t, models.DefaultTitle, created.Title)

	w = s.do(http.MethodPatch, "/sessions/"+created.ID, map[string]string{"title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", decode[models.ChatSession](t, w).Title)

	w = s.do(http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Sessions []models.ChatSession `json:"sessions"`
	}](t, w)
	require.Len(t, list.Sessions, 1)

	w = s.do(http.MethodDelete, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	apiErr := decode[APIError](t, w)
	assert.Equal(t, utils.CodeNotFound, apiErr.Code)
	assert.Equal(t, "session not found", apiErr.Message)
}

func TestSessionHandlers_RejectUnknownProvider(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/sessions", map[string]string{"modelProvider": "claude"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.ProviderGemini, decode[models.ChatSession](t, w).Provider)
}

func TestConversationHandler_SendStreamsReply(t *testing.T) {
	s := newTestServer(t)
	cs := s.sessions.Create(models.ProviderGemini)

	w := s.do(http.MethodPost, "/sessions/"+cs.ID+"/messages", SendMessageRequest{Text: "stream me back"})
	require.Equal(t, http.StatusAccepted, w.Code)
	turn := decode[services.Turn](t, w)
	assert.Equal(t, "stream me back", turn.UserMessage.Content)
	assert.Equal(t, models.RoleAssistant, turn.Placeholder.Role)
	assert.Empty(t, turn.Placeholder.Content)

	s.conversation.Wait()

	got, err := s.sessions.Get(cs.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "stream me back", got.Messages[1].Content)

	w = s.do(http.MethodGet, "/sessions/"+cs.ID+"/status", nil)
	assert.JSONEq(t, `{"session_id":"`+cs.ID+`","in_flight":false,"awaiting_response":false}`, w.Body.String())
}

func TestConversationHandler_Validation(t *testing.T) {
	s := newTestServer(t)
	cs := s.sessions.Create(models.ProviderGemini)

	w := s.do(http.MethodPost, "/sessions/"+cs.ID+"/messages", SendMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeInvalidArgument, decode[APIError](t, w).Code)

	w = s.do(http.MethodPost, "/sessions/nope/messages", SendMessageRequest{Text: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_MissingKeyBecomesErrorBubble(t *testing.T) {
	s := newTestServer(t)
	next := models.DefaultSettings()
	next.ActiveProvider = models.ProviderOpenAI
	_, err := s.settings.Update(context.Background(), next)
	require.NoError(t, err)
	cs := s.sessions.Create(models.ProviderOpenAI)

	w := s.do(http.MethodPost, "/sessions/"+cs.ID+"/messages", SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusAccepted, w.Code)
	s.conversation.Wait()

	got, err := s.sessions.Get(cs.ID)
	require.NoError(t, err)
	assert.True(t, got.Messages[1].IsError)
	assert.Equal(t, "Error: openai API key is not configured", got.Messages[1].Content)
}

func TestSettingsHandler_MasksKeysAndKeepsEchoedMask(t *testing.T) {
	s := newTestServer(t)

	body := models.DefaultSettings()
	body.ActiveProvider = models.ProviderOpenAI
	body.APIKeys[models.ProviderOpenAI] = "sk-live-1234567890abcd"
	w := s.do(http.MethodPut, "/settings", body)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.Settings](t, w)
	assert.Equal(t, "sk-****abcd", resp.APIKeys[models.ProviderOpenAI])

	w = s.do(http.MethodPut, "/settings", resp)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sk-live-1234567890abcd", s.settings.Get().APIKey(models.ProviderOpenAI))

	w = s.do(http.MethodGet, "/settings", nil)
	assert.Equal(t, "sk-****abcd", decode[models.Settings](t, w).APIKeys[models.ProviderOpenAI])

	body.ActiveProvider = "nope"
	w = s.do(http.MethodPut, "/settings", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDictationHandler(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "clip.wav")
	require.NoError(t, err)
	_, _ = fw.Write([]byte{1, 2, 3, 4})
	require.NoError(t, mw.WriteField("language", "id"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/dictation", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"text":"hello there","confidence":0.8,"language":"id-ID"}`, w.Body.String())
	assert.Equal(t, []byte{1, 2, 3, 4}, s.transcriber.got)

	w = s.do(http.MethodPost, "/dictation", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsHandler_StreamsTurnAsSSE(t *testing.T) {
	s := newTestServer(t)
	cs := s.sessions.Create(models.ProviderGemini)

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+cs.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	// the subscription is registered before headers are flushed
	sendBody, _ := json.Marshal(SendMessageRequest{Text: "Hi there"})
	post, err := http.Post(srv.URL+"/sessions/"+cs.ID+"/messages", "application/json", bytes.NewReader(sendBody))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusAccepted, post.StatusCode)

	var events []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "event:") {
			continue
		}
		name := strings.TrimPrefix(line, "event:")
		events = append(events, name)
		if name == string(models.EventComplete) {
			break
		}
	}
	assert.Equal(t, []string{"user_message", "placeholder", "chunk", "chunk", "complete"}, events)
}
