package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/utils"
)

const (
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com"
	DefaultDeepSeekModel   = "deepseek-chat"

	maxErrorBody = 1 << 20
)

// RESTConfig selects one variant of the OpenAI-compatible streaming protocol.
type RESTConfig struct {
	Provider models.ProviderID
	BaseURL  string
	Model    string
	// Vision sends image attachments as content parts instead of dropping them.
	Vision bool
}

// RESTStream streams Chat Completions over raw HTTP + Server-Sent Events.
type RESTStream struct {
	cfg  RESTConfig
	http *http.Client
	log  *logrus.Logger
}

func NewRESTStream(cfg RESTConfig, hc *http.Client, log *logrus.Logger) *RESTStream {
	if hc == nil {
		// no client timeout: the request context bounds a stream
		hc = &http.Client{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &RESTStream{cfg: cfg, http: hc, log: log}
}

func NewOpenAI(baseURL, model string, hc *http.Client, log *logrus.Logger) *RESTStream {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return NewRESTStream(RESTConfig{Provider: models.ProviderOpenAI, BaseURL: baseURL, Model: model, Vision: true}, hc, log)
}

func NewDeepSeek(baseURL, model string, hc *http.Client, log *logrus.Logger) *RESTStream {
	if baseURL == "" {
		baseURL = DefaultDeepSeekBaseURL
	}
	if model == "" {
		model = DefaultDeepSeekModel
	}
	return NewRESTStream(RESTConfig{Provider: models.ProviderDeepSeek, BaseURL: baseURL, Model: model}, hc, log)
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wirePart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *RESTStream) Stream(ctx context.Context, conversation []models.Message, systemInstruction string, creds Credentials) (<-chan string, <-chan error) {
	op := "RESTStream.Stream(" + string(a.cfg.Provider) + ")"

	key := strings.TrimSpace(creds[a.cfg.Provider])
	if key == "" {
		return failed(utils.E(utils.CodeFailedPrecondition, op, fmt.Sprintf("%s API key is not configured", a.cfg.Provider), nil))
	}

	body, err := json.Marshal(a.buildRequest(conversation, systemInstruction))
	if err != nil {
		return failed(utils.E(utils.CodeInternal, op, "failed to encode request", err))
	}

	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		defer recoverInto(errs, op)

		if err := a.run(ctx, op, key, body, out); err != nil {
			errs <- err
		}
	}()

	return out, errs
}

func (a *RESTStream) buildRequest(conversation []models.Message, systemInstruction string) chatRequest {
	msgs := make([]wireMessage, 0, len(conversation)+1)
	msgs = append(msgs, wireMessage{Role: "system", Content: systemInstruction})
	for _, m := range conversation {
		if a.cfg.Vision && m.HasImage() {
			msgs = append(msgs, wireMessage{Role: string(m.Role), Content: []wirePart{
				{Type: "text", Text: m.Content},
				{Type: "image_url", ImageURL: &wireImageURL{URL: asDataURL(m.Image)}},
			}})
			continue
		}
		msgs = append(msgs, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return chatRequest{Model: a.cfg.Model, Messages: msgs, Stream: true}
}

func (a *RESTStream) run(ctx context.Context, op, key string, body []byte, out chan<- string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := a.http.Do(req)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, fmt.Sprintf("%s request failed", a.cfg.Provider), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return utils.E(classifyStatus(resp.StatusCode), op,
			fmt.Sprintf("%s API error (HTTP %d)", a.cfg.Provider, resp.StatusCode), errors.New(text))
	}

	r := bufio.NewReaderSize(resp.Body, 64*1024)
	for {
		line, rerr := r.ReadString('\n')
		if line != "" {
			done, err := a.handleLine(ctx, op, line, out)
			if err != nil || done {
				return err
			}
		}
		if rerr == io.EOF {
			// some servers close without [DONE]
			return nil
		}
		if rerr != nil {
			return utils.E(utils.CodeUnavailable, op, "stream read failed", rerr)
		}
	}
}

// handleLine processes one SSE line. It reports done on the [DONE] marker.
func (a *RESTStream) handleLine(ctx context.Context, op, line string, out chan<- string) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return false, nil
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "[DONE]" {
		return true, nil
	}
	if data == "" {
		return false, nil
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		a.log.WithFields(logrus.Fields{"provider": a.cfg.Provider, "frame": truncate(data, 120)}).
			Debug("skipping undecodable stream frame")
		return false, nil
	}
	if chunk.Error != nil {
		return false, utils.E(utils.CodeUnavailable, op, fmt.Sprintf("%s stream error", a.cfg.Provider), errors.New(chunk.Error.Message))
	}
	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return false, nil
	}
	if !send(ctx, out, chunk.Choices[0].Delta.Content) {
		return false, utils.E(utils.CodeTimeout, op, "stream aborted", ctx.Err())
	}
	return false, nil
}

func classifyStatus(status int) utils.Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return utils.CodeUnauthorized
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return utils.CodeInvalidArgument
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return utils.CodeTimeout
	default:
		return utils.CodeUnavailable
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
