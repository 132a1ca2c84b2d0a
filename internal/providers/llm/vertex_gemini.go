package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/utils"
)

const DefaultGeminiModel = "gemini-1.5-flash"

// responseIterator is satisfied by *vertexgenai.GenerateContentResponseIterator.
type responseIterator interface {
	Next() (*vertexgenai.GenerateContentResponse, error)
}

// VertexGemini is the SDK-backed adapter. Credentials come from the process
// environment (application default credentials), never from Settings.
type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string

	// overridable in tests
	sendStream func(ctx context.Context, systemInstruction string, history []*vertexgenai.Content, parts []vertexgenai.Part) responseIterator
	generate   func(ctx context.Context, prompt string) (*vertexgenai.GenerateContentResponse, error)
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	v := &VertexGemini{client: c, modelName: modelName}
	v.sendStream = v.chatStream
	v.generate = v.generateOnce
	return v, nil
}

func (v *VertexGemini) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}

func (v *VertexGemini) chatStream(ctx context.Context, systemInstruction string, history []*vertexgenai.Content, parts []vertexgenai.Part) responseIterator {
	m := v.client.GenerativeModel(v.modelName)
	if systemInstruction != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(systemInstruction)}}
	}
	cs := m.StartChat()
	cs.History = history
	return cs.SendMessageStream(ctx, parts...)
}

func (v *VertexGemini) generateOnce(ctx context.Context, prompt string) (*vertexgenai.GenerateContentResponse, error) {
	return v.client.GenerativeModel(v.modelName).GenerateContent(ctx, vertexgenai.Text(prompt))
}

func (v *VertexGemini) Stream(ctx context.Context, conversation []models.Message, systemInstruction string, _ Credentials) (<-chan string, <-chan error) {
	const op = "VertexGemini.Stream"

	if len(conversation) == 0 {
		return failed(utils.E(utils.CodeInvalidArgument, op, "conversation is empty", nil))
	}

	history := make([]*vertexgenai.Content, 0, len(conversation)-1)
	for _, m := range conversation[:len(conversation)-1] {
		c, err := toGeminiContent(m)
		if err != nil {
			return failed(utils.E(utils.CodeInvalidArgument, op, "invalid image attachment", err))
		}
		history = append(history, c)
	}
	turn, err := toGeminiContent(conversation[len(conversation)-1])
	if err != nil {
		return failed(utils.E(utils.CodeInvalidArgument, op, "invalid image attachment", err))
	}

	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)
		defer recoverInto(errs, op)

		it := v.sendStream(ctx, systemInstruction, history, turn.Parts)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- utils.E(utils.CodeUnavailable, op, "gemini request failed", err)
				return
			}

			if t := responseText(resp); t != "" {
				if !send(ctx, out, t) {
					errs <- utils.E(utils.CodeTimeout, op, "stream aborted", ctx.Err())
					return
				}
			}
		}
	}()

	return out, errs
}

// GenerateText issues one non-streaming request, used for chat titles.
func (v *VertexGemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	const op = "VertexGemini.GenerateText"

	resp, err := v.generate(ctx, prompt)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "gemini request failed", err)
	}
	return responseText(resp), nil
}

// toGeminiContent maps one chat message to role + parts; the image part, when
// present, comes before the text.
func toGeminiContent(m models.Message) (*vertexgenai.Content, error) {
	role := "user"
	if m.Role == models.RoleAssistant {
		role = "model"
	}

	var parts []vertexgenai.Part
	if m.HasImage() {
		mime, data, err := parseDataURL(m.Image)
		if err != nil {
			return nil, err
		}
		parts = append(parts, vertexgenai.Blob{MIMEType: mime, Data: data})
	}
	if m.Content != "" || len(parts) == 0 {
		parts = append(parts, vertexgenai.Text(m.Content))
	}
	return &vertexgenai.Content{Role: role, Parts: parts}, nil
}

func responseText(resp *vertexgenai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}
