package llm

import (
	"context"
	"errors"
	"testing"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/utils"
)

type fakeIterator struct {
	resps []*vertexgenai.GenerateContentResponse
	err   error
}

func (f *fakeIterator) Next() (*vertexgenai.GenerateContentResponse, error) {
	if len(f.resps) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, iterator.Done
	}
	r := f.resps[0]
	f.resps = f.resps[1:]
	return r, nil
}

func textResponse(parts ...string) *vertexgenai.GenerateContentResponse {
	ps := make([]vertexgenai.Part, 0, len(parts))
	for _, p := range parts {
		ps = append(ps, vertexgenai.Text(p))
	}
	return &vertexgenai.GenerateContentResponse{
		Candidates: []*vertexgenai.Candidate{{Content: &vertexgenai.Content{Role: "model", Parts: ps}}},
	}
}

type geminiCall struct {
	system  string
	history []*vertexgenai.Content
	parts   []vertexgenai.Part
}

func fakeGemini(it responseIterator, call *geminiCall) *VertexGemini {
	v := &VertexGemini{modelName: "test-model"}
	v.sendStream = func(_ context.Context, sys string, history []*vertexgenai.Content, parts []vertexgenai.Part) responseIterator {
		*call = geminiCall{system: sys, history: history, parts: parts}
		return it
	}
	return v
}

func TestVertexGemini_SplitsHistoryAndTurn(t *testing.T) {
	var call geminiCall
	v := fakeGemini(&fakeIterator{resps: []*vertexgenai.GenerateContentResponse{
		textResponse("Hel"), textResponse(""), textResponse("lo", "!"),
	}}, &call)

	conv := []models.Message{
		{ID: "1", Role: models.RoleUser, Content: "look", Image: "data:image/png;base64,aGVsbG8="},
		{ID: "2", Role: models.RoleAssistant, Content: "a cat"},
		{ID: "3", Role: models.RoleUser, Content: "and now?"},
	}

	got, err := drain(v.Stream(context.Background(), conv, "sys prompt", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo!"}, got)

	assert.Equal(t, "sys prompt", call.system)
	require.Len(t, call.history, 2)

	assert.Equal(t, "user", call.history[0].Role)
	require.Len(t, call.history[0].Parts, 2)
	assert.Equal(t, vertexgenai.Blob{MIMEType: "image/png", Data: []byte("hello")}, call.history[0].Parts[0])
	assert.Equal(t, vertexgenai.Text("look"), call.history[0].Parts[1])

	assert.Equal(t, "model", call.history[1].Role)
	assert.Equal(t, []vertexgenai.Part{vertexgenai.Text("a cat")}, call.history[1].Parts)

	assert.Equal(t, []vertexgenai.Part{vertexgenai.Text("and now?")}, call.parts)
}

func TestVertexGemini_IteratorError(t *testing.T) {
	var call geminiCall
	v := fakeGemini(&fakeIterator{
		resps: []*vertexgenai.GenerateContentResponse{textResponse("partial")},
		err:   errors.New("quota exceeded"),
	}, &call)

	got, err := drain(v.Stream(context.Background(), []models.Message{userMsg("hi")}, "", nil))
	require.Error(t, err)
	assert.Equal(t, []string{"partial"}, got)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestVertexGemini_BadImageFailsBeforeRequest(t *testing.T) {
	var call geminiCall
	v := fakeGemini(&fakeIterator{}, &call)

	conv := []models.Message{{ID: "1", Role: models.RoleUser, Content: "x", Image: "data:image/png;base64,@@@"}}
	got, err := drain(v.Stream(context.Background(), conv, "", nil))
	require.Error(t, err)
	assert.Empty(t, got)
	assert.Nil(t, call.parts)
}

func TestVertexGemini_AdapterPanicBecomesError(t *testing.T) {
	v := &VertexGemini{modelName: "m"}
	v.sendStream = func(context.Context, string, []*vertexgenai.Content, []vertexgenai.Part) responseIterator {
		panic("sdk exploded")
	}

	_, err := drain(v.Stream(context.Background(), []models.Message{userMsg("hi")}, "", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sdk exploded")
}

func TestVertexGemini_GenerateText(t *testing.T) {
	v := &VertexGemini{modelName: "m"}
	v.generate = func(_ context.Context, prompt string) (*vertexgenai.GenerateContentResponse, error) {
		assert.Contains(t, prompt, "hello there")
		return textResponse("Greeting", " Exchange"), nil
	}

	out, err := v.GenerateText(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "Greeting Exchange", out)
}
