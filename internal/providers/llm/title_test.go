package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yoockh/yoochat/internal/logger"
	"github.com/yoockh/yoochat/internal/models"
)

type fakeGenerator struct {
	out    string
	err    error
	panics bool
	prompt string
	calls  int
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.panics {
		panic("boom")
	}
	return f.out, f.err
}

func TestTitleGenerator_Gemini(t *testing.T) {
	gen := &fakeGenerator{out: "  \"Weekend Hiking Plans\"\n"}
	g := NewTitleGenerator(gen, logger.Discard())

	assert.Equal(t, "Weekend Hiking Plans", g.Generate(context.Background(), "where should I hike this weekend?", models.ProviderGemini))
	assert.Contains(t, gen.prompt, "3-5 words")
	assert.Contains(t, gen.prompt, "where should I hike this weekend?")
}

func TestTitleGenerator_GeminiFallbacks(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"empty":  {out: "   "},
		"error":  {err: errors.New("quota")},
		"panics": {panics: true},
	}
	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			g := NewTitleGenerator(gen, logger.Discard())
			assert.Equal(t, models.DefaultTitle, g.Generate(context.Background(), "hello", models.ProviderGemini))
		})
	}

	assert.Equal(t, models.DefaultTitle, NewTitleGenerator(nil, logger.Discard()).Generate(context.Background(), "hello", models.ProviderGemini))
}

func TestTitleGenerator_HeuristicSkipsNetwork(t *testing.T) {
	gen := &fakeGenerator{out: "unused"}
	g := NewTitleGenerator(gen, logger.Discard())

	assert.Equal(t, "how do I center...", g.Generate(context.Background(), "how do  I\tcenter a div in css", models.ProviderOpenAI))
	assert.Equal(t, "hi...", g.Generate(context.Background(), "hi", models.ProviderDeepSeek))
	assert.Equal(t, models.DefaultTitle, g.Generate(context.Background(), "   ", models.ProviderDeepSeek))
	assert.Zero(t, gen.calls)
}
