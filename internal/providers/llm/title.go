package llm

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
)

const (
	titlePrompt  = "Summarize the following message into a short chat title of 3-5 words. Do not use quotes.\n\nMessage: "
	titleTimeout = 15 * time.Second
	titleWords   = 4
)

// TitleGenerator names a chat after its first message. It never fails: any
// problem yields models.DefaultTitle.
type TitleGenerator struct {
	gen TextGenerator // nil when Gemini is not configured
	log *logrus.Logger
}

func NewTitleGenerator(gen TextGenerator, log *logrus.Logger) *TitleGenerator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TitleGenerator{gen: gen, log: log}
}

func (g *TitleGenerator) Generate(ctx context.Context, firstMessage string, provider models.ProviderID) string {
	if provider != models.ProviderGemini {
		return HeuristicTitle(firstMessage)
	}
	if g.gen == nil {
		return models.DefaultTitle
	}

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	title, err := g.generate(ctx, firstMessage)
	if err != nil {
		g.log.WithError(err).Warn("title generation failed")
		return models.DefaultTitle
	}
	if title == "" {
		return models.DefaultTitle
	}
	return title
}

func (g *TitleGenerator) generate(ctx context.Context, firstMessage string) (title string, err error) {
	defer func() {
		if r := recover(); r != nil {
			title = ""
		}
	}()

	out, err := g.gen.GenerateText(ctx, titlePrompt+firstMessage)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), "\"'`"), nil
}

// HeuristicTitle builds a title from the first few words of text.
func HeuristicTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return models.DefaultTitle
	}
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	return strings.Join(words, " ") + "..."
}
