package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/utils"
)

// Callbacks is the provider-agnostic streaming contract. OnChunk fires zero or
// more times, in order, followed by exactly one of OnComplete or OnError.
type Callbacks struct {
	OnChunk    func(text string)
	OnComplete func(fullText string)
	OnError    func(err error)
}

// Normalizer hides provider wire formats behind Callbacks.
type Normalizer struct {
	adapters map[models.ProviderID]Adapter
	log      *logrus.Logger
}

func NewNormalizer(adapters map[models.ProviderID]Adapter, log *logrus.Logger) *Normalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{adapters: adapters, log: log}
}

// Has reports whether an adapter is registered for p.
func (n *Normalizer) Has(p models.ProviderID) bool {
	_, ok := n.adapters[p]
	return ok
}

// StreamResponse streams a reply for messages using the provider selected in
// settings. It returns after the terminal callback has fired; no error or
// panic escapes it.
func (n *Normalizer) StreamResponse(ctx context.Context, messages []models.Message, settings models.Settings, cb Callbacks) {
	const op = "Normalizer.StreamResponse"

	// stops the adapter's goroutine when we return early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	provider := settings.ActiveProvider
	log := n.log.WithFields(logrus.Fields{"provider": provider, "messages": len(messages)})
	start := time.Now()

	var (
		full     strings.Builder
		chunks   int
		finished bool
	)
	finish := func(err error) {
		if finished {
			return
		}
		finished = true
		entry := log.WithFields(logrus.Fields{"chunks": chunks, "latency_ms": time.Since(start).Milliseconds()})
		if err != nil {
			entry.WithError(err).Warn("stream failed")
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		entry.Info("stream complete")
		if cb.OnComplete != nil {
			cb.OnComplete(full.String())
		}
	}

	defer func() {
		if r := recover(); r != nil {
			finish(utils.E(utils.CodeInternal, op, "streaming failed unexpectedly", fmt.Errorf("%v", r)))
		}
	}()

	adapter, ok := n.adapters[provider]
	if !ok {
		finish(utils.E(utils.CodeFailedPrecondition, op, fmt.Sprintf("provider %q is not available", provider), nil))
		return
	}

	log.Debug("stream start")
	out, errs := adapter.Stream(ctx, messages, settings.SystemInstruction, Credentials(settings.APIKeys))
	for text := range out {
		if text == "" {
			continue
		}
		chunks++
		full.WriteString(text)
		if cb.OnChunk != nil {
			cb.OnChunk(text)
		}
	}

	if err := <-errs; err != nil {
		finish(err)
		return
	}
	finish(nil)
}
