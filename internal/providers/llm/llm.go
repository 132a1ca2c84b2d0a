package llm

import (
	"context"
	"fmt"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/utils"
)

// Credentials maps a provider to its secret. Providers that authenticate from
// the environment ignore it.
type Credentials map[models.ProviderID]string

// Adapter speaks exactly one provider's wire protocol.
type Adapter interface {
	// Stream sends the conversation (oldest first, the last message being the new
	// turn) and returns its reply as incremental, non-empty text fragments.
	// chunks is closed when the reply ends; errs yields at most one error and is
	// closed once the stream is over. The sequence cannot be restarted.
	Stream(ctx context.Context, conversation []models.Message, systemInstruction string, creds Credentials) (chunks <-chan string, errs <-chan error)
}

// TextGenerator produces a single non-streamed completion.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// failed returns an already-terminated stream carrying err.
func failed(err error) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	errs <- err
	close(out)
	close(errs)
	return out, errs
}

// recoverInto turns a panic in an adapter goroutine into a stream error.
func recoverInto(errs chan<- error, op string) {
	if r := recover(); r != nil {
		errs <- utils.E(utils.CodeInternal, op, "adapter panicked", fmt.Errorf("%v", r))
	}
}

// send forwards one fragment unless the caller went away.
func send(ctx context.Context, out chan<- string, text string) bool {
	select {
	case out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}
