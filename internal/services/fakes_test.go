package services

import (
	"context"
	"sync"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/providers/llm"
)

// scriptStreamer replays chunks then completes, or fails with err.
type scriptStreamer struct {
	chunks []string
	err    error
	gate   chan struct{}

	mu    sync.Mutex
	calls [][]models.Message
}

func (f *scriptStreamer) StreamResponse(_ context.Context, messages []models.Message, _ models.Settings, cb llm.Callbacks) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]models.Message(nil), messages...))
	f.mu.Unlock()

	if f.gate != nil {
		<-f.gate
	}
	full := ""
	for _, c := range f.chunks {
		full += c
		cb.OnChunk(c)
	}
	if f.err != nil {
		cb.OnError(f.err)
		return
	}
	cb.OnComplete(full)
}

func (f *scriptStreamer) Calls() [][]models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]models.Message(nil), f.calls...)
}

type recordingTitles struct {
	mu   sync.Mutex
	jobs []TitleJob
}

func (r *recordingTitles) Schedule(job TitleJob) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
}

func (r *recordingTitles) Jobs() []TitleJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TitleJob(nil), r.jobs...)
}
