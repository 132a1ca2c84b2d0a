package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Saver writes the current state somewhere durable.
type Saver interface {
	Save(ctx context.Context) error
}

// PersistWorker coalesces change notifications into sequential Save calls.
// A burst of notifications within Debounce costs one write of the latest
// state. A final Save runs when the worker's context ends.
type PersistWorker struct {
	Saver    Saver
	Debounce time.Duration
	Logger   *logrus.Logger

	dirty chan struct{}
	done  chan struct{}
}

func NewPersistWorker(saver Saver, debounce time.Duration, log *logrus.Logger) *PersistWorker {
	if log == nil {
		log = logrus.New()
	}
	return &PersistWorker{
		Saver:    saver,
		Debounce: debounce,
		Logger:   log,
		dirty:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Notify marks the state dirty. It never blocks.
func (w *PersistWorker) Notify() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

func (w *PersistWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Done is closed once the final flush has finished.
func (w *PersistWorker) Done() <-chan struct{} { return w.done }

func (w *PersistWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return
		case <-w.dirty:
			if w.Debounce > 0 {
				select {
				case <-time.After(w.Debounce):
				case <-ctx.Done():
				}
			}
			w.save(ctx)
		}
	}
}

func (w *PersistWorker) flush() {
	select {
	case <-w.dirty:
	default:
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	w.save(ctx)
}

func (w *PersistWorker) save(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.Saver.Save(ctx); err != nil {
		w.Logger.WithError(err).Error("persist failed")
		return
	}
	w.Logger.WithField("latency_ms", time.Since(start).Milliseconds()).Debug("state persisted")
}
