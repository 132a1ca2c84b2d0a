package pubsub

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
)

type memorySub struct {
	ch   chan models.TurnEvent
	once sync.Once
}

// MemoryBus is an in-process Bus.
type MemoryBus struct {
	log *logrus.Logger

	mu   sync.RWMutex
	subs map[string]map[*memorySub]struct{}
}

func NewMemoryBus(log *logrus.Logger) *MemoryBus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MemoryBus{log: log, subs: map[string]map[*memorySub]struct{}{}}
}

func (b *MemoryBus) Publish(_ context.Context, ev models.TurnEvent) error {
	channel := models.EventChannel(ev.SessionID)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[channel] {
		select {
		case s.ch <- ev:
		default:
			b.log.WithFields(logrus.Fields{"channel": channel, "type": ev.Type}).Warn("subscriber lagging, event dropped")
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	channel := models.EventChannel(sessionID)
	s := &memorySub{ch: make(chan models.TurnEvent, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[*memorySub]struct{}{}
	}
	b.subs[channel][s] = struct{}{}
	b.mu.Unlock()

	stop := make(chan struct{})
	cancel := func() {
		s.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], s)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
			close(s.ch)
			b.mu.Unlock()
			close(stop)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return &Subscription{C: s.ch, close: cancel}, nil
}
