package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/utils"
)

// RedisBus publishes turn events as JSON on session:<id>:events so that
// several API replicas can serve the same browser.
type RedisBus struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewRedisBus(rdb *redis.Client, log *logrus.Logger) *RedisBus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, ev models.TurnEvent) error {
	const op = "RedisBus.Publish"

	payload, err := json.Marshal(ev)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to encode event", err)
	}
	if err := b.rdb.Publish(ctx, models.EventChannel(ev.SessionID), payload).Err(); err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to publish event", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	const op = "RedisBus.Subscribe"

	channel := models.EventChannel(sessionID)
	ps := b.rdb.Subscribe(ctx, channel)
	// wait for the subscription confirmation so no event published after
	// Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, utils.E(utils.CodeUnavailable, op, "failed to subscribe", err)
	}

	out := make(chan models.TurnEvent, subscriberBuffer)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-stop:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev models.TurnEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.WithError(err).WithField("channel", channel).Warn("dropping undecodable event")
					continue
				}
				select {
				case out <- ev:
				default:
					b.log.WithFields(logrus.Fields{"channel": channel, "type": ev.Type}).Warn("subscriber lagging, event dropped")
				}
			}
		}
	}()

	return &Subscription{C: out, close: cancel}, nil
}
