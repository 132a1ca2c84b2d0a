package pubsub

import (
	"context"

	"github.com/yoockh/yoochat/internal/models"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events
// addressed to it are dropped.
const subscriberBuffer = 256

// Bus fans turn events out to everyone watching a session.
type Bus interface {
	Publish(ctx context.Context, ev models.TurnEvent) error
	Subscribe(ctx context.Context, sessionID string) (*Subscription, error)
}

// Subscription delivers events in publish order until Close is called or the
// subscribing context ends, after which C is closed.
type Subscription struct {
	C <-chan models.TurnEvent

	close func()
}

func (s *Subscription) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}
