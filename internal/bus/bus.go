// Package bus provides the group broadcast transport: named groups that
// connections subscribe to and that fan published payloads out to every
// subscriber, across processes when backed by a shared broker.
package bus

import (
	"context"
	"fmt"
)

// PublicFeedGroup is the single shared group for global feed events.
const PublicFeedGroup = "public-feed"

// UserGroup returns the personal group name for a user identity.
func UserGroup(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// Bus is the pub/sub transport capability. Subscribe and Unsubscribe are
// idempotent; Publish delivers to every subscription in the group at the
// instant of publish and never blocks on a slow subscriber.
type Bus interface {
	Subscribe(group string, sub *Subscription)
	Unsubscribe(group string, sub *Subscription)
	Publish(ctx context.Context, group string, payload []byte) error
	Close() error
}

// Subscription is one connection's delivery handle. A single subscription can
// be joined to several groups; all of their events share the one channel.
type Subscription struct {
	ID string
	C  chan []byte
}

// NewSubscription builds a subscription with a buffered delivery channel.
func NewSubscription(id string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscription{ID: id, C: make(chan []byte, buffer)}
}

// Offer enqueues the payload, dropping the oldest buffered payload when the
// channel is full so publishers are never blocked. Reports whether anything
// was dropped.
func (s *Subscription) Offer(payload []byte) bool {
	dropped := false
	for {
		select {
		case s.C <- payload:
			return dropped
		default:
		}
		select {
		case <-s.C:
			dropped = true
		default:
		}
	}
}
