package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vietTNT/DoveRx-backend/internal/observability"
)

// Memory is the in-process Bus used for development and tests, and as the
// local delivery table of the AMQP bus. It only reaches connections held by
// this process.
type Memory struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Subscription
	log    *zerolog.Logger
}

// NewMemory creates an empty in-process bus.
func NewMemory(log *zerolog.Logger) *Memory {
	return &Memory{
		groups: make(map[string]map[string]*Subscription),
		log:    log,
	}
}

// Subscribe joins the subscription to a group. Re-subscribing is a no-op.
func (m *Memory) Subscribe(group string, sub *Subscription) {
	m.subscribe(group, sub)
}

// subscribe reports whether the subscription was newly added.
func (m *Memory) subscribe(group string, sub *Subscription) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.groups[group]
	if !ok {
		subs = make(map[string]*Subscription)
		m.groups[group] = subs
	}
	if _, exists := subs[sub.ID]; exists {
		return false
	}
	subs[sub.ID] = sub
	return true
}

// Unsubscribe removes the subscription from a group. Unknown memberships are
// a no-op.
func (m *Memory) Unsubscribe(group string, sub *Subscription) {
	m.unsubscribe(group, sub)
}

// unsubscribe reports whether the subscription was actually removed.
func (m *Memory) unsubscribe(group string, sub *Subscription) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs, ok := m.groups[group]
	if !ok {
		return false
	}
	if _, exists := subs[sub.ID]; !exists {
		return false
	}
	delete(subs, sub.ID)
	if len(subs) == 0 {
		delete(m.groups, group)
	}
	return true
}

// Publish delivers the payload to the group's current subscribers.
func (m *Memory) Publish(_ context.Context, group string, payload []byte) error {
	m.deliver(group, payload)
	return nil
}

// deliver fans the payload out to a consistent snapshot of the membership.
func (m *Memory) deliver(group string, payload []byte) {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.groups[group]))
	for _, sub := range m.groups[group] {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.Offer(payload) {
			observability.IncBusDropped(group)
			m.log.Debug().Str("group", group).Str("subscription", sub.ID).
				Msg("slow subscriber, dropped oldest buffered event")
		}
	}
}

// Members returns the current subscriber count of a group.
func (m *Memory) Members(group string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.groups[group])
}

// Close is a no-op for the in-process bus.
func (m *Memory) Close() error {
	return nil
}
