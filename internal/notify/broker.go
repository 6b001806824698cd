package notify

import (
	"context"
	"sync"

	"github.com/seantiz/timelock/internal/model"
)

// subscriberBufferSize is the channel buffer for each subscriber.
// Notifications are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Broker fans notifications out to in-process subscribers, such as SSE
// streams. It is safe for concurrent use.
//
// After Close, late subscribers receive a closed channel instead of
// blocking forever.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]subscriber
	nextID int
	closed bool
}

type subscriber struct {
	ch          chan model.Notification
	operationID string
}

// NewBroker creates a new broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscriber)}
}

// Subscribe returns a channel of notifications and an unsubscribe function.
// A non-empty operationID limits delivery to that operation's notifications.
func (b *Broker) Subscribe(operationID string) (<-chan model.Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Notification, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{ch: ch, operationID: operationID}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish implements Publisher. It never blocks on slow subscribers and
// never fails.
func (b *Broker) Publish(_ context.Context, n model.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	for _, s := range b.subs {
		if s.operationID != "" && s.operationID != n.OperationID {
			continue
		}
		select {
		case s.ch <- n:
		default:
			// Drop for slow subscribers; the journal keeps the full record.
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Future Subscribe calls return a
// closed channel and Publish becomes a no-op.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
