package realtime

import (
	"fmt"
	"sync"
)

// ChangeFeed is the manager's view of the change stream: one subscription
// per table, torn down through the returned cancel func.
type ChangeFeed interface {
	Subscribe(table string) (<-chan Event, func(), error)
}

const subscriberBuffer = 64

type subscriber struct {
	table string
	ch    chan Event
}

// Bus is the in-process change feed. Services publish after their
// transaction commits; sinks (websocket hub broadcast, Redis bridge) and
// per-table subscribers receive every event. Delivery to a subscriber whose
// buffer is full drops the event rather than blocking the publisher — the
// cache invalidation driven off the bus tolerates missed events because
// partitions are refetched on the next read anyway.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	sinks  []func(Event)
	closed bool
}

// NewBus creates an empty event bus
func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// AddSink registers a fan-out target invoked synchronously for every
// published event. Sinks must not block.
func (b *Bus) AddSink(sink func(Event)) {
	b.mu.Lock()
	b.sinks = append(b.sinks, sink)
	b.mu.Unlock()
}

// Publish delivers the event to all matching subscribers and all sinks
func (b *Bus) Publish(ev Event) {
	b.publish(ev, true)
}

// PublishLocal delivers to subscribers only, skipping sinks. The Redis
// bridge replays remote events through it so they are not forwarded again.
func (b *Bus) PublishLocal(ev Event) {
	b.publish(ev, false)
}

func (b *Bus) publish(ev Event, withSinks bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if sub.table != ev.Table {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	if !withSinks {
		return
	}
	for _, sink := range b.sinks {
		sink(ev)
	}
}

// Subscribe implements ChangeFeed
func (b *Bus) Subscribe(table string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, nil, fmt.Errorf("event bus is closed")
	}

	sub := &subscriber{table: table, ch: make(chan Event, subscriberBuffer)}
	b.subs[sub] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, cancel, nil
}

// Close tears down all subscriptions
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
