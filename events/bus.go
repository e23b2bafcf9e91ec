package events

import "sync"

const subscriberBuffer = 256

// Bus is a per-task, single-producer, multi-subscriber ordered channel of
// events. Events are delivered to each subscriber in publish order and are
// never reordered after being queued.
type Bus struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its channel. The channel
// is closed when the bus closes.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers the event to every subscriber. A slow subscriber has its
// oldest pending event dropped rather than blocking the producing task.
// Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Close closes every subscriber channel. Subsequent publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
