package relay

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"inquest/events"
)

// Broker hands each task's event stream to its SSE subscriber. One channel
// per task; publishing never blocks the producing agent.
type Broker struct {
	mu       sync.RWMutex
	channels map[string]chan events.Event
	logger   hclog.Logger
}

func NewBroker(logger hclog.Logger) *Broker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Broker{
		channels: make(map[string]chan events.Event),
		logger:   logger.Named("relay"),
	}
}

// GetOrCreateChannel returns the event channel for a task, creating it if
// needed.
func (b *Broker) GetOrCreateChannel(taskID string) chan events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.channels[taskID]; ok {
		return ch
	}

	ch := make(chan events.Event, 256)
	b.channels[taskID] = ch
	return ch
}

// Publish sends an event to the task's channel without blocking. When the
// subscriber cannot keep up the oldest queued event is dropped first.
func (b *Broker) Publish(taskID string, ev events.Event) {
	b.mu.RLock()
	ch, ok := b.channels[taskID]
	b.mu.RUnlock()

	if !ok {
		return
	}

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
			b.logger.Warn("dropping event, channel full", "task", taskID, "kind", ev.Kind)
		}
	}
}

// Subscribe returns the channel for a client to read from. A live stream
// supports one subscriber per task: concurrent readers would split the
// events between them. A second client for the same task should read the
// archive instead.
func (b *Broker) Subscribe(taskID string) <-chan events.Event {
	return b.GetOrCreateChannel(taskID)
}

// CloseChannel removes and closes the channel for a task.
func (b *Broker) CloseChannel(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.channels[taskID]; ok {
		close(ch)
		delete(b.channels, taskID)
	}
}
