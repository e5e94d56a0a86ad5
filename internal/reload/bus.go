package reload

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// publishTimeout is how long Publish waits on a full subscriber before
// dropping the event for that subscriber.
const publishTimeout = 100 * time.Millisecond

// Bus fans reload events out to independent subscribers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	closed  bool
	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewBus creates an event bus. A nil logger discards.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a subscriber with the given channel buffer. The returned
// function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber. A subscriber that stays full for
// publishTimeout misses the event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}

		select {
		case ch <- ev:
		case <-time.After(publishTimeout):
			count := b.dropped.Add(1)
			if count%10 == 1 {
				b.logger.Warn("reload subscriber full, dropped event", "dropped_total", count, "batch", ev.Batch.ID)
			}
		}
	}
}

// Dropped returns the number of events dropped across all subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
