package live

import (
	"sync"

	"github.com/newthinker/novaquant/internal/performance"
)

// Broadcaster fans the latest metrics snapshot out to subscribers. Publish
// never blocks: a slow subscriber only ever holds the newest snapshot.
type Broadcaster struct {
	mu     sync.Mutex
	latest performance.Metrics
	subs   map[chan performance.Metrics]struct{}
}

// NewBroadcaster creates a broadcaster holding initial.
func NewBroadcaster(initial performance.Metrics) *Broadcaster {
	return &Broadcaster{
		latest: initial,
		subs:   make(map[chan performance.Metrics]struct{}),
	}
}

// Publish replaces the latest snapshot and offers it to every subscriber.
func (b *Broadcaster) Publish(m performance.Metrics) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = m
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m
	}
}

// Latest returns the most recent snapshot.
func (b *Broadcaster) Latest() performance.Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Subscribe returns a channel primed with the latest snapshot and a cancel
// func that closes it.
func (b *Broadcaster) Subscribe() (<-chan performance.Metrics, func()) {
	ch := make(chan performance.Metrics, 1)

	b.mu.Lock()
	ch <- b.latest
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
