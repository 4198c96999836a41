package live

import (
	"sync"
	"testing"

	"github.com/newthinker/novaquant/internal/performance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SubscribeReceivesLatest(t *testing.T) {
	b := NewBroadcaster(performance.Metrics{Trades: 1})

	ch, cancel := b.Subscribe()
	defer cancel()

	assert.Equal(t, 1, (<-ch).Trades)

	b.Publish(performance.Metrics{Trades: 2})
	assert.Equal(t, 2, (<-ch).Trades)
	assert.Equal(t, 2, b.Latest().Trades)
}

func TestBroadcaster_SlowSubscriberKeepsNewest(t *testing.T) {
	b := NewBroadcaster(performance.Metrics{})
	ch, cancel := b.Subscribe()
	defer cancel()

	// nobody reads while these are published; Publish must not block
	for i := 1; i <= 100; i++ {
		b.Publish(performance.Metrics{Trades: i})
	}

	assert.Equal(t, 100, (<-ch).Trades)
	select {
	case m := <-ch:
		t.Fatalf("unexpected extra snapshot %+v", m)
	default:
	}
}

func TestBroadcaster_Cancel(t *testing.T) {
	b := NewBroadcaster(performance.Metrics{})
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())

	<-ch // primed value
	_, open := <-ch
	assert.False(t, open)

	b.Publish(performance.Metrics{Trades: 3})
}

func TestBroadcaster_ConcurrentSubscribers(t *testing.T) {
	b := NewBroadcaster(performance.Metrics{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := b.Subscribe()
			defer cancel()
			for m := range ch {
				if m.Trades == 50 {
					return
				}
			}
		}()
	}

	for i := 1; i <= 50; i++ {
		b.Publish(performance.Metrics{Trades: i})
	}
	// late subscribers are primed with the final snapshot
	wg.Wait()
}
