package usecase

import (
	"sync"

	"github.com/campushq/registration/internal/registration/domain"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing events; the poll endpoint is the
// catch-up path, so dropped pushes are acceptable.
const subscriberBuffer = 16

// Broadcaster fans progress events out to in-process subscribers, keyed by
// application ID. Sends never block: a full subscriber channel drops the event.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan domain.ProgressEvent]struct{}
}

// NewBroadcaster creates a new Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[int64]map[chan domain.ProgressEvent]struct{}),
	}
}

// Subscribe registers an observer for one application's progress events. The
// returned cancel function removes the subscription and closes the channel.
func (b *Broadcaster) Subscribe(applicationID int64) (<-chan domain.ProgressEvent, func()) {
	ch := make(chan domain.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subscribers[applicationID] == nil {
		b.subscribers[applicationID] = make(map[chan domain.ProgressEvent]struct{})
	}
	b.subscribers[applicationID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers[applicationID], ch)
			if len(b.subscribers[applicationID]) == 0 {
				delete(b.subscribers, applicationID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Broadcast delivers the event to every subscriber of its application and
// returns how many subscribers received it.
func (b *Broadcaster) Broadcast(event domain.ProgressEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subscribers[event.ApplicationID] {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}

	return delivered
}
