package eventbus

import (
	"sync"

	"github.com/Sushi-Mampfer/notes/entities"
)

const (
	EventFile   = "file"
	EventDelete = "delete"
)

// Event is one recording lifecycle notification. The JSON shape matches
// what the display layer consumes: a "file" event carries a full recording
// row (upsert-by-id), a "delete" event carries just the id.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func FileEvent(rec entities.Recording) Event {
	return Event{Event: EventFile, Payload: rec}
}

func DeleteEvent(id uint32) Event {
	return Event{Event: EventDelete, Payload: id}
}

// Bus is an in-process publish/subscribe hub. A subscription is seeded
// with a backlog snapshot at registration time, under the bus lock, so a
// subscriber never observes a gap between replay and live events.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. The backlog is queued before any
// event published after this call, in the order given.
func (b *Bus) Subscribe(backlog []Event) *Subscription {
	s := &Subscription{
		bus:  b,
		out:  make(chan Event),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	s.pending = append(s.pending, backlog...)
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

// Publish queues ev for every current subscriber and returns without
// blocking. Delivery per subscriber is FIFO in publish order; no ordering
// holds across subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	for s := range b.subs {
		s.enqueue(ev)
	}
	b.mu.Unlock()
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one subscriber's view of the bus: an unbounded pending
// queue drained by a pump goroutine into the Events channel.
type Subscription struct {
	bus *Bus

	mu      sync.Mutex
	pending []Event

	out  chan Event
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// Events yields the backlog replay followed by live events. The channel
// is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Close deregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.done)
	})
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
			continue
		}
		s.mu.Unlock()
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
