package todolist

import (
	"sync"

	"github.com/Widiaaayuu/todolistt/internal/models"
)

// EventKind names a state change of the controller.
type EventKind string

const (
	EventLoaded   EventKind = "loaded"
	EventAdded    EventKind = "added"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventReverted EventKind = "reverted"
	EventTick     EventKind = "tick"
	EventNotice   EventKind = "notice"
)

// Event is emitted after every change to the list, countdowns or notices.
type Event struct {
	Kind   EventKind    `json:"kind"`
	Task   *models.Task `json:"task,omitempty"`
	Views  []TaskView   `json:"views,omitempty"`
	Notice *Notice      `json:"notice,omitempty"`
}

const subscriberBuffer = 16

type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// publish never blocks; a full subscriber misses the event.
func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
