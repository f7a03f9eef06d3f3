package events

import (
	"sync"
	"time"

	"github.com/motiondex/motiondex/internal/core/domain"
)

type EventType string

const (
	TypeProgress EventType = "progress"
	TypeStatus   EventType = "status"
	TypeError    EventType = "error"
)

// Event is one notification published by the scheduler. Status is set for
// status events, Progress for progress events, Message for error events.
type Event struct {
	Type     EventType          `json:"type"`
	VideoID  string             `json:"video_id"`
	Status   domain.VideoStatus `json:"status,omitempty"`
	Progress int                `json:"progress,omitempty"`
	Message  string             `json:"message,omitempty"`
	At       time.Time          `json:"at"`
}

// Sink is what the core publishes to; the GUI/CLI layer subscribes through
// a concrete Bus.
type Sink interface {
	Publish(event Event)
}

const subscriberBuffer = 64

// Bus fans events out to subscribers. Publishing never blocks the scheduler:
// a subscriber that stops draining loses events rather than stalling the lane.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a receive channel and a cancel function. Cancel must be
// called exactly once; the channel is closed by it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
