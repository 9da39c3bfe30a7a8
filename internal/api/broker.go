package api

import (
	"sync"
)

// Event is one job stream message, shared by SSE and WebSocket subscribers.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Job event types.
const (
	EventProgress  = "job.progress"
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
	EventCanceled  = "job.canceled"
)

// EventBroker fans job events out to subscribers.
type EventBroker interface {
	Subscribe(jobID string) chan Event
	Unsubscribe(jobID string, ch chan Event)
	Publish(jobID string, evt Event)
	Close() error
}

// offer sends evt without blocking. A full buffer drops progress events, but a terminal
// event replaces the oldest buffered one so the subscriber always learns how the job ended.
// Each channel has a single sender.
func offer(ch chan Event, evt Event) {
	select {
	case ch <- evt:
		return
	default:
	}
	if !isFinal(evt) {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- evt:
	default:
	}
}

// Broker is the in-process EventBroker. Slow subscribers drop progress events rather than block publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // jobID -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(jobID string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = map[chan Event]struct{}{}
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(jobID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[jobID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, jobID)
	}
	close(ch)
}

func (b *Broker) Publish(jobID string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[jobID] {
		offer(ch, evt)
	}
}

// Subscribers reports the number of open subscriptions for a job.
func (b *Broker) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[jobID])
}

func (b *Broker) Close() error { return nil }
