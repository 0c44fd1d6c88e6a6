package liveevents

import (
	"errors"
	"sync"

	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
)

// EventMeterData is the only event name viewers receive.
const EventMeterData = "meterData"

const DefaultSubscriberBuffer = 16

var ErrHubUnavailable = errors.New("hub_unavailable")

type Event struct {
	Name   string        `json:"event"`
	Record domain.Record `json:"data"`
}

// Hub fans accepted records out to every connected viewer. Nothing is
// buffered for viewers that connect later, and a slow viewer drops events
// rather than blocking ingest.
type Hub struct {
	mu               sync.RWMutex
	subs             map[uint64]chan Event
	nextID           uint64
	subscriberBuffer int
}

type Subscription struct {
	hub  *Hub
	id   uint64
	ch   chan Event
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:             make(map[uint64]chan Event),
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish delivers record to the viewers connected right now.
func (h *Hub) Publish(record domain.Record) {
	if h == nil {
		return
	}
	event := Event{Name: EventMeterData, Record: record}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) Subscribe() (*Subscription, error) {
	if h == nil {
		return nil, ErrHubUnavailable
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.subscriberBuffer)
	h.subs[id] = ch
	h.mu.Unlock()

	return &Subscription{hub: h, id: id, ch: ch}, nil
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (s *Subscription) Events() <-chan Event {
	if s == nil {
		return nil
	}
	return s.ch
}

// Close detaches the viewer and closes its channel. Safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.id)
	})
}
