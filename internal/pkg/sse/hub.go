package sse

import (
	"sync"
)

// Hub fans events out to subscribers of a topic. Slow subscribers miss
// events instead of blocking publishers.
type Hub[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan T]struct{}
	buffer      int
}

func NewHub[T any](buffer int) *Hub[T] {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub[T]{
		subscribers: make(map[string]map[chan T]struct{}),
		buffer:      buffer,
	}
}

// Subscribe returns the topic's event channel and a cancel func that closes it.
func (h *Hub[T]) Subscribe(topic string) (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan T, h.buffer)
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan T]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[topic], ch)
			close(ch)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
		})
	}
	return ch, cancel
}

func (h *Hub[T]) Publish(topic string, event T) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[topic] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub[T]) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// TotalSubscribers counts subscribers across all topics
func (h *Hub[T]) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
