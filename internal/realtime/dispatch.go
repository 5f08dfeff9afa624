package realtime

import (
	"sort"
	"sync"
)

// dispatcher fans events out to registered handlers. Unsubscribe functions
// are safe to call more than once and never affect other subscribers.
type dispatcher struct {
	mu       sync.Mutex
	next     int
	handlers map[int]EventHandler
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[int]EventHandler)}
}

func (d *dispatcher) subscribe(handler EventHandler) func() {
	d.mu.Lock()
	id := d.next
	d.next++
	d.handlers[id] = handler
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.handlers, id)
		d.mu.Unlock()
	}
}

func (d *dispatcher) emit(event Event) {
	d.mu.Lock()
	ids := make([]int, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	// Deliver in subscription order.
	sort.Ints(ids)
	handlers := make([]EventHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, d.handlers[id])
	}
	d.mu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}
