package sensor

import (
	"sort"
	"sync"
)

type handler[E any] struct {
	next func(E)
	fail func(error)
}

// Handlers is a thread-safe handler registry for Device implementations.
// The zero value is ready to use.
type Handlers[E any] struct {
	mu      sync.RWMutex
	lastID  HandlerID
	entries map[HandlerID]handler[E]
}

// Add registers a handler pair and returns its id.
func (h *Handlers[E]) Add(next func(E), fail func(error)) HandlerID {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.entries == nil {
		h.entries = make(map[HandlerID]handler[E])
	}
	h.lastID++
	h.entries[h.lastID] = handler[E]{next: next, fail: fail}
	return h.lastID
}

// Remove detaches a handler. Unknown ids are ignored.
func (h *Handlers[E]) Remove(id HandlerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, id)
}

// Len returns the number of registered handlers.
func (h *Handlers[E]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Dispatch delivers e to every handler in registration order.
// Handlers run outside the lock, so they may Add/Remove.
func (h *Handlers[E]) Dispatch(e E) {
	for _, hd := range h.snapshot() {
		if hd.next != nil {
			hd.next(e)
		}
	}
}

// Fail delivers a terminal error to every handler and clears the registry.
func (h *Handlers[E]) Fail(err error) {
	hs := h.snapshot()

	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()

	for _, hd := range hs {
		if hd.fail != nil {
			hd.fail(err)
		}
	}
}

func (h *Handlers[E]) snapshot() []handler[E] {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]HandlerID, 0, len(h.entries))
	for id := range h.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	hs := make([]handler[E], 0, len(ids))
	for _, id := range ids {
		hs = append(hs, h.entries[id])
	}
	return hs
}
