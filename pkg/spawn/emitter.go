package spawn

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

type subscription struct {
	id      uint64
	kind    EventKind
	handler Handler
}

// Emitter is a listener registry for execution events. Each execution gets
// its own Emitter unless one is shared through WithEmitter; a shared Emitter
// may receive events from several executions concurrently.
type Emitter struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// On registers a handler for one event kind and returns a function that
// removes it.
func (e *Emitter) On(kind EventKind, h Handler) func() {
	if h == nil {
		return func() {}
	}

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, kind: kind, handler: h})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered handlers for kind.
func (e *Emitter) Len(kind EventKind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, s := range e.subs {
		if s.kind == kind {
			n++
		}
	}
	return n
}

// Emit delivers ev to every handler registered for its kind, in
// registration order. A panicking handler is logged and skipped.
func (e *Emitter) Emit(ev Event) {
	kind := ev.Kind()

	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.subs))
	for _, s := range e.subs {
		if s.kind == kind {
			handlers = append(handlers, s.handler)
		}
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		dispatch(h, ev)
	}
}

func dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger := slog.Default()
			if c := ev.Context(); c != nil && c.Logger != nil {
				logger = c.Logger
			}
			logger.Error("Event handler panicked",
				"event", string(ev.Kind()),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	h(ev)
}
