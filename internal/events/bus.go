package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Delivery is asynchronous: each subscriber receives events on its own
// goroutine, in publish order.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(ExecEndedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ExecStartedEvent:
		event.Publish(b.dispatcher, e)
	case ExecOutputEvent:
		event.Publish(b.dispatcher, e)
	case ExecAbortedEvent:
		event.Publish(b.dispatcher, e)
	case ExecFailedEvent:
		event.Publish(b.dispatcher, e)
	case ExecEndedEvent:
		event.Publish(b.dispatcher, e)
	case ProcessStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FilesChangedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives.
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e ExecEndedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ExecStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecOutputEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecAbortedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ExecEndedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProcessStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FilesChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

// SubscribeToChannel bridges callback-based subscriptions to a channel.
// Events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
