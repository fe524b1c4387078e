package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
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
// Usage: bus.Publish(CommandCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case CommandCompletedEvent:
		event.Publish(b.dispatcher, e)
	case CommandFailedEvent:
		event.Publish(b.dispatcher, e)
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceMessageEvent:
		event.Publish(b.dispatcher, e)
	case SequenceStartedEvent:
		event.Publish(b.dispatcher, e)
	case SequenceAbortedEvent:
		event.Publish(b.dispatcher, e)
	case SessionInvalidatedEvent:
		event.Publish(b.dispatcher, e)
	case SettleReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case MetricsEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type selects which events it receives.
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e StateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(CommandCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommandFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceMessageEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SequenceStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SequenceAbortedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionInvalidatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SettleReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(MetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}
