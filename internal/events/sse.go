package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards every T published on bus into ch. A full ch
// drops the event so a slow stream client never stalls Publish.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

// SubscribeSession forwards the command, state, device output, sequence and
// session lifecycle events into ch. The returned func removes all of them.
func SubscribeSession(bus *Bus, ch chan<- any) func() {
	return combine(
		SubscribeToChannel[CommandCompletedEvent](bus, ch),
		SubscribeToChannel[CommandFailedEvent](bus, ch),
		SubscribeToChannel[StateChangedEvent](bus, ch),
		SubscribeToChannel[DeviceMessageEvent](bus, ch),
		SubscribeToChannel[SequenceStartedEvent](bus, ch),
		SubscribeToChannel[SequenceAbortedEvent](bus, ch),
		SubscribeToChannel[SessionInvalidatedEvent](bus, ch),
		SubscribeToChannel[SettleReloadedEvent](bus, ch),
	)
}

func combine(unsubs ...func()) func() {
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
