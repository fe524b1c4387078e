package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/illuminode/internal/events"
)

// sessionEventTypes maps SSE event names to payload types.
func sessionEventTypes() map[string]any {
	return map[string]any{
		"command-completed":   events.CommandCompletedEvent{},
		"command-failed":      events.CommandFailedEvent{},
		"state-changed":       events.StateChangedEvent{},
		"device-message":      events.DeviceMessageEvent{},
		"sequence-started":    events.SequenceStartedEvent{},
		"sequence-aborted":    events.SequenceAbortedEvent{},
		"session-invalidated": events.SessionInvalidatedEvent{},
		"settle-reloaded":     events.SettleReloadedEvent{},
	}
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of command results, state changes, device output and sequence events. The current state is sent first.",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sessionEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribe := events.SubscribeSession(s.eventBus, eventCh)
		defer unsubscribe()

		// Initial snapshot so clients do not wait for the next change
		if err := send.Data(events.StateChangedEvent{
			State:     s.device.State(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
