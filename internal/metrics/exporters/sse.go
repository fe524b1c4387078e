package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/metrics"
)

// DefaultInterval is how often totals are pushed to SSE clients.
const DefaultInterval = time.Second

// EventPublisher is satisfied by *events.Bus.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter publishes session totals to the bus on a fixed interval. A tick
// whose totals equal the previous push publishes nothing.
type SSEExporter struct {
	bus      EventPublisher
	snapshot func() metrics.Snapshot
	now      func() time.Time

	mu       sync.Mutex
	interval time.Duration
	stop     context.CancelFunc
	done     chan struct{}
}

// NewSSEExporter creates an exporter reading the process-wide totals.
func NewSSEExporter(bus EventPublisher) *SSEExporter {
	return &SSEExporter{
		bus:      bus,
		snapshot: metrics.GetSnapshot,
		now:      time.Now,
		interval: DefaultInterval,
	}
}

// SetInterval changes the push interval. It takes effect on the next Start.
func (s *SSEExporter) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Start launches the export loop. It does nothing if the loop is running.
func (s *SSEExporter) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	ctx, s.stop = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.interval, s.done)
}

// Stop ends the loop and waits for it. It is safe to call at any time.
func (s *SSEExporter) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

func (s *SSEExporter) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		last metrics.Snapshot
		sent bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.snapshot()
			if sent && snap == last {
				continue
			}
			last, sent = snap, true
			s.bus.Publish(toEvent(snap, s.now()))
		}
	}
}

func toEvent(snap metrics.Snapshot, at time.Time) events.MetricsEvent {
	return events.MetricsEvent{
		Commands:       snap.Commands,
		Skipped:        snap.Skipped,
		Failures:       snap.Failures,
		DeviceErrors:   snap.DeviceErrors,
		SequenceActive: snap.SequenceActive,
		Stale:          snap.Stale,
		Timestamp:      at.Format(time.RFC3339),
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"metrics": events.MetricsEvent{},
	}
}
