package exporters

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/metrics"
)

type publishRecorder struct {
	mu     sync.Mutex
	events []events.MetricsEvent
	notify chan struct{}
}

func newPublishRecorder() *publishRecorder {
	return &publishRecorder{notify: make(chan struct{}, 64)}
}

func (p *publishRecorder) Publish(ev events.Event) {
	m, ok := ev.(events.MetricsEvent)
	if !ok {
		return
	}
	p.mu.Lock()
	p.events = append(p.events, m)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *publishRecorder) published() []events.MetricsEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.MetricsEvent(nil), p.events...)
}

func (p *publishRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-p.notify:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for metrics event")
	}
}

// newTestExporter ticks every 5ms over a snapshot whose command total is
// read from commands.
func newTestExporter(rec *publishRecorder, commands *atomic.Uint64) *SSEExporter {
	e := NewSSEExporter(rec)
	e.SetInterval(5 * time.Millisecond)
	e.snapshot = func() metrics.Snapshot { return metrics.Snapshot{Commands: commands.Load()} }
	e.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestSSEExporterPublishesChanges(t *testing.T) {
	rec := newPublishRecorder()
	var commands atomic.Uint64
	commands.Store(3)
	e := newTestExporter(rec, &commands)

	e.Start(t.Context())
	defer e.Stop()

	rec.wait(t)
	commands.Store(4)
	rec.wait(t)

	got := rec.published()
	if len(got) < 2 || got[0].Commands != 3 || got[1].Commands != 4 {
		t.Fatalf("published %+v", got)
	}
	if got[0].Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %q", got[0].Timestamp)
	}
}

func TestSSEExporterSkipsUnchanged(t *testing.T) {
	rec := newPublishRecorder()
	var commands atomic.Uint64
	e := newTestExporter(rec, &commands)

	e.Start(t.Context())
	time.Sleep(60 * time.Millisecond)
	e.Stop()

	if got := len(rec.published()); got != 1 {
		t.Errorf("published %d events for unchanged totals, want 1", got)
	}
}

func TestSSEExporterStartStop(t *testing.T) {
	rec := newPublishRecorder()
	var commands atomic.Uint64
	e := newTestExporter(rec, &commands)

	e.Stop()
	e.Start(t.Context())
	e.Start(t.Context())
	rec.wait(t)
	e.Stop()
	e.Stop()

	n := len(rec.published())
	commands.Store(9)
	time.Sleep(30 * time.Millisecond)
	if got := len(rec.published()); got != n {
		t.Errorf("events published after Stop: %d, want %d", got, n)
	}

	e.Start(t.Context())
	rec.wait(t)
	e.Stop()
	if last := rec.published(); last[len(last)-1].Commands != 9 {
		t.Errorf("restart should publish current totals, got %+v", last[len(last)-1])
	}
}

func TestSetIntervalIgnoresNonPositive(t *testing.T) {
	e := NewSSEExporter(newPublishRecorder())
	e.SetInterval(0)
	e.SetInterval(-time.Second)
	if e.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", e.interval, DefaultInterval)
	}
}

func TestGetEventTypes(t *testing.T) {
	if _, ok := GetEventTypes()["metrics"]; !ok {
		t.Error("expected metrics event type")
	}
}
