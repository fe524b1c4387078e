// Package metrics provides Prometheus metrics for the LED array session.
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smazurov/illuminode/internal/events"
)

const namespace = "illuminode"

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "commands_total",
		Help:      "Commands accepted by the device",
	}, []string{"kind"})

	commandsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "commands_skipped_total",
		Help:      "Commands not sent because they matched cached state",
	}, []string{"kind"})

	commandFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "command_failures_total",
		Help:      "Commands that returned an error",
	}, []string{"kind", "code"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "command_duration_seconds",
		Help:      "Time from transmit to completion including the settle window",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind"})

	deviceMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "messages_total",
		Help:      "Lines received from the device by class",
	}, []string{"class"})

	sequencesStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sequence",
		Name:      "started_total",
		Help:      "Acquisition sequences started",
	}, []string{"pattern"})

	sequencesAbortedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sequence",
		Name:      "aborted_total",
		Help:      "Running sequences aborted by clear",
	})

	sessionInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "invalidations_total",
		Help:      "Sessions invalidated by transport failures",
	})

	settleReloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settle",
		Name:      "reloads_total",
		Help:      "Settle delay table reloads",
	})

	sequenceActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "sequence_active",
		Help:      "1 while a sequence is running on the device",
	})

	brightness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "brightness",
		Help:      "Last brightness acknowledged by the device",
	})

	numericalAperture = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "numerical_aperture",
		Help:      "Last NA acknowledged by the device",
	})

	stateStale = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "device",
		Name:      "state_stale",
		Help:      "1 when cached state may not match the device",
	})

	// Local totals for the SSE exporter.
	snapshot   Snapshot
	snapshotMu sync.RWMutex
)

// Snapshot holds running totals since process start.
type Snapshot struct {
	Commands       uint64
	Skipped        uint64
	Failures       uint64
	DeviceErrors   uint64
	SequenceActive bool
	Stale          bool
}

// Subscriber is satisfied by *events.Bus.
type Subscriber interface {
	Subscribe(handler any) func()
}

// Attach feeds the collectors from bus events. The returned function detaches.
func Attach(bus Subscriber) func() {
	unsubs := []func(){
		bus.Subscribe(recordCompleted),
		bus.Subscribe(recordFailed),
		bus.Subscribe(recordDeviceMessage),
		bus.Subscribe(recordState),
		bus.Subscribe(recordSequenceStarted),
		bus.Subscribe(func(events.SequenceAbortedEvent) { sequencesAbortedTotal.Inc() }),
		bus.Subscribe(func(events.SessionInvalidatedEvent) { sessionInvalidationsTotal.Inc() }),
		bus.Subscribe(func(events.SettleReloadedEvent) { settleReloadsTotal.Inc() }),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func recordCompleted(e events.CommandCompletedEvent) {
	if e.Skipped {
		commandsSkippedTotal.WithLabelValues(e.Kind).Inc()
		updateSnapshot(func(s *Snapshot) { s.Skipped++ })
		return
	}
	commandsTotal.WithLabelValues(e.Kind).Inc()
	commandDuration.WithLabelValues(e.Kind).Observe((time.Duration(e.DurationMs) * time.Millisecond).Seconds())
	updateSnapshot(func(s *Snapshot) { s.Commands++ })
}

func recordFailed(e events.CommandFailedEvent) {
	commandFailuresTotal.WithLabelValues(e.Kind, e.Code).Inc()
	updateSnapshot(func(s *Snapshot) { s.Failures++ })
}

func recordDeviceMessage(e events.DeviceMessageEvent) {
	deviceMessagesTotal.WithLabelValues(e.Class).Inc()
	if e.Class == "error" {
		updateSnapshot(func(s *Snapshot) { s.DeviceErrors++ })
	}
}

func recordState(e events.StateChangedEvent) {
	st := e.State
	sequenceActive.Set(boolGauge(st.SequenceActive))
	stateStale.Set(boolGauge(st.Stale))
	if st.Brightness != nil {
		brightness.Set(float64(*st.Brightness))
	}
	if st.NA != nil {
		numericalAperture.Set(float64(*st.NA) / 100)
	}
	updateSnapshot(func(s *Snapshot) {
		s.SequenceActive = st.SequenceActive
		s.Stale = st.Stale
	})
}

func recordSequenceStarted(e events.SequenceStartedEvent) {
	pattern, _, _ := strings.Cut(e.Command, ".")
	sequencesStartedTotal.WithLabelValues(pattern).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// GetSnapshot returns a copy of the running totals.
func GetSnapshot() Snapshot {
	snapshotMu.RLock()
	defer snapshotMu.RUnlock()
	return snapshot
}

func updateSnapshot(update func(*Snapshot)) {
	snapshotMu.Lock()
	defer snapshotMu.Unlock()
	update(&snapshot)
}
