package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
)

// SimConfig describes the simulated device.
type SimConfig struct {
	DeviceName string
	LedCount   int
	// MinDelayMs is the shortest sequence delay the simulated hardware accepts.
	MinDelayMs int
	// PitchMm is the spacing of the simulated LED grid.
	PitchMm float64
	// DistanceMm is the initial array distance.
	DistanceMm float64
	// Silent suppresses response terminators, like legacy firmware.
	Silent bool
}

// DefaultSimConfig returns the simulated quasi-dome defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		DeviceName: "illuminate-sim",
		LedCount:   593,
		MinDelayMs: 40,
		PitchMm:    4,
		DistanceMm: 50,
	}
}

type simTrigger struct {
	pulseUs int
	delayUs int
}

// Simulator is an in-memory Transport that answers like Illuminate firmware.
type Simulator struct {
	cfg    SimConfig
	lines  chan string
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	na       int
	distance float64
	triggers [protocol.TriggerChannels]simTrigger
	received []string
}

// NewSimulator returns a simulated device. Zero fields in cfg take defaults.
func NewSimulator(cfg SimConfig) *Simulator {
	def := DefaultSimConfig()
	if cfg.DeviceName == "" {
		cfg.DeviceName = def.DeviceName
	}
	if cfg.LedCount <= 0 {
		cfg.LedCount = def.LedCount
	}
	if cfg.MinDelayMs <= 0 {
		cfg.MinDelayMs = def.MinDelayMs
	}
	if cfg.PitchMm <= 0 {
		cfg.PitchMm = def.PitchMm
	}
	if cfg.DistanceMm <= 0 {
		cfg.DistanceMm = def.DistanceMm
	}
	return &Simulator{
		cfg:      cfg,
		lines:    make(chan string, 1024),
		logger:   logging.GetLogger("sim"),
		distance: cfg.DistanceMm,
	}
}

// Config returns the simulator configuration after defaults.
func (s *Simulator) Config() SimConfig {
	return s.cfg
}

// Received returns every command written so far.
func (s *Simulator) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

// Write handles one or more newline terminated commands.
func (s *Simulator) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for _, cmd := range strings.Split(string(p), "\n") {
		cmd = strings.TrimSpace(cmd)
		if cmd == "" {
			continue
		}
		s.received = append(s.received, cmd)
		s.logger.Debug("Simulated device received command", "command", cmd)
		s.respond(cmd)
		if !s.cfg.Silent {
			s.emit(protocol.ResponseTerminator)
		}
	}
	return nil
}

// ReadLine returns the next simulated response line.
func (s *Simulator) ReadLine(ctx context.Context, timeout time.Duration) (string, bool, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", false, ErrClosed
	}
	return receive(ctx, s.lines, timeout, func() error { return ErrClosed })
}

// Flush drops pending response lines.
func (s *Simulator) Flush() []string {
	return drain(s.lines)
}

// Close marks the simulator closed.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Simulator) emit(line string) {
	select {
	case s.lines <- line:
	default:
		s.logger.Warn("Simulated response buffer full, dropping line", "line", line)
	}
}

func (s *Simulator) fail(format string, args ...any) {
	s.emit(protocol.DefaultErrorMarker + ": " + fmt.Sprintf(format, args...))
}

func (s *Simulator) respond(cmd string) {
	req, err := protocol.Parse(cmd)
	if err != nil {
		if pe, ok := err.(*protocol.Error); ok {
			s.fail("%s", pe.Message)
			return
		}
		s.fail("%v", err)
		return
	}

	switch r := req.(type) {
	case protocol.RunDpcSequence:
		if r.Params.DelayMs < s.cfg.MinDelayMs {
			s.fail("delay %d ms is below hardware minimum %d ms", r.Params.DelayMs, s.cfg.MinDelayMs)
			return
		}
		s.emit(fmt.Sprintf("Running DPC sequence: %d acquisitions, %d ms delay", r.Params.Acquisitions, r.Params.DelayMs))
	case protocol.RunFpmSequence:
		if r.Params.DelayMs < s.cfg.MinDelayMs {
			s.fail("delay %d ms is below hardware minimum %d ms", r.Params.DelayMs, s.cfg.MinDelayMs)
			return
		}
		s.emit(fmt.Sprintf("Running FPM sequence: %d acquisitions, max NA %d", r.Params.Acquisitions, r.Params.MaxNA))
	case protocol.DrawLeds:
		for _, idx := range r.Indices {
			if idx >= s.cfg.LedCount {
				s.fail("LED %d out of range (0-%d)", idx, s.cfg.LedCount-1)
				return
			}
		}
	case protocol.SetNA:
		s.na = r.Value
	case protocol.SetArrayDistance:
		s.distance = float64(r.Millimeters)
	case protocol.SetupTrigger:
		s.triggers[r.Channel] = simTrigger{pulseUs: r.PulseWidthUs, delayUs: r.StartDelayUs}
	case protocol.Reset:
		s.na = 0
		s.distance = s.cfg.DistanceMm
		s.triggers = [protocol.TriggerChannels]simTrigger{}
		s.emit("Resetting device")
	case protocol.QueryNA:
		s.emit("NA." + strconv.Itoa(s.na))
	case protocol.QueryArrayDistance:
		s.emit("DZ." + strconv.FormatFloat(s.distance, 'f', -1, 64))
	case protocol.QueryTriggers:
		for ch, tr := range s.triggers {
			s.emit(fmt.Sprintf("Trigger %d: pulse %d us, delay %d us", ch, tr.pulseUs, tr.delayUs))
		}
	case protocol.QueryProperties:
		s.emit(s.propsLine())
	case protocol.QueryLedPositions:
		s.emit(s.positionsLine(false))
	case protocol.QueryLedPositionsNA:
		s.emit(s.positionsLine(true))
	}
}

func (s *Simulator) propsLine() string {
	return fmt.Sprintf("{'device_name': '%s', 'led_count': '%d', 'bit_depth': 8, "+
		"'trigger_input_count': %d, 'trigger_output_count': %d, 'color_channels': ['r', 'g', 'b'], "+
		"'color_channel_center_wavelengths': {'r': 0.63, 'g': 0.53, 'b': 0.47}}",
		s.cfg.DeviceName, s.cfg.LedCount, protocol.TriggerChannels, protocol.TriggerChannels)
}

func (s *Simulator) positionsLine(na bool) string {
	positions := simLedPositions(s.cfg.LedCount, s.cfg.PitchMm, s.distance)
	doc := make(map[string][]float64, len(positions))
	for _, p := range positions {
		key := strconv.Itoa(p.Index)
		if na {
			r := math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
			doc[key] = []float64{p.X / r, p.Y / r}
			continue
		}
		doc[key] = []float64{p.X, p.Y, p.Z}
	}

	name := "led_position_list_cartesian"
	if na {
		name = "led_position_list_na"
	}
	data, err := json.Marshal(map[string]any{name: doc})
	if err != nil {
		return protocol.DefaultErrorMarker + ": " + err.Error()
	}
	return string(data)
}

// simLedPositions lays LEDs out on square rings around a center LED at index 0.
func simLedPositions(n int, pitch, z float64) []protocol.LedPosition {
	out := make([]protocol.LedPosition, 0, n)
	if n <= 0 {
		return out
	}
	out = append(out, protocol.LedPosition{Index: 0, Z: z})
	for ring := 1; len(out) < n; ring++ {
		for x := -ring; x <= ring; x++ {
			for y := -ring; y <= ring; y++ {
				if max(abs(x), abs(y)) != ring {
					continue
				}
				if len(out) == n {
					return out
				}
				out = append(out, protocol.LedPosition{
					Index: len(out),
					X:     float64(x) * pitch,
					Y:     float64(y) * pitch,
					Z:     z,
				})
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
