package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/types"
)

// fakeTransport answers written commands from a reply table and never blocks.
type fakeTransport struct {
	mu       sync.Mutex
	replies  map[string][]string
	queue    []string
	writes   []string
	writeErr error
	readErr  error
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{replies: make(map[string][]string)}
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, string(p))
	f.queue = append(f.queue, f.replies[strings.TrimSuffix(string(p), "\n")]...)
	return nil
}

func (f *fakeTransport) ReadLine(_ context.Context, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) > 0 {
		line := f.queue[0]
		f.queue = f.queue[1:]
		return line, true, nil
	}
	if f.readErr != nil {
		return "", false, f.readErr
	}
	return "", false, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// fakeClock advances only when the session sleeps.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type() == typ {
			n++
		}
	}
	return n
}

func (r *recorder) last(typ uint32) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type() == typ {
			return r.events[i]
		}
	}
	return nil
}

func newTestSession(t *testing.T, ft *fakeTransport, opts ...Option) (*Session, *fakeClock, *recorder) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)}
	rec := &recorder{}
	base := []Option{WithClock(clock.now, clock.sleep), WithPublisher(rec), WithID("test-session")}
	s := New(ft, append(base, opts...)...)
	return s, clock, rec
}

func TestSession_ColorThenPattern(t *testing.T) {
	ft := newFakeTransport()
	s, clock, _ := newTestSession(t, ft)
	ctx := context.Background()

	if err := s.SetColor(ctx, protocol.PresetColor(protocol.ColorGreen)); err != nil {
		t.Fatalf("SetColor() error = %v", err)
	}
	if err := s.ShowPattern(ctx, protocol.PatternBrightfield); err != nil {
		t.Fatalf("ShowPattern() error = %v", err)
	}

	if got, want := ft.written(), []string{"sc.green\n", "bf\n"}; !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
	delays := DefaultSettleDelays()
	if got, want := clock.slept(), []time.Duration{delays.Color, delays.Pattern}; !reflect.DeepEqual(got, want) {
		t.Errorf("settle waits = %v, want %v", got, want)
	}

	st := s.State()
	if st.Color == nil || st.Color.Name != "green" {
		t.Errorf("State().Color = %+v, want green", st.Color)
	}
	if st.Pattern != "bf" {
		t.Errorf("State().Pattern = %q, want bf", st.Pattern)
	}
	if st.SessionID != "test-session" {
		t.Errorf("State().SessionID = %q", st.SessionID)
	}
}

func TestSession_DeviceErrorLeavesStateUnchanged(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["rdpc.10.2"] = []string{"ERROR: delay too short"}
	s, _, rec := newTestSession(t, ft)
	ctx := context.Background()

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	before := s.State()

	err := s.RunDpcSequence(ctx, protocol.SequenceParams{DelayMs: 10, Acquisitions: 2})
	if !protocol.IsCode(err, protocol.ErrDeviceError) {
		t.Fatalf("RunDpcSequence() error = %v, want %s", err, protocol.ErrDeviceError)
	}
	var perr *protocol.Error
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T", err)
	}
	if perr.Raw != "ERROR: delay too short" {
		t.Errorf("Raw = %q, want verbatim device line", perr.Raw)
	}
	if perr.Command != "rdpc.10.2" {
		t.Errorf("Command = %q, want rdpc.10.2", perr.Command)
	}

	after := s.State()
	if !reflect.DeepEqual(before, after) {
		t.Errorf("state changed after device error:\nbefore %+v\nafter  %+v", before, after)
	}
	if after.SequenceActive {
		t.Error("SequenceActive = true after rejected sequence")
	}
	if rec.count(events.TypeDeviceMessage) != 1 {
		t.Errorf("device message events = %d, want 1", rec.count(events.TypeDeviceMessage))
	}
	failed, ok := rec.last(events.TypeCommandFailed).(events.CommandFailedEvent)
	if !ok || failed.Code != string(protocol.ErrDeviceError) || failed.Raw != "ERROR: delay too short" {
		t.Errorf("CommandFailedEvent = %+v", failed)
	}
}

func TestSession_BrightnessReflected(t *testing.T) {
	ft := newFakeTransport()
	s, _, rec := newTestSession(t, ft)

	if err := s.SetBrightness(context.Background(), 128); err != nil {
		t.Fatalf("SetBrightness() error = %v", err)
	}
	st := s.State()
	if st.Brightness == nil || *st.Brightness != 128 {
		t.Errorf("State().Brightness = %v, want 128", st.Brightness)
	}

	changed, ok := rec.last(events.TypeStateChanged).(events.StateChangedEvent)
	if !ok || changed.State.Brightness == nil || *changed.State.Brightness != 128 {
		t.Errorf("StateChangedEvent = %+v", changed)
	}
}

func TestSession_InvalidParameterNeverTransmits(t *testing.T) {
	ft := newFakeTransport()
	s, _, rec := newTestSession(t, ft)
	ctx := context.Background()

	calls := []func() error{
		func() error { return s.SetBrightness(ctx, 256) },
		func() error { return s.SetNA(ctx, 101) },
		func() error { return s.DrawLeds(ctx, nil) },
		func() error { return s.ShowPattern(ctx, "dpc.x") },
		func() error { _, err := s.Do(ctx, nil); return err },
	}
	for i, call := range calls {
		if err := call(); !protocol.IsCode(err, protocol.ErrInvalidParameter) {
			t.Errorf("call %d error = %v, want %s", i, err, protocol.ErrInvalidParameter)
		}
	}
	if w := ft.written(); len(w) != 0 {
		t.Errorf("writes = %q, want none", w)
	}
	if rec.count(events.TypeCommandFailed) != len(calls) {
		t.Errorf("failed events = %d, want %d", rec.count(events.TypeCommandFailed), len(calls))
	}
}

func TestSession_SequenceRequiresClear(t *testing.T) {
	ft := newFakeTransport()
	s, _, _ := newTestSession(t, ft)
	ctx := context.Background()
	params := protocol.SequenceParams{DelayMs: 500, Acquisitions: 2}

	if err := s.RunDpcSequence(ctx, params); !protocol.IsCode(err, protocol.ErrSequenceNotArmed) {
		t.Fatalf("RunDpcSequence() without clear error = %v, want %s", err, protocol.ErrSequenceNotArmed)
	}
	if w := ft.written(); len(w) != 0 {
		t.Fatalf("writes = %q, want none", w)
	}

	// Pattern drawing disarms, settings do not.
	s.Clear(ctx)
	s.ShowPattern(ctx, protocol.PatternBrightfield)
	if err := s.RunFpmSequence(ctx, protocol.SequenceParams{DelayMs: 40, Acquisitions: 1, MaxNA: 25}); !protocol.IsCode(err, protocol.ErrSequenceNotArmed) {
		t.Errorf("sequence after pattern error = %v, want %s", err, protocol.ErrSequenceNotArmed)
	}

	s.Clear(ctx)
	s.SetColor(ctx, protocol.PresetColor(protocol.ColorRed))
	s.SetBrightness(ctx, 64)
	if err := s.RunDpcSequence(ctx, params); err != nil {
		t.Errorf("sequence after clear and settings error = %v", err)
	}
}

func TestSession_SequenceWithoutClearPolicyOff(t *testing.T) {
	ft := newFakeTransport()
	s, _, _ := newTestSession(t, ft, WithRequireClear(false))

	if err := s.RunDpcSequence(context.Background(), protocol.SequenceParams{DelayMs: 500, Acquisitions: 2}); err != nil {
		t.Fatalf("RunDpcSequence() error = %v", err)
	}
	if w := ft.written(); len(w) != 1 || w[0] != "rdpc.500.2\n" {
		t.Errorf("writes = %q, want rdpc.500.2", w)
	}
}

func TestSession_ClearAbortsSequence(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["na"] = []string{"NA.20"}
	s, clock, rec := newTestSession(t, ft)
	ctx := context.Background()

	s.Clear(ctx)
	if err := s.RunDpcSequence(ctx, protocol.SequenceParams{DelayMs: 500, Acquisitions: 2}); err != nil {
		t.Fatalf("RunDpcSequence() error = %v", err)
	}
	st := s.State()
	if !st.SequenceActive || st.Pattern != types.PatternDpcSeq {
		t.Fatalf("State() = %+v, want active rdpc", st)
	}
	if got := clock.slept()[1]; got != DefaultSettleDelays().Sequence {
		t.Errorf("sequence settle = %v, want %v", got, DefaultSettleDelays().Sequence)
	}
	if rec.count(events.TypeSequenceStarted) != 1 {
		t.Error("SequenceStartedEvent not published")
	}

	if err := s.SetBrightness(ctx, 5); !protocol.IsCode(err, protocol.ErrSequenceActive) {
		t.Errorf("SetBrightness() during sequence error = %v, want %s", err, protocol.ErrSequenceActive)
	}
	if _, err := s.QueryNA(ctx); err != nil {
		t.Errorf("QueryNA() during sequence error = %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() during sequence error = %v", err)
	}
	st = s.State()
	if st.SequenceActive || st.Pattern != types.PatternCleared || !st.Armed {
		t.Errorf("State() after abort = %+v", st)
	}
	aborted, ok := rec.last(events.TypeSequenceAborted).(events.SequenceAbortedEvent)
	if !ok || aborted.Pattern != types.PatternDpcSeq {
		t.Errorf("SequenceAbortedEvent = %+v", aborted)
	}
}

func TestSession_TerminatorAcknowledges(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["sb.1"] = []string{"Setting brightness", protocol.ResponseTerminator}
	s, clock, _ := newTestSession(t, ft, WithAckMode(AckTerminator, time.Second))

	resp, err := s.Do(context.Background(), protocol.SetBrightness{Value: 1})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !resp.Acknowledged {
		t.Error("Acknowledged = false, want true")
	}
	if len(resp.Lines) != 1 || resp.Lines[0] != "Setting brightness" {
		t.Errorf("Lines = %q", resp.Lines)
	}
	if s := clock.slept(); len(s) != 0 {
		t.Errorf("settle waits after terminator = %v, want none", s)
	}
}

func TestSession_ErrorBeforeTerminatorRejects(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["sb.5"] = []string{"ERROR: value rejected " + protocol.ResponseTerminator}
	s, _, _ := newTestSession(t, ft, WithAckMode(AckTerminator, time.Second))

	err := s.SetBrightness(context.Background(), 5)
	if !protocol.IsCode(err, protocol.ErrDeviceError) {
		t.Fatalf("SetBrightness() error = %v, want %s", err, protocol.ErrDeviceError)
	}
	var perr *protocol.Error
	if errors.As(err, &perr) && perr.Message != "value rejected" {
		t.Errorf("Message = %q, want %q", perr.Message, "value rejected")
	}
	if st := s.State(); st.Brightness != nil {
		t.Errorf("Brightness = %d after rejected command, want unset", *st.Brightness)
	}
}

func TestSession_MissingTerminatorInvalidates(t *testing.T) {
	ft := newFakeTransport()
	s, _, rec := newTestSession(t, ft, WithAckMode(AckTerminator, time.Second))
	ctx := context.Background()

	err := s.SetBrightness(ctx, 2)
	if !protocol.IsCode(err, protocol.ErrTransportFailure) {
		t.Fatalf("SetBrightness() error = %v, want %s", err, protocol.ErrTransportFailure)
	}
	if !errors.Is(err, ErrAckTimeout) {
		t.Errorf("error %v does not wrap ErrAckTimeout", err)
	}

	if err := s.SetBrightness(ctx, 3); !protocol.IsCode(err, protocol.ErrSessionInvalid) {
		t.Errorf("next call error = %v, want %s", err, protocol.ErrSessionInvalid)
	}
	if w := ft.written(); len(w) != 1 {
		t.Errorf("writes = %q, want only the first command", w)
	}
	if rec.count(events.TypeSessionInvalidated) != 1 {
		t.Errorf("invalidated events = %d, want 1", rec.count(events.TypeSessionInvalidated))
	}
	if !s.State().Stale {
		t.Error("State().Stale = false after invalidation")
	}
}

func TestSession_SequenceIgnoresAckMode(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["x"] = []string{protocol.ResponseTerminator}
	s, _, _ := newTestSession(t, ft, WithAckMode(AckTerminator, time.Second))
	ctx := context.Background()

	s.Clear(ctx)
	if err := s.RunDpcSequence(ctx, protocol.SequenceParams{DelayMs: 100, Acquisitions: 1}); err != nil {
		t.Errorf("RunDpcSequence() error = %v, want success without terminator", err)
	}
}

func TestSession_TransportFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeTransport)
		cause error
	}{
		{"write", func(ft *fakeTransport) { ft.writeErr = io.ErrClosedPipe }, io.ErrClosedPipe},
		{"read", func(ft *fakeTransport) { ft.readErr = io.EOF }, io.EOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := newFakeTransport()
			tt.setup(ft)
			s, _, _ := newTestSession(t, ft)
			ctx := context.Background()

			err := s.Clear(ctx)
			if !protocol.IsCode(err, protocol.ErrTransportFailure) {
				t.Fatalf("Clear() error = %v, want %s", err, protocol.ErrTransportFailure)
			}

			ft.writeErr, ft.readErr = nil, nil
			err = s.Clear(ctx)
			if !protocol.IsCode(err, protocol.ErrSessionInvalid) {
				t.Fatalf("second Clear() error = %v, want %s", err, protocol.ErrSessionInvalid)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("error %v does not wrap %v", err, tt.cause)
			}
			if s.Err() == nil {
				t.Error("Err() = nil after transport failure")
			}
		})
	}
}

func TestSession_SkipsRedundantSettings(t *testing.T) {
	ft := newFakeTransport()
	s, _, rec := newTestSession(t, ft)
	ctx := context.Background()

	s.SetBrightness(ctx, 10)
	resp, err := s.Do(ctx, protocol.SetBrightness{Value: 10})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !resp.Skipped {
		t.Error("Skipped = false for repeated brightness")
	}
	s.SetColor(ctx, protocol.RGB(1, 2, 3))
	s.SetColor(ctx, protocol.RGB(1, 2, 3))
	s.ShowPattern(ctx, protocol.PatternAnnulus)
	s.ShowPattern(ctx, protocol.PatternAnnulus)

	want := []string{"sb.10\n", "sc.1.2.3\n", "an\n", "an\n"}
	if got := ft.written(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
	if rec.count(events.TypeCommandCompleted) != 6 {
		t.Errorf("completed events = %d, want 6", rec.count(events.TypeCommandCompleted))
	}
}

func TestSession_SkipRedundantDisabled(t *testing.T) {
	ft := newFakeTransport()
	s, _, _ := newTestSession(t, ft, WithSkipRedundant(false))
	ctx := context.Background()

	s.SetNA(ctx, 30)
	s.SetNA(ctx, 30)
	if w := ft.written(); len(w) != 2 {
		t.Errorf("writes = %q, want both commands", w)
	}
}

func TestSession_LedRangeFromProperties(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["machine"] = []string{protocol.ResponseTerminator}
	ft.replies["pprops"] = []string{"{'device_name': 'bench', 'led_count': '4'}", protocol.ResponseTerminator}
	s, _, _ := newTestSession(t, ft)
	ctx := context.Background()

	props, err := s.Handshake(ctx)
	if err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}
	if props.LedCount.Int() != 4 || props.DeviceName != "bench" {
		t.Errorf("props = %+v", props)
	}

	if err := s.DrawLeds(ctx, []int{1, 4}); !protocol.IsCode(err, protocol.ErrInvalidParameter) {
		t.Errorf("DrawLeds() out of range error = %v, want %s", err, protocol.ErrInvalidParameter)
	}
	if err := s.DrawLeds(ctx, []int{0, 3, 3}); err != nil {
		t.Fatalf("DrawLeds() error = %v", err)
	}

	want := []string{"machine\n", "pprops\n", "l.0.3.3\n"}
	if got := ft.written(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
	st := s.State()
	if st.Pattern != types.PatternLeds || !reflect.DeepEqual(st.LedSubset, []int{0, 3, 3}) {
		t.Errorf("State() = %+v", st)
	}
}

func TestSession_MalformedQueryResponse(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["na"] = []string{"garbage"}
	s, _, _ := newTestSession(t, ft)

	if _, err := s.QueryNA(context.Background()); !protocol.IsCode(err, protocol.ErrUnexpectedResponse) {
		t.Errorf("QueryNA() error = %v, want %s", err, protocol.ErrUnexpectedResponse)
	}
	if s.State().NA != nil {
		t.Error("NA cached from malformed response")
	}
}

func TestSession_SettleTableChanges(t *testing.T) {
	ft := newFakeTransport()
	s, clock, _ := newTestSession(t, ft)
	ctx := context.Background()

	s.SetSettleDelays(SettleDelays{Default: 10 * time.Millisecond, Color: 30 * time.Millisecond})
	s.SetColor(ctx, protocol.PresetColor(protocol.ColorRed))
	s.ShowPattern(ctx, protocol.PatternBrightfield)

	want := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond}
	if got := clock.slept(); !reflect.DeepEqual(got, want) {
		t.Errorf("settle waits = %v, want %v", got, want)
	}
}

func TestSession_CancelDuringSettleMarksStale(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["na"] = []string{"NA.12"}
	ft.replies["sad"] = []string{"DZ.50"}
	canceling := func(context.Context, time.Duration) error { return context.Canceled }
	s, _, _ := newTestSession(t, ft)
	WithClock(nil, canceling)(s)
	ctx := context.Background()

	err := s.SetBrightness(ctx, 9)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SetBrightness() error = %v, want context.Canceled", err)
	}
	st := s.State()
	if !st.Stale {
		t.Error("State().Stale = false after interrupted command")
	}
	if st.Brightness != nil {
		t.Errorf("Brightness = %v, want unset", *st.Brightness)
	}

	clock := &fakeClock{}
	WithClock(nil, clock.sleep)(s)
	if err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	st = s.State()
	if st.Stale || st.NA == nil || *st.NA != 12 || st.ArrayDistanceMm == nil || *st.ArrayDistanceMm != 50 {
		t.Errorf("State() after Sync = %+v", st)
	}
}

func TestSession_ResendAfterInterruptAndSync(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["na"] = []string{"NA.12"}
	ft.replies["sad"] = []string{"DZ.50"}
	s, clock, _ := newTestSession(t, ft)
	ctx := context.Background()

	if err := s.SetBrightness(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if err := s.SetColor(ctx, protocol.PresetColor(protocol.ColorRed)); err != nil {
		t.Fatal(err)
	}

	WithClock(nil, func(context.Context, time.Duration) error { return context.Canceled })(s)
	if err := s.SetBrightness(ctx, 200); !errors.Is(err, context.Canceled) {
		t.Fatalf("SetBrightness(200) error = %v, want context.Canceled", err)
	}
	if st := s.State(); st.Brightness != nil {
		t.Errorf("Brightness = %d after interrupted sb.200, want unset", *st.Brightness)
	}

	WithClock(nil, clock.sleep)(s)
	if err := s.Sync(ctx); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	st := s.State()
	if st.Stale || st.Brightness != nil || st.Color != nil || st.Pattern != "" {
		t.Errorf("State() after Sync = %+v, want unreportable values unset", st)
	}

	resp, err := s.Do(ctx, protocol.SetBrightness{Value: 100})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Skipped {
		t.Error("sb.100 skipped after the device last received sb.200")
	}
	resp, err = s.Do(ctx, protocol.SetColor{Color: protocol.PresetColor(protocol.ColorRed)})
	if err != nil || resp.Skipped {
		t.Errorf("sc.red after Sync: skipped=%v err=%v", resp != nil && resp.Skipped, err)
	}

	want := []string{"sb.100\n", "sc.red\n", "sb.200\n", "na\n", "sad\n", "sb.100\n", "sc.red\n"}
	if got := ft.written(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
}

func TestSession_InterruptedSequenceBlocksUntilClear(t *testing.T) {
	ft := newFakeTransport()
	s, clock, _ := newTestSession(t, ft)
	ctx := context.Background()

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	WithClock(nil, func(context.Context, time.Duration) error { return context.Canceled })(s)
	if err := s.RunDpcSequence(ctx, protocol.SequenceParams{DelayMs: 100, Acquisitions: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunDpcSequence() error = %v, want context.Canceled", err)
	}
	WithClock(nil, clock.sleep)(s)

	if err := s.ShowPattern(ctx, protocol.PatternBrightfield); !protocol.IsCode(err, protocol.ErrSequenceActive) {
		t.Errorf("ShowPattern() after interrupted sequence = %v, want SEQUENCE_ACTIVE", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if st := s.State(); st.SequenceActive || !st.Armed {
		t.Errorf("State() after clear = %+v", st)
	}
}

func TestSession_CanceledBeforeTransmit(t *testing.T) {
	ft := newFakeTransport()
	s, _, _ := newTestSession(t, ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Clear(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Clear() error = %v, want context.Canceled", err)
	}
	if w := ft.written(); len(w) != 0 {
		t.Errorf("writes = %q, want none", w)
	}
	if s.State().Stale {
		t.Error("State().Stale = true although nothing was sent")
	}
}

func TestSession_ResetForgetsState(t *testing.T) {
	ft := newFakeTransport()
	s, clock, _ := newTestSession(t, ft)
	ctx := context.Background()

	s.SetBrightness(ctx, 50)
	s.SetAutoClear(ctx, true)
	s.Clear(ctx)
	s.RunDpcSequence(ctx, protocol.SequenceParams{DelayMs: 100, Acquisitions: 1})

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	st := s.State()
	if st.Brightness != nil || st.AutoClear != nil || st.SequenceActive || st.Pattern != "" {
		t.Errorf("State() after reset = %+v", st)
	}
	sleeps := clock.slept()
	if sleeps[len(sleeps)-1] != DefaultSettleDelays().Reset {
		t.Errorf("reset settle = %v", sleeps[len(sleeps)-1])
	}
}

func TestSession_QueriesParseResponses(t *testing.T) {
	ft := newFakeTransport()
	ft.replies["na"] = []string{"NA.42", protocol.ResponseTerminator}
	ft.replies["sad"] = []string{"DZ.62.5", protocol.ResponseTerminator}
	ft.replies["ptr"] = []string{"Trigger 0: 500 us", "Trigger 1: 0 us", protocol.ResponseTerminator}
	ft.replies["pledpos"] = []string{`{"led_position_list_cartesian": {"0": [0, 0, 50]}}`}
	ft.replies["pledposna"] = []string{`{"led_position_list_na": {"0": [0, 0]}}`}
	s, _, _ := newTestSession(t, ft)
	ctx := context.Background()

	na, err := s.QueryNA(ctx)
	if err != nil || na != 42 {
		t.Errorf("QueryNA() = %d, %v, want 42", na, err)
	}
	dist, err := s.QueryArrayDistance(ctx)
	if err != nil || dist != 62.5 {
		t.Errorf("QueryArrayDistance() = %v, %v, want 62.5", dist, err)
	}
	if st := s.State(); *st.NA != 42 || *st.ArrayDistanceMm != 63 {
		t.Errorf("State() = NA %d, distance %d", *st.NA, *st.ArrayDistanceMm)
	}

	text, err := s.TriggerSettings(ctx)
	if err != nil || text != "Trigger 0: 500 us\nTrigger 1: 0 us" {
		t.Errorf("TriggerSettings() = %q, %v", text, err)
	}
	positions, err := s.LedPositions(ctx)
	if err != nil || len(positions) != 1 || positions[0].Z != 50 {
		t.Errorf("LedPositions() = %+v, %v", positions, err)
	}
	naPositions, err := s.LedPositionsNA(ctx)
	if err != nil || len(naPositions) != 1 {
		t.Errorf("LedPositionsNA() = %+v, %v", naPositions, err)
	}
}

func TestSession_Close(t *testing.T) {
	ft := newFakeTransport()
	s, _, _ := newTestSession(t, ft)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !ft.closed {
		t.Error("transport not closed")
	}
	if err := s.Clear(context.Background()); !protocol.IsCode(err, protocol.ErrSessionInvalid) {
		t.Errorf("Clear() after Close error = %v, want %s", err, protocol.ErrSessionInvalid)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSession_Invalidate(t *testing.T) {
	ft := newFakeTransport()
	s, _, rec := newTestSession(t, ft)

	s.Invalidate(errors.New("device removed"))
	if !protocol.IsCode(s.Err(), protocol.ErrSessionInvalid) {
		t.Errorf("Err() = %v, want %s", s.Err(), protocol.ErrSessionInvalid)
	}
	if rec.count(events.TypeSessionInvalidated) != 1 {
		t.Error("SessionInvalidatedEvent not published")
	}
}

func TestSession_SerializesCallers(t *testing.T) {
	ft := newFakeTransport()
	s := New(ft,
		WithSkipRedundant(false),
		WithSettleDelays(SettleDelays{Default: time.Millisecond}),
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SetBrightness(ctx, i); err != nil {
				t.Errorf("SetBrightness(%d) error = %v", i, err)
			}
		}()
	}
	wg.Wait()

	writes := ft.written()
	if len(writes) != 8 {
		t.Fatalf("writes = %d, want 8", len(writes))
	}
	seen := make(map[string]bool)
	for _, w := range writes {
		seen[w] = true
	}
	for i := range 8 {
		if !seen[fmt.Sprintf("sb.%d\n", i)] {
			t.Errorf("missing write sb.%d", i)
		}
	}
}
