// Package session sequences commands to one Illuminate device, enforcing
// settle intervals and the sequence policy, and caches what the device was
// last told.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/transport"
	"github.com/smazurov/illuminode/internal/types"
)

// ErrAckTimeout is the cause of a transport failure when no terminator arrived.
var ErrAckTimeout = errors.New("no response terminator")

// Response is the outcome of a transmitted command.
type Response struct {
	Command      string        `json:"command"`
	Lines        []string      `json:"lines,omitempty"`
	Acknowledged bool          `json:"acknowledged"`
	Skipped      bool          `json:"skipped,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Session owns a transport and allows one command in flight at a time.
type Session struct {
	id            string
	transport     transport.Transport
	decoder       *protocol.Decoder
	events        Publisher
	logger        *slog.Logger
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
	ackMode       AckMode
	ackTimeout    time.Duration
	requireClear  bool
	skipRedundant bool

	// sem serializes commands; acquiring it honors context cancellation.
	sem chan struct{}

	mu      sync.RWMutex
	settle  SettleDelays
	state   types.DeviceState
	props   *protocol.DeviceProperties
	invalid *protocol.Error
	closed  bool
}

// New creates a session over t. The session takes ownership of t.
func New(t transport.Transport, opts ...Option) *Session {
	s := &Session{
		id:            uuid.NewString(),
		transport:     t,
		decoder:       protocol.NewDecoder(),
		events:        nopPublisher{},
		logger:        logging.GetLogger("session"),
		now:           time.Now,
		sleep:         sleepContext,
		ackMode:       AckSettle,
		ackTimeout:    DefaultAckTimeout,
		requireClear:  true,
		skipRedundant: true,
		settle:        DefaultSettleDelays(),
		sem:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)
	s.state = types.DeviceState{SessionID: s.id, UpdatedAt: s.now()}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns a copy of the cached device state.
func (s *Session) State() types.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// CachedProperties returns the last properties read from the device, or nil.
func (s *Session) CachedProperties() *protocol.DeviceProperties {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.props == nil {
		return nil
	}
	p := *s.props
	p.ColorChannels = slices.Clone(s.props.ColorChannels)
	return &p
}

// SettleDelays returns the active settle table.
func (s *Session) SettleDelays() SettleDelays {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settle
}

// SetSettleDelays replaces the settle table for subsequent commands.
func (s *Session) SetSettleDelays(d SettleDelays) {
	s.mu.Lock()
	s.settle = d
	s.mu.Unlock()
	s.logger.Info("Settle delays updated", "default", d.Default, "sequence", d.Sequence)
}

// Err returns a SESSION_INVALID error once the session can no longer be used.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	return nil
}

// Invalidate ends the session as if the transport had failed.
func (s *Session) Invalidate(cause error) {
	s.invalidate("", "session invalidated", cause)
}

// Close releases the transport. Later calls fail with SESSION_INVALID.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("Closing session")
	return s.transport.Close()
}

// Do validates, transmits and settles one request.
func (s *Session) Do(ctx context.Context, req protocol.Request) (*Response, error) {
	kind := kindOf(req)
	wire, err := protocol.EncodeString(req)
	if err != nil {
		return nil, s.failed(kind, protocol.Describe(req), err)
	}
	if err := s.checkLeds(req, wire); err != nil {
		return nil, s.failed(kind, wire, err)
	}

	if err := s.acquire(ctx); err != nil {
		return nil, s.failed(kind, wire, fmt.Errorf("%s: waiting for device: %w", wire, err))
	}
	defer s.release()

	if err := s.admit(req, wire); err != nil {
		return nil, s.failed(kind, wire, err)
	}

	if s.redundant(req) {
		s.logger.Debug("Skipping command matching cached state", "command", wire)
		resp := &Response{Command: wire, Skipped: true}
		s.completed(kind, resp)
		return resp, nil
	}

	s.discardUnsolicited()

	start := s.now()
	if err := s.transport.Write([]byte(wire + protocol.CommandTerminator)); err != nil {
		return nil, s.failed(kind, wire, s.invalidate(wire, "write failed", err))
	}

	resp, err := s.await(ctx, req, wire, start)
	if err != nil {
		return nil, s.failed(kind, wire, err)
	}

	snapshot, aborted, err := s.apply(req, resp)
	if err != nil {
		return nil, s.failed(kind, wire, err)
	}
	s.completed(kind, resp)
	s.announce(req, wire, snapshot, aborted)
	return resp, nil
}

func kindOf(req protocol.Request) protocol.Kind {
	if req == nil {
		return ""
	}
	return req.Kind()
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		<-s.sem
		return err
	}
	return nil
}

func (s *Session) release() {
	<-s.sem
}

func (s *Session) usableLocked() *protocol.Error {
	if s.closed {
		return protocol.NewError(protocol.ErrSessionInvalid, "session closed", nil)
	}
	if s.invalid != nil {
		return protocol.NewError(protocol.ErrSessionInvalid, "session invalidated by transport failure", s.invalid)
	}
	return nil
}

// checkLeds rejects indices beyond the LED count the device reported.
func (s *Session) checkLeds(req protocol.Request, wire string) error {
	draw, ok := req.(protocol.DrawLeds)
	if !ok {
		return nil
	}
	s.mu.RLock()
	count := 0
	if s.props != nil {
		count = s.props.LedCount.Int()
	}
	s.mu.RUnlock()
	if count <= 0 {
		return nil
	}
	for _, idx := range draw.Indices {
		if idx >= count {
			return protocol.NewError(protocol.ErrInvalidParameter,
				fmt.Sprintf("LED index %d out of range, device has %d LEDs", idx, count), nil).WithCommand(wire)
		}
	}
	return nil
}

// admit applies session validity and the sequencing policy.
func (s *Session) admit(req protocol.Request, wire string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.usableLocked(); err != nil {
		return err.WithCommand(wire)
	}

	kind := req.Kind()
	if s.state.SequenceActive && !kind.IsQuery() && kind != protocol.KindClear && kind != protocol.KindReset {
		return protocol.NewError(protocol.ErrSequenceActive,
			"a sequence is running, send clear first", nil).WithCommand(wire)
	}
	if kind.IsSequence() && !s.state.Armed {
		if s.requireClear {
			return protocol.NewError(protocol.ErrSequenceNotArmed,
				"send clear before starting a sequence", nil).WithCommand(wire)
		}
		s.logger.Warn("Starting sequence without a preceding clear, device behavior is undefined", "command", wire)
	}
	return nil
}

// redundant reports whether a setting request matches the cached state.
func (s *Session) redundant(req protocol.Request) bool {
	if !s.skipRedundant {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.Stale {
		return false
	}

	switch r := req.(type) {
	case protocol.SetBrightness:
		return st.Brightness != nil && *st.Brightness == r.Value
	case protocol.SetNA:
		return st.NA != nil && *st.NA == r.Value
	case protocol.SetArrayDistance:
		return st.ArrayDistanceMm != nil && *st.ArrayDistanceMm == r.Millimeters
	case protocol.SetColor:
		return st.Color != nil && *st.Color == *colorState(r.Color)
	case protocol.SetAutoClear:
		return st.AutoClear != nil && *st.AutoClear == r.Enabled
	}
	return false
}

func (s *Session) discardUnsolicited() {
	f, ok := s.transport.(transport.Flusher)
	if !ok {
		return
	}
	for _, line := range f.Flush() {
		s.logger.Debug("Discarding unsolicited device output", "line", line)
	}
}

// await collects response lines until the settle window ends, an error line
// arrives, or the terminator acknowledges the command.
func (s *Session) await(ctx context.Context, req protocol.Request, wire string, start time.Time) (*Response, error) {
	kind := kindOf(req)
	settle := s.SettleDelays().For(kind)
	deadline := start.Add(settle)

	requireAck := s.ackMode == AckTerminator && !kind.IsSequence()
	readUntil := deadline
	if requireAck {
		readUntil = start.Add(max(settle, s.ackTimeout))
	}

	resp := &Response{Command: wire}
	for !resp.Acknowledged {
		remaining := readUntil.Sub(s.now())
		if remaining <= 0 {
			break
		}
		raw, ok, err := s.transport.ReadLine(ctx, remaining)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, s.interrupted(req, wire, ctxErr)
			}
			return nil, s.invalidate(wire, "read failed", err)
		}
		if !ok {
			break
		}

		line := s.decoder.Decode(raw)
		switch line.Class {
		case protocol.LineError:
			s.publishLine(wire, line)
			return nil, s.decoder.DeviceError(wire, line.Text)
		case protocol.LineTerminator:
			resp.Acknowledged = true
			if line.Text != "" {
				resp.Lines = append(resp.Lines, line.Text)
				s.publishLine(wire, protocol.Line{Text: line.Text, Class: protocol.LineInfo})
			}
		default:
			resp.Lines = append(resp.Lines, line.Text)
			s.publishLine(wire, line)
		}
	}

	if requireAck && !resp.Acknowledged {
		return nil, s.invalidate(wire, fmt.Sprintf("no acknowledgment within %s", readUntil.Sub(start)), ErrAckTimeout)
	}
	if !resp.Acknowledged {
		if rest := deadline.Sub(s.now()); rest > 0 {
			if err := s.sleep(ctx, rest); err != nil {
				return nil, s.interrupted(req, wire, err)
			}
		}
	}
	resp.Elapsed = s.now().Sub(start)
	return resp, nil
}

// interrupted marks the cached state stale after a cancellation that
// happened once the command was on the wire. The device may or may not have
// applied req, so the value it targets is forgotten.
func (s *Session) interrupted(req protocol.Request, wire string, err error) error {
	s.mu.Lock()
	s.forgetLocked(req)
	s.state.Stale = true
	s.state.UpdatedAt = s.now()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.logger.Warn("Command interrupted after transmit, state is stale", "command", wire, "error", err)
	s.publishState(snapshot)
	return fmt.Errorf("%s: interrupted after transmit: %w", wire, err)
}

// forgetLocked unsets the cached fields req may have changed. s.mu must be held.
func (s *Session) forgetLocked(req protocol.Request) {
	st := &s.state
	switch req.(type) {
	case protocol.SetBrightness:
		st.Brightness = nil
	case protocol.SetNA:
		st.NA = nil
	case protocol.SetArrayDistance:
		st.ArrayDistanceMm = nil
	case protocol.SetColor:
		st.Color = nil
	case protocol.SetAutoClear:
		st.AutoClear = nil
	case protocol.Clear, protocol.ShowPattern, protocol.DrawLeds:
		st.Pattern = ""
		st.LedSubset = nil
		st.Armed = false
	case protocol.RunDpcSequence, protocol.RunFpmSequence:
		st.Pattern = ""
		st.LedSubset = nil
		st.Armed = false
		// Only a clear is accepted until the device is known to be idle.
		st.SequenceActive = true
	case protocol.Reset:
		*st = types.DeviceState{SessionID: s.id}
	}
}

// invalidate records the first transport failure and returns it as TRANSPORT_FAILURE.
func (s *Session) invalidate(wire, msg string, cause error) *protocol.Error {
	perr := protocol.NewError(protocol.ErrTransportFailure, msg, cause).WithCommand(wire)

	s.mu.Lock()
	first := s.invalid == nil && !s.closed
	if s.invalid == nil {
		s.invalid = perr
		s.state.Stale = true
		s.state.UpdatedAt = s.now()
	}
	s.mu.Unlock()

	if first {
		s.logger.Error("Session invalidated", "command", wire, "error", perr)
		s.events.Publish(events.SessionInvalidatedEvent{
			SessionID: s.id,
			Command:   wire,
			Error:     perr.Error(),
			Timestamp: s.timestamp(),
		})
	}
	return perr
}

// apply updates the cached state after an accepted command. It returns the
// new snapshot when state changed and the pattern of an aborted sequence.
func (s *Session) apply(req protocol.Request, resp *Response) (*types.DeviceState, string, error) {
	var (
		parsedNA   int
		parsedDist float64
		props      *protocol.DeviceProperties
		err        error
	)
	switch req.(type) {
	case protocol.QueryNA:
		parsedNA, err = protocol.ParseNA(resp.Lines)
	case protocol.QueryArrayDistance:
		parsedDist, err = protocol.ParseArrayDistance(resp.Lines)
	case protocol.QueryProperties:
		props, err = protocol.ParseProperties(resp.Lines)
	}
	if err != nil {
		return nil, "", withCommand(err, resp.Command)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	wasActive, prevPattern := st.SequenceActive, st.Pattern

	switch r := req.(type) {
	case protocol.Clear:
		st.Pattern = types.PatternCleared
		st.LedSubset = nil
		st.SequenceActive = false
		st.Armed = true
	case protocol.ShowPattern:
		st.Pattern = string(r.Name)
		st.LedSubset = nil
		st.Armed = false
	case protocol.DrawLeds:
		st.Pattern = types.PatternLeds
		st.LedSubset = slices.Clone(r.Indices)
		st.Armed = false
	case protocol.RunDpcSequence:
		st.Pattern = types.PatternDpcSeq
		st.LedSubset = nil
		st.SequenceActive = true
		st.Armed = false
	case protocol.RunFpmSequence:
		st.Pattern = types.PatternFpmSeq
		st.LedSubset = nil
		st.SequenceActive = true
		st.Armed = false
	case protocol.SetColor:
		st.Color = colorState(r.Color)
	case protocol.SetBrightness:
		st.Brightness = ptr(r.Value)
	case protocol.SetNA:
		st.NA = ptr(r.Value)
	case protocol.SetArrayDistance:
		st.ArrayDistanceMm = ptr(r.Millimeters)
	case protocol.SetAutoClear:
		st.AutoClear = ptr(r.Enabled)
	case protocol.Reset:
		*st = types.DeviceState{SessionID: s.id}
	case protocol.QueryNA:
		st.NA = ptr(parsedNA)
	case protocol.QueryArrayDistance:
		st.ArrayDistanceMm = ptr(int(parsedDist + 0.5))
	case protocol.QueryProperties:
		s.props = props
		return nil, "", nil
	default:
		return nil, "", nil
	}
	st.UpdatedAt = s.now()

	aborted := ""
	if wasActive && !st.SequenceActive {
		aborted = prevPattern
	}
	snapshot := st.Clone()
	return &snapshot, aborted, nil
}

func withCommand(err error, wire string) error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.WithCommand(wire)
	}
	return fmt.Errorf("%s: %w", wire, err)
}

func colorState(c protocol.Color) *types.ColorState {
	if !c.Custom() {
		return &types.ColorState{Name: string(c.Preset)}
	}
	return &types.ColorState{Name: "custom", R: c.R, G: c.G, B: c.B}
}

func ptr[T any](v T) *T {
	return &v
}

func (s *Session) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func (s *Session) publishLine(wire string, line protocol.Line) {
	if line.Class == protocol.LineError {
		s.logger.Debug("Device reported error", "command", wire, "raw", line.Text)
	} else {
		s.logger.Debug("Device output", "command", wire, "line", line.Text)
	}
	s.events.Publish(events.DeviceMessageEvent{
		SessionID: s.id,
		Command:   wire,
		Class:     line.Class.String(),
		Line:      line.Text,
		Timestamp: s.timestamp(),
	})
}

func (s *Session) publishState(st types.DeviceState) {
	s.events.Publish(events.StateChangedEvent{State: st, Timestamp: s.timestamp()})
}

func (s *Session) completed(kind protocol.Kind, resp *Response) {
	s.logger.Debug("Command completed",
		"command", resp.Command,
		"acknowledged", resp.Acknowledged,
		"skipped", resp.Skipped,
		"elapsed", resp.Elapsed)
	s.events.Publish(events.CommandCompletedEvent{
		SessionID:    s.id,
		Command:      resp.Command,
		Kind:         string(kind),
		Acknowledged: resp.Acknowledged,
		Skipped:      resp.Skipped,
		DurationMs:   resp.Elapsed.Milliseconds(),
		Timestamp:    s.timestamp(),
	})
}

func (s *Session) announce(req protocol.Request, wire string, snapshot *types.DeviceState, aborted string) {
	if snapshot != nil {
		s.publishState(*snapshot)
	}
	if aborted != "" {
		s.logger.Info("Sequence aborted", "command", wire, "pattern", aborted)
		s.events.Publish(events.SequenceAbortedEvent{SessionID: s.id, Pattern: aborted, Timestamp: s.timestamp()})
	}

	var params protocol.SequenceParams
	switch r := req.(type) {
	case protocol.RunDpcSequence:
		params = r.Params
	case protocol.RunFpmSequence:
		params = r.Params
	default:
		return
	}
	s.logger.Info("Sequence started", "command", wire)
	s.events.Publish(events.SequenceStartedEvent{
		SessionID:    s.id,
		Command:      wire,
		DelayMs:      params.DelayMs,
		Acquisitions: params.Acquisitions,
		Timestamp:    s.timestamp(),
	})
}

// failed publishes a CommandFailedEvent and returns err unchanged.
func (s *Session) failed(kind protocol.Kind, wire string, err error) error {
	ev := events.CommandFailedEvent{
		SessionID: s.id,
		Command:   wire,
		Kind:      string(kind),
		Code:      errorCode(err),
		Message:   err.Error(),
		Timestamp: s.timestamp(),
	}
	var perr *protocol.Error
	if errors.As(err, &perr) {
		ev.Message = perr.Message
		ev.Raw = perr.Raw
	}
	s.logger.Debug("Command failed", "command", wire, "code", ev.Code, "error", err)
	s.events.Publish(ev)
	return err
}

func errorCode(err error) string {
	if code := protocol.CodeOf(err); code != "" {
		return string(code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "CANCELED"
	}
	return "INTERNAL"
}

// Text joins the response lines.
func (r *Response) Text() string {
	return strings.Join(r.Lines, "\n")
}
