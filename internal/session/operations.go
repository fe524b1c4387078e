package session

import (
	"context"

	"github.com/smazurov/illuminode/internal/protocol"
)

func (s *Session) run(ctx context.Context, req protocol.Request) error {
	_, err := s.Do(ctx, req)
	return err
}

// Clear turns all LEDs off and arms the next sequence. It aborts a running sequence.
func (s *Session) Clear(ctx context.Context) error {
	return s.run(ctx, protocol.Clear{})
}

// ShowPattern draws a static pattern.
func (s *Session) ShowPattern(ctx context.Context, p protocol.Pattern) error {
	return s.run(ctx, protocol.ShowPattern{Name: p})
}

// SetColor sets the illumination color.
func (s *Session) SetColor(ctx context.Context, c protocol.Color) error {
	return s.run(ctx, protocol.SetColor{Color: c})
}

// SetBrightness sets brightness in [0,255].
func (s *Session) SetBrightness(ctx context.Context, v int) error {
	return s.run(ctx, protocol.SetBrightness{Value: v})
}

// SetNA sets the numerical aperture as an integer x100.
func (s *Session) SetNA(ctx context.Context, na int) error {
	return s.run(ctx, protocol.SetNA{Value: na})
}

// SetArrayDistance sets the array to sample distance in millimeters.
func (s *Session) SetArrayDistance(ctx context.Context, mm int) error {
	return s.run(ctx, protocol.SetArrayDistance{Millimeters: mm})
}

// DrawLeds lights the given LEDs in order.
func (s *Session) DrawLeds(ctx context.Context, indices []int) error {
	return s.run(ctx, protocol.DrawLeds{Indices: indices})
}

// RunDpcSequence starts a DPC sequence. The device runs it autonomously.
func (s *Session) RunDpcSequence(ctx context.Context, p protocol.SequenceParams) error {
	return s.run(ctx, protocol.RunDpcSequence{Params: p})
}

// RunFpmSequence starts an FPM sequence. The device runs it autonomously.
func (s *Session) RunFpmSequence(ctx context.Context, p protocol.SequenceParams) error {
	return s.run(ctx, protocol.RunFpmSequence{Params: p})
}

// Reset resets the device and forgets all cached values.
func (s *Session) Reset(ctx context.Context) error {
	return s.run(ctx, protocol.Reset{})
}

// SetAutoClear toggles automatic clearing between patterns.
func (s *Session) SetAutoClear(ctx context.Context, enabled bool) error {
	return s.run(ctx, protocol.SetAutoClear{Enabled: enabled})
}

// SetupTrigger configures trigger channel timing.
func (s *Session) SetupTrigger(ctx context.Context, channel, pulseWidthUs, startDelayUs int) error {
	return s.run(ctx, protocol.SetupTrigger{Channel: channel, PulseWidthUs: pulseWidthUs, StartDelayUs: startDelayUs})
}

// Handshake switches the firmware to machine mode and reads its properties.
func (s *Session) Handshake(ctx context.Context) (*protocol.DeviceProperties, error) {
	if err := s.run(ctx, protocol.MachineMode{}); err != nil {
		return nil, err
	}
	return s.Properties(ctx)
}

// Properties reads and caches the device properties.
func (s *Session) Properties(ctx context.Context) (*protocol.DeviceProperties, error) {
	if err := s.run(ctx, protocol.QueryProperties{}); err != nil {
		return nil, err
	}
	return s.CachedProperties(), nil
}

// QueryNA reads the NA from the device and refreshes the cache.
func (s *Session) QueryNA(ctx context.Context) (int, error) {
	resp, err := s.Do(ctx, protocol.QueryNA{})
	if err != nil {
		return 0, err
	}
	return protocol.ParseNA(resp.Lines)
}

// QueryArrayDistance reads the array distance and refreshes the cache.
func (s *Session) QueryArrayDistance(ctx context.Context) (float64, error) {
	resp, err := s.Do(ctx, protocol.QueryArrayDistance{})
	if err != nil {
		return 0, err
	}
	return protocol.ParseArrayDistance(resp.Lines)
}

// TriggerSettings returns the firmware's trigger printout.
func (s *Session) TriggerSettings(ctx context.Context) (string, error) {
	resp, err := s.Do(ctx, protocol.QueryTriggers{})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// LedPositions returns LED positions in millimeters ordered by index.
func (s *Session) LedPositions(ctx context.Context) ([]protocol.LedPosition, error) {
	resp, err := s.Do(ctx, protocol.QueryLedPositions{})
	if err != nil {
		return nil, err
	}
	return protocol.ParseLedPositions(resp.Lines)
}

// LedPositionsNA returns LED positions in NA coordinates ordered by index.
func (s *Session) LedPositionsNA(ctx context.Context) ([]protocol.LedPositionNA, error) {
	resp, err := s.Do(ctx, protocol.QueryLedPositionsNA{})
	if err != nil {
		return nil, err
	}
	return protocol.ParseLedPositionsNA(resp.Lines)
}

// Sync re-reads NA and array distance and clears the stale flag. Values the
// firmware cannot report (brightness, color, auto clear, pattern and LED
// subset) are unset, so the next command setting them is always sent.
func (s *Session) Sync(ctx context.Context) error {
	if _, err := s.QueryNA(ctx); err != nil {
		return err
	}
	if _, err := s.QueryArrayDistance(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	st := &s.state
	st.Brightness = nil
	st.Color = nil
	st.AutoClear = nil
	st.Pattern = ""
	st.LedSubset = nil
	st.Stale = false
	st.UpdatedAt = s.now()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.publishState(snapshot)
	return nil
}
