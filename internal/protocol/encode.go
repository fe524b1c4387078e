package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Encode validates r and returns its wire form without a line terminator.
func Encode(r Request) ([]byte, error) {
	if r == nil {
		return nil, invalidf("nil request")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return []byte(r.encode()), nil
}

// EncodeString is Encode returning a string.
func EncodeString(r Request) (string, error) {
	b, err := Encode(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// NAFromFloat converts an optical numerical aperture in [0, 1] to the x100 wire value.
func NAFromFloat(na float64) (int, error) {
	if math.IsNaN(na) || na < 0 || na > 1 {
		return 0, invalidf("numerical aperture %v outside [0, 1]", na)
	}
	return int(math.Round(na * 100)), nil
}

func joinInts(mnemonic string, values ...int) string {
	var b strings.Builder
	b.WriteString(mnemonic)
	for _, v := range values {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return invalidf("%s %d outside [%d, %d]", name, v, lo, hi)
	}
	return nil
}

func (Clear) Validate() error { return nil }
func (Clear) encode() string  { return "x" }

func (r ShowPattern) Validate() error {
	if !r.Name.Valid() {
		return invalidf("unknown pattern %q", r.Name)
	}
	return nil
}

func (r ShowPattern) encode() string { return string(r.Name) }

func (r SetColor) Validate() error {
	c := r.Color
	if !c.Custom() {
		switch c.Preset {
		case ColorRed, ColorGreen, ColorBlue, ColorWhite:
			return nil
		}
		return invalidf("unknown color preset %q", c.Preset)
	}
	for _, ch := range []struct {
		name string
		v    int
	}{{"red", c.R}, {"green", c.G}, {"blue", c.B}} {
		if err := checkRange(ch.name+" level", ch.v, 0, MaxColorLevel); err != nil {
			return err
		}
	}
	return nil
}

func (r SetColor) encode() string {
	if !r.Color.Custom() {
		return "sc." + string(r.Color.Preset)
	}
	return joinInts("sc", r.Color.R, r.Color.G, r.Color.B)
}

func (r SetBrightness) Validate() error { return checkRange("brightness", r.Value, 0, MaxBrightness) }
func (r SetBrightness) encode() string  { return joinInts("sb", r.Value) }

func (r SetNA) Validate() error { return checkRange("numerical aperture", r.Value, 0, MaxNA) }
func (r SetNA) encode() string  { return joinInts("na", r.Value) }

func (r SetArrayDistance) Validate() error {
	if r.Millimeters < 0 {
		return invalidf("array distance %d mm is negative", r.Millimeters)
	}
	return nil
}

func (r SetArrayDistance) encode() string { return joinInts("sad", r.Millimeters) }

func (r DrawLeds) Validate() error {
	if len(r.Indices) == 0 {
		return invalidf("LED list is empty")
	}
	for i, idx := range r.Indices {
		if idx < 0 {
			return invalidf("LED index %d at position %d is negative", idx, i)
		}
	}
	return nil
}

func (r DrawLeds) encode() string { return joinInts("l", r.Indices...) }

func (t TriggerModes) validate() error {
	for ch, m := range t {
		if m < TriggerOnce {
			return invalidf("trigger mode %d on channel %d is not one of >0, 0, -1, -2", m, ch)
		}
	}
	return nil
}

func (t TriggerModes) suffix() []int {
	if t.IsZero() {
		return nil
	}
	return []int{int(t[0]), int(t[1]), int(t[2])}
}

func (p SequenceParams) validate() error {
	// The hardware minimum delay is enforced by the firmware, not here.
	if p.DelayMs < 1 {
		return invalidf("sequence delay %d ms must be positive", p.DelayMs)
	}
	if p.Acquisitions < 1 {
		return invalidf("acquisition count %d must be at least 1", p.Acquisitions)
	}
	return p.Triggers.validate()
}

func (r RunDpcSequence) Validate() error { return r.Params.validate() }

func (r RunDpcSequence) encode() string {
	values := append([]int{r.Params.DelayMs, r.Params.Acquisitions}, r.Params.Triggers.suffix()...)
	return joinInts("rdpc", values...)
}

func (r RunFpmSequence) Validate() error {
	if err := r.Params.validate(); err != nil {
		return err
	}
	return checkRange("maximum numerical aperture", r.Params.MaxNA, 0, MaxNA)
}

func (r RunFpmSequence) encode() string {
	values := append([]int{r.Params.DelayMs, r.Params.Acquisitions, r.Params.MaxNA}, r.Params.Triggers.suffix()...)
	return joinInts("rfpm", values...)
}

func (Reset) Validate() error { return nil }
func (Reset) encode() string  { return "reset" }

func (MachineMode) Validate() error { return nil }
func (MachineMode) encode() string  { return "machine" }

func (SetAutoClear) Validate() error { return nil }

func (r SetAutoClear) encode() string {
	if r.Enabled {
		return "ac.1"
	}
	return "ac.0"
}

func (r SetupTrigger) Validate() error {
	if err := checkRange("trigger channel", r.Channel, 0, TriggerChannels-1); err != nil {
		return err
	}
	if r.PulseWidthUs < 0 || r.StartDelayUs < 0 {
		return invalidf("trigger timing %d/%d us must not be negative", r.PulseWidthUs, r.StartDelayUs)
	}
	return nil
}

func (r SetupTrigger) encode() string {
	return joinInts("trs", r.Channel, r.PulseWidthUs, r.StartDelayUs)
}

func (QueryProperties) Validate() error     { return nil }
func (QueryProperties) encode() string      { return "pprops" }
func (QueryNA) Validate() error             { return nil }
func (QueryNA) encode() string              { return "na" }
func (QueryArrayDistance) Validate() error  { return nil }
func (QueryArrayDistance) encode() string   { return "sad" }
func (QueryTriggers) Validate() error       { return nil }
func (QueryTriggers) encode() string        { return "ptr" }
func (QueryLedPositions) Validate() error   { return nil }
func (QueryLedPositions) encode() string    { return "pledpos" }
func (QueryLedPositionsNA) Validate() error { return nil }
func (QueryLedPositionsNA) encode() string  { return "pledposna" }

// Describe renders a request for logs, falling back to the kind when it does not encode.
func Describe(r Request) string {
	if r == nil {
		return "<nil>"
	}
	if err := r.Validate(); err != nil {
		return fmt.Sprintf("%s(invalid)", r.Kind())
	}
	return r.encode()
}
