package protocol

import "slices"

// Kind identifies the type of a request.
type Kind string

// Request kinds.
const (
	KindClear               Kind = "clear"
	KindPattern             Kind = "pattern"
	KindColor               Kind = "color"
	KindBrightness          Kind = "brightness"
	KindNA                  Kind = "na"
	KindArrayDistance       Kind = "array_distance"
	KindLeds                Kind = "leds"
	KindDpcSequence         Kind = "dpc_sequence"
	KindFpmSequence         Kind = "fpm_sequence"
	KindReset               Kind = "reset"
	KindMachineMode         Kind = "machine_mode"
	KindAutoClear           Kind = "auto_clear"
	KindTriggerSetup        Kind = "trigger_setup"
	KindQueryProperties     Kind = "query_properties"
	KindQueryNA             Kind = "query_na"
	KindQueryArrayDistance  Kind = "query_array_distance"
	KindQueryTriggers       Kind = "query_triggers"
	KindQueryLedPositions   Kind = "query_led_positions"
	KindQueryLedPositionsNA Kind = "query_led_positions_na"
)

// IsQuery reports whether requests of this kind only read device state.
func (k Kind) IsQuery() bool {
	switch k {
	case KindQueryProperties, KindQueryNA, KindQueryArrayDistance,
		KindQueryTriggers, KindQueryLedPositions, KindQueryLedPositionsNA:
		return true
	}
	return false
}

// IsSequence reports whether requests of this kind start an autonomous acquisition sequence.
func (k Kind) IsSequence() bool {
	return k == KindDpcSequence || k == KindFpmSequence
}

// Limits of the command grammar.
const (
	MaxBrightness   = 255
	MaxNA           = 100
	MaxColorLevel   = 255
	TriggerChannels = 3
)

// Request is a validated, encodable device command.
type Request interface {
	Kind() Kind
	Validate() error
	encode() string
}

// Pattern names a static illumination pattern.
type Pattern string

// Patterns understood by the firmware.
const (
	PatternBrightfield Pattern = "bf"
	PatternAnnulus     Pattern = "an"
	PatternDpcTop      Pattern = "dpc.t"
	PatternDpcBottom   Pattern = "dpc.b"
	PatternDpcLeft     Pattern = "dpc.l"
	PatternDpcRight    Pattern = "dpc.r"
	PatternColorDpc    Pattern = "cdpc"
)

// Patterns returns every static pattern in a stable order.
func Patterns() []Pattern {
	return []Pattern{
		PatternBrightfield, PatternAnnulus,
		PatternDpcTop, PatternDpcBottom, PatternDpcLeft, PatternDpcRight,
		PatternColorDpc,
	}
}

// Valid reports whether p is a known pattern.
func (p Pattern) Valid() bool {
	return slices.Contains(Patterns(), p)
}

// ColorPreset names a built-in color.
type ColorPreset string

// Color presets.
const (
	ColorRed   ColorPreset = "red"
	ColorGreen ColorPreset = "green"
	ColorBlue  ColorPreset = "blue"
	ColorWhite ColorPreset = "white"
)

// ColorPresets returns every preset in a stable order.
func ColorPresets() []ColorPreset {
	return []ColorPreset{ColorRed, ColorGreen, ColorBlue, ColorWhite}
}

// Color is either a preset or a custom RGB triple.
type Color struct {
	Preset ColorPreset `json:"preset,omitempty"`
	R      int         `json:"r"`
	G      int         `json:"g"`
	B      int         `json:"b"`
}

// PresetColor returns a preset color.
func PresetColor(p ColorPreset) Color { return Color{Preset: p} }

// RGB returns a custom color.
func RGB(r, g, b int) Color { return Color{R: r, G: g, B: b} }

// Custom reports whether the color is an RGB triple rather than a preset.
func (c Color) Custom() bool { return c.Preset == "" }

// String renders the color the way the wire grammar does, without the mnemonic.
func (c Color) String() string {
	if !c.Custom() {
		return string(c.Preset)
	}
	return joinInts("", c.R, c.G, c.B)[1:]
}

// TriggerMode controls when a trigger channel fires during a sequence.
// Positive values trigger every N frames.
type TriggerMode int

// Trigger modes with special meaning.
const (
	TriggerNone           TriggerMode = 0
	TriggerPerAcquisition TriggerMode = -1
	TriggerOnce           TriggerMode = -2
)

// EveryNFrames returns a mode triggering every n frames.
func EveryNFrames(n int) TriggerMode { return TriggerMode(n) }

// TriggerModes holds one mode per trigger channel. The zero value means no triggering.
type TriggerModes [TriggerChannels]TriggerMode

// IsZero reports whether no channel triggers.
func (t TriggerModes) IsZero() bool {
	return t == TriggerModes{}
}

// SequenceParams are shared by DPC and FPM sequences. MaxNA is only used by FPM.
type SequenceParams struct {
	DelayMs      int          `json:"delay_ms"`
	Acquisitions int          `json:"acquisitions"`
	MaxNA        int          `json:"max_na,omitempty"`
	Triggers     TriggerModes `json:"trigger_modes"`
}

// Clear turns every LED off. During a running sequence it acts as abort.
type Clear struct{}

// ShowPattern displays a static pattern.
type ShowPattern struct {
	Name Pattern
}

// SetColor changes the illumination color.
type SetColor struct {
	Color Color
}

// SetBrightness changes global brightness.
type SetBrightness struct {
	Value int
}

// SetNA sets the numerical aperture (x100).
type SetNA struct {
	Value int
}

// SetArrayDistance sets the LED board to sample distance in millimeters.
type SetArrayDistance struct {
	Millimeters int
}

// DrawLeds lights an explicit ordered list of LEDs. Index 0 is the center.
type DrawLeds struct {
	Indices []int
}

// RunDpcSequence starts a differential phase contrast acquisition.
type RunDpcSequence struct {
	Params SequenceParams
}

// RunFpmSequence starts a Fourier ptychography acquisition.
type RunFpmSequence struct {
	Params SequenceParams
}

// Reset resets the device.
type Reset struct{}

// MachineMode switches the firmware to terse machine-readable output.
type MachineMode struct{}

// SetAutoClear toggles clearing the array before each pattern.
type SetAutoClear struct {
	Enabled bool
}

// SetupTrigger configures pulse width and start delay of a trigger channel.
type SetupTrigger struct {
	Channel      int
	PulseWidthUs int
	StartDelayUs int
}

// QueryProperties requests the pprops JSON document.
type QueryProperties struct{}

// QueryNA requests the current NA.
type QueryNA struct{}

// QueryArrayDistance requests the current array distance.
type QueryArrayDistance struct{}

// QueryTriggers requests the trigger settings printout.
type QueryTriggers struct{}

// QueryLedPositions requests cartesian LED positions.
type QueryLedPositions struct{}

// QueryLedPositionsNA requests LED positions in NA coordinates.
type QueryLedPositionsNA struct{}

func (Clear) Kind() Kind               { return KindClear }
func (ShowPattern) Kind() Kind         { return KindPattern }
func (SetColor) Kind() Kind            { return KindColor }
func (SetBrightness) Kind() Kind       { return KindBrightness }
func (SetNA) Kind() Kind               { return KindNA }
func (SetArrayDistance) Kind() Kind    { return KindArrayDistance }
func (DrawLeds) Kind() Kind            { return KindLeds }
func (RunDpcSequence) Kind() Kind      { return KindDpcSequence }
func (RunFpmSequence) Kind() Kind      { return KindFpmSequence }
func (Reset) Kind() Kind               { return KindReset }
func (MachineMode) Kind() Kind         { return KindMachineMode }
func (SetAutoClear) Kind() Kind        { return KindAutoClear }
func (SetupTrigger) Kind() Kind        { return KindTriggerSetup }
func (QueryProperties) Kind() Kind     { return KindQueryProperties }
func (QueryNA) Kind() Kind             { return KindQueryNA }
func (QueryArrayDistance) Kind() Kind  { return KindQueryArrayDistance }
func (QueryTriggers) Kind() Kind       { return KindQueryTriggers }
func (QueryLedPositions) Kind() Kind   { return KindQueryLedPositions }
func (QueryLedPositionsNA) Kind() Kind { return KindQueryLedPositionsNA }
