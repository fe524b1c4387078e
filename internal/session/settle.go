package session

import (
	"time"

	"github.com/smazurov/illuminode/internal/protocol"
)

// SettleDelays is the minimum quiet time after each request kind before the
// next command may be written. Zero fields fall back to Default.
type SettleDelays struct {
	Default       time.Duration
	Clear         time.Duration
	Pattern       time.Duration
	Color         time.Duration
	Brightness    time.Duration
	NA            time.Duration
	ArrayDistance time.Duration
	Leds          time.Duration
	Sequence      time.Duration
	Reset         time.Duration
	Query         time.Duration
}

// DefaultSettleDelays returns conservative delays for Illuminate firmware.
func DefaultSettleDelays() SettleDelays {
	return SettleDelays{
		Default:       100 * time.Millisecond,
		Clear:         100 * time.Millisecond,
		Pattern:       100 * time.Millisecond,
		Color:         100 * time.Millisecond,
		Brightness:    100 * time.Millisecond,
		NA:            100 * time.Millisecond,
		ArrayDistance: 100 * time.Millisecond,
		Leds:          100 * time.Millisecond,
		Sequence:      250 * time.Millisecond,
		Reset:         500 * time.Millisecond,
		Query:         200 * time.Millisecond,
	}
}

// For returns the settle interval for kind.
func (d SettleDelays) For(kind protocol.Kind) time.Duration {
	var v time.Duration
	switch {
	case kind.IsQuery():
		v = d.Query
	case kind.IsSequence():
		v = d.Sequence
	default:
		switch kind {
		case protocol.KindClear:
			v = d.Clear
		case protocol.KindPattern:
			v = d.Pattern
		case protocol.KindColor:
			v = d.Color
		case protocol.KindBrightness:
			v = d.Brightness
		case protocol.KindNA:
			v = d.NA
		case protocol.KindArrayDistance:
			v = d.ArrayDistance
		case protocol.KindLeds:
			v = d.Leds
		case protocol.KindReset:
			v = d.Reset
		}
	}
	if v <= 0 {
		return d.Default
	}
	return v
}
