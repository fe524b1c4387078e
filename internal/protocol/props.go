package protocol

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// DeviceProperties is the pprops document reported by the firmware.
type DeviceProperties struct {
	DeviceName                    string             `json:"device_name"`
	LedCount                      FlexInt            `json:"led_count"`
	BitDepth                      FlexInt            `json:"bit_depth"`
	TriggerInputCount             FlexInt            `json:"trigger_input_count"`
	TriggerOutputCount            FlexInt            `json:"trigger_output_count"`
	ColorChannels                 []string           `json:"color_channels"`
	ColorChannelCenterWavelengths map[string]float64 `json:"color_channel_center_wavelengths,omitempty"`
}

// LedPosition is an LED location in board coordinates (millimeters).
type LedPosition struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// LedPositionNA is an LED location in NA coordinates.
type LedPositionNA struct {
	Index int     `json:"index"`
	NaX   float64 `json:"na_x"`
	NaY   float64 `json:"na_y"`
}

// FlexInt accepts both JSON numbers and numeric strings; older firmware quotes integers.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(v)
	return nil
}

// Int returns the value as int.
func (f FlexInt) Int() int { return int(f) }

// jsonPayload joins response lines into a JSON document. The firmware emits
// single-quoted keys in some builds.
func jsonPayload(lines []string) []byte {
	joined := strings.TrimSpace(strings.Join(lines, " "))
	joined = strings.ReplaceAll(joined, "'", `"`)
	if start := strings.IndexByte(joined, '{'); start > 0 {
		joined = joined[start:]
	}
	if end := strings.LastIndexByte(joined, '}'); end >= 0 && end < len(joined)-1 {
		joined = joined[:end+1]
	}
	return []byte(joined)
}

func unexpected(what string, err error) *Error {
	return NewError(ErrUnexpectedResponse, "cannot parse "+what, err)
}

// ParseProperties decodes a pprops response.
func ParseProperties(lines []string) (*DeviceProperties, error) {
	var props DeviceProperties
	if err := json.Unmarshal(jsonPayload(lines), &props); err != nil {
		return nil, unexpected("device properties", err)
	}
	return &props, nil
}

// ParseLedPositions decodes a pledpos response, ordered by LED index.
func ParseLedPositions(lines []string) ([]LedPosition, error) {
	var doc struct {
		Positions map[string][]float64 `json:"led_position_list_cartesian"`
	}
	if err := json.Unmarshal(jsonPayload(lines), &doc); err != nil {
		return nil, unexpected("LED positions", err)
	}
	out := make([]LedPosition, 0, len(doc.Positions))
	for key, coords := range doc.Positions {
		idx, err := strconv.Atoi(key)
		if err != nil || len(coords) < 3 {
			return nil, unexpected("LED position "+strconv.Quote(key), err)
		}
		out = append(out, LedPosition{Index: idx, X: coords[0], Y: coords[1], Z: coords[2]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// ParseLedPositionsNA decodes a pledposna response, ordered by LED index.
func ParseLedPositionsNA(lines []string) ([]LedPositionNA, error) {
	var doc struct {
		Positions map[string][]float64 `json:"led_position_list_na"`
	}
	if err := json.Unmarshal(jsonPayload(lines), &doc); err != nil {
		return nil, unexpected("LED NA positions", err)
	}
	out := make([]LedPositionNA, 0, len(doc.Positions))
	for key, coords := range doc.Positions {
		idx, err := strconv.Atoi(key)
		if err != nil || len(coords) < 2 {
			return nil, unexpected("LED NA position "+strconv.Quote(key), err)
		}
		out = append(out, LedPositionNA{Index: idx, NaX: coords[0], NaY: coords[1]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}
