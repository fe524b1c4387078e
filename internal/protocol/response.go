package protocol

import (
	"math"
	"strconv"
	"strings"
)

// Response framing used by the firmware.
const (
	DefaultErrorMarker = "ERROR"
	ResponseTerminator = "-==-"
	CommandTerminator  = "\n"
)

// LineClass is the classification of a device line.
type LineClass int

// Line classes.
const (
	LineInfo LineClass = iota
	LineError
	LineTerminator
)

func (c LineClass) String() string {
	switch c {
	case LineError:
		return "error"
	case LineTerminator:
		return "terminator"
	default:
		return "info"
	}
}

// Line is a decoded device line. For terminator lines Text holds any content that
// preceded the terminator on the same line.
type Line struct {
	Text  string
	Class LineClass
}

// Decoder classifies device output lines.
type Decoder struct {
	ErrorMarker string
	Terminator  string
}

// NewDecoder returns a decoder with the firmware defaults.
func NewDecoder() *Decoder {
	return &Decoder{
		ErrorMarker: DefaultErrorMarker,
		Terminator:  ResponseTerminator,
	}
}

// Decode classifies a single line. Trailing CR/LF is ignored.
func (d *Decoder) Decode(raw string) Line {
	line := strings.TrimRight(raw, "\r\n")
	if d.Terminator != "" && strings.HasSuffix(line, d.Terminator) {
		text := strings.TrimSpace(strings.TrimSuffix(line, d.Terminator))
		if d.isError(text) {
			return Line{Text: text, Class: LineError}
		}
		return Line{Text: text, Class: LineTerminator}
	}
	if d.isError(line) {
		return Line{Text: line, Class: LineError}
	}
	return Line{Text: line, Class: LineInfo}
}

func (d *Decoder) isError(line string) bool {
	return d.ErrorMarker != "" && strings.HasPrefix(strings.TrimSpace(line), d.ErrorMarker)
}

// ErrorMessage strips the error marker and separators from an error line.
func (d *Decoder) ErrorMessage(line string) string {
	msg := strings.TrimPrefix(strings.TrimSpace(line), d.ErrorMarker)
	msg = strings.TrimLeft(msg, " :-.")
	if msg == "" {
		return strings.TrimSpace(line)
	}
	return msg
}

// DeviceError builds the error surfaced for an error line in response to command.
func (d *Decoder) DeviceError(command, line string) *Error {
	return NewDeviceError(command, line, d.ErrorMessage(line))
}

// ParseNA extracts the x100 NA from a response containing "NA.<value>".
func ParseNA(lines []string) (int, error) {
	v, err := prefixedValue(lines, "NA.")
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// ParseArrayDistance extracts the distance in millimeters from a response containing "DZ.<value>".
func ParseArrayDistance(lines []string) (float64, error) {
	return prefixedValue(lines, "DZ.")
}

func prefixedValue(lines []string, prefix string) (float64, error) {
	for _, line := range lines {
		idx := strings.Index(line, prefix)
		if idx < 0 {
			continue
		}
		field := strings.Fields(line[idx+len(prefix):])
		if len(field) == 0 {
			break
		}
		v, err := strconv.ParseFloat(field[0], 64)
		if err != nil {
			return 0, &Error{
				Code:    ErrUnexpectedResponse,
				Message: "malformed " + strings.TrimSuffix(prefix, ".") + " value " + strconv.Quote(field[0]),
				Cause:   err,
			}
		}
		return v, nil
	}
	return 0, NewError(ErrUnexpectedResponse, "response has no "+strings.TrimSuffix(prefix, ".")+" field", nil)
}
