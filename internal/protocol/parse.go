package protocol

import (
	"strconv"
	"strings"
)

// Parse converts a wire mnemonic into a validated request.
func Parse(command string) (Request, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, invalidf("empty command")
	}
	tokens := strings.Split(command, ".")
	args := tokens[1:]

	req, err := parseTokens(tokens[0], args)
	if err != nil {
		return nil, err.WithCommand(command)
	}
	if vErr := req.Validate(); vErr != nil {
		if pe, ok := vErr.(*Error); ok {
			return nil, pe.WithCommand(command)
		}
		return nil, vErr
	}
	return req, nil
}

func parseTokens(mnemonic string, args []string) (Request, *Error) {
	switch mnemonic {
	case "x":
		return noArgs(args, Clear{})
	case "bf", "an", "cdpc":
		return noArgs(args, ShowPattern{Name: Pattern(mnemonic)})
	case "dpc":
		if len(args) != 1 {
			return nil, invalidf("dpc expects one of t, b, l, r")
		}
		return ShowPattern{Name: Pattern("dpc." + args[0])}, nil
	case "sc":
		return parseColor(args)
	case "sb":
		v, err := singleInt("sb", args)
		if err != nil {
			return nil, err
		}
		return SetBrightness{Value: v}, nil
	case "na":
		if len(args) == 0 {
			return QueryNA{}, nil
		}
		v, err := singleInt("na", args)
		if err != nil {
			return nil, err
		}
		return SetNA{Value: v}, nil
	case "sad":
		if len(args) == 0 {
			return QueryArrayDistance{}, nil
		}
		v, err := singleInt("sad", args)
		if err != nil {
			return nil, err
		}
		return SetArrayDistance{Millimeters: v}, nil
	case "l":
		values, err := ints(args)
		if err != nil {
			return nil, err
		}
		return DrawLeds{Indices: values}, nil
	case "rdpc":
		values, err := sequenceInts("rdpc", args, 2)
		if err != nil {
			return nil, err
		}
		return RunDpcSequence{Params: SequenceParams{
			DelayMs:      values[0],
			Acquisitions: values[1],
			Triggers:     triggersFrom(values[2:]),
		}}, nil
	case "rfpm":
		values, err := sequenceInts("rfpm", args, 3)
		if err != nil {
			return nil, err
		}
		return RunFpmSequence{Params: SequenceParams{
			DelayMs:      values[0],
			Acquisitions: values[1],
			MaxNA:        values[2],
			Triggers:     triggersFrom(values[3:]),
		}}, nil
	case "reset":
		return noArgs(args, Reset{})
	case "machine":
		return noArgs(args, MachineMode{})
	case "ac":
		v, err := singleInt("ac", args)
		if err != nil {
			return nil, err
		}
		if v != 0 && v != 1 {
			return nil, invalidf("ac expects 0 or 1, got %d", v)
		}
		return SetAutoClear{Enabled: v == 1}, nil
	case "trs":
		values, err := ints(args)
		if err != nil {
			return nil, err
		}
		if len(values) != 3 {
			return nil, invalidf("trs expects channel, pulse width and start delay")
		}
		return SetupTrigger{Channel: values[0], PulseWidthUs: values[1], StartDelayUs: values[2]}, nil
	case "pprops":
		return noArgs(args, QueryProperties{})
	case "ptr":
		return noArgs(args, QueryTriggers{})
	case "pledpos":
		return noArgs(args, QueryLedPositions{})
	case "pledposna":
		return noArgs(args, QueryLedPositionsNA{})
	}
	return nil, invalidf("unknown command %q", mnemonic)
}

func noArgs(args []string, r Request) (Request, *Error) {
	if len(args) != 0 {
		return nil, invalidf("%s takes no parameters", r.encode())
	}
	return r, nil
}

func parseColor(args []string) (Request, *Error) {
	switch len(args) {
	case 1:
		return SetColor{Color: PresetColor(ColorPreset(args[0]))}, nil
	case 3:
		values, err := ints(args)
		if err != nil {
			return nil, err
		}
		return SetColor{Color: RGB(values[0], values[1], values[2])}, nil
	}
	return nil, invalidf("sc expects a preset name or r.g.b")
}

func singleInt(mnemonic string, args []string) (int, *Error) {
	if len(args) != 1 {
		return 0, invalidf("%s expects exactly one parameter", mnemonic)
	}
	values, err := ints(args)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

func sequenceInts(mnemonic string, args []string, required int) ([]int, *Error) {
	if len(args) != required && len(args) != required+TriggerChannels {
		return nil, invalidf("%s expects %d parameters, optionally followed by %d trigger modes",
			mnemonic, required, TriggerChannels)
	}
	return ints(args)
}

func triggersFrom(values []int) TriggerModes {
	var t TriggerModes
	for i := 0; i < len(values) && i < TriggerChannels; i++ {
		t[i] = TriggerMode(values[i])
	}
	return t
}

// ints parses decimal arguments. Only the form Encode produces is accepted,
// so "-1" is valid but "+5", "007" and "-0" are not.
func ints(args []string) ([]int, *Error) {
	values := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, &Error{
				Code:    ErrInvalidParameter,
				Message: "parameter " + strconv.Quote(a) + " is not an integer",
				Cause:   err,
			}
		}
		if strconv.Itoa(v) != a {
			return nil, &Error{
				Code:    ErrInvalidParameter,
				Message: "parameter " + strconv.Quote(a) + " must be plain decimal without a plus sign or leading zeros",
			}
		}
		values[i] = v
	}
	return values, nil
}
