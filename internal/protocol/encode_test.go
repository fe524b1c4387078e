package protocol

import (
	"testing"
)

func TestEncode_Golden(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"clear", Clear{}, "x"},
		{"brightfield", ShowPattern{Name: PatternBrightfield}, "bf"},
		{"annulus", ShowPattern{Name: PatternAnnulus}, "an"},
		{"dpc top", ShowPattern{Name: PatternDpcTop}, "dpc.t"},
		{"dpc bottom", ShowPattern{Name: PatternDpcBottom}, "dpc.b"},
		{"dpc left", ShowPattern{Name: PatternDpcLeft}, "dpc.l"},
		{"dpc right", ShowPattern{Name: PatternDpcRight}, "dpc.r"},
		{"color dpc", ShowPattern{Name: PatternColorDpc}, "cdpc"},
		{"color red", SetColor{Color: PresetColor(ColorRed)}, "sc.red"},
		{"color green", SetColor{Color: PresetColor(ColorGreen)}, "sc.green"},
		{"color blue", SetColor{Color: PresetColor(ColorBlue)}, "sc.blue"},
		{"color white", SetColor{Color: PresetColor(ColorWhite)}, "sc.white"},
		{"color rgb", SetColor{Color: RGB(10, 0, 255)}, "sc.10.0.255"},
		{"brightness min", SetBrightness{Value: 0}, "sb.0"},
		{"brightness max", SetBrightness{Value: 255}, "sb.255"},
		{"na", SetNA{Value: 25}, "na.25"},
		{"na max", SetNA{Value: 100}, "na.100"},
		{"array distance", SetArrayDistance{Millimeters: 50}, "sad.50"},
		{"single led", DrawLeds{Indices: []int{0}}, "l.0"},
		{"repeated leds", DrawLeds{Indices: []int{5, 1, 5, 0}}, "l.5.1.5.0"},
		{"dpc sequence", RunDpcSequence{Params: SequenceParams{DelayMs: 500, Acquisitions: 2}}, "rdpc.500.2"},
		{
			"dpc sequence with triggers",
			RunDpcSequence{Params: SequenceParams{DelayMs: 100, Acquisitions: 1, Triggers: TriggerModes{EveryNFrames(1), TriggerPerAcquisition, TriggerNone}}},
			"rdpc.100.1.1.-1.0",
		},
		{"fpm sequence", RunFpmSequence{Params: SequenceParams{DelayMs: 40, Acquisitions: 3, MaxNA: 25}}, "rfpm.40.3.25"},
		{
			"fpm sequence trigger once",
			RunFpmSequence{Params: SequenceParams{DelayMs: 40, Acquisitions: 3, MaxNA: 25, Triggers: TriggerModes{0, 0, TriggerOnce}}},
			"rfpm.40.3.25.0.0.-2",
		},
		{"reset", Reset{}, "reset"},
		{"machine", MachineMode{}, "machine"},
		{"autoclear on", SetAutoClear{Enabled: true}, "ac.1"},
		{"autoclear off", SetAutoClear{}, "ac.0"},
		{"trigger setup", SetupTrigger{Channel: 1, PulseWidthUs: 500, StartDelayUs: 0}, "trs.1.500.0"},
		{"props", QueryProperties{}, "pprops"},
		{"query na", QueryNA{}, "na"},
		{"query distance", QueryArrayDistance{}, "sad"},
		{"triggers", QueryTriggers{}, "ptr"},
		{"positions", QueryLedPositions{}, "pledpos"},
		{"positions na", QueryLedPositionsNA{}, "pledposna"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.req)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncode_TriggerDefaulting(t *testing.T) {
	short, err := Parse("rdpc.500.2")
	if err != nil {
		t.Fatalf("Parse(short) error = %v", err)
	}
	long, err := Parse("rdpc.500.2.0.0.0")
	if err != nil {
		t.Fatalf("Parse(long) error = %v", err)
	}

	a, _ := EncodeString(short)
	b, _ := EncodeString(long)
	if a != b {
		t.Errorf("rdpc.500.2 encodes as %q, rdpc.500.2.0.0.0 encodes as %q", a, b)
	}
	if a != "rdpc.500.2" {
		t.Errorf("canonical form = %q, want rdpc.500.2", a)
	}
}

func TestEncode_InvalidParameter(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"brightness above range", SetBrightness{Value: 256}},
		{"brightness negative", SetBrightness{Value: -1}},
		{"na above range", SetNA{Value: 101}},
		{"na negative", SetNA{Value: -5}},
		{"empty leds", DrawLeds{}},
		{"negative led", DrawLeds{Indices: []int{1, -2}}},
		{"unknown pattern", ShowPattern{Name: "dpc.x"}},
		{"unknown color", SetColor{Color: PresetColor("purple")}},
		{"rgb out of range", SetColor{Color: RGB(0, 300, 0)}},
		{"negative distance", SetArrayDistance{Millimeters: -1}},
		{"zero delay", RunDpcSequence{Params: SequenceParams{DelayMs: 0, Acquisitions: 1}}},
		{"zero acquisitions", RunDpcSequence{Params: SequenceParams{DelayMs: 100, Acquisitions: 0}}},
		{"malformed trigger mode", RunDpcSequence{Params: SequenceParams{DelayMs: 100, Acquisitions: 1, Triggers: TriggerModes{-3, 0, 0}}}},
		{"fpm na above range", RunFpmSequence{Params: SequenceParams{DelayMs: 100, Acquisitions: 1, MaxNA: 150}}},
		{"trigger channel", SetupTrigger{Channel: 3}},
		{"trigger timing", SetupTrigger{Channel: 0, PulseWidthUs: -1}},
		{"nil request", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.req)
			if err == nil {
				t.Fatalf("Encode() = %q, want error", got)
			}
			if !IsCode(err, ErrInvalidParameter) {
				t.Errorf("Encode() error code = %q, want %q", CodeOf(err), ErrInvalidParameter)
			}
		})
	}
}

func TestNAFromFloat(t *testing.T) {
	tests := []struct {
		in      float64
		want    int
		wantErr bool
	}{
		{0, 0, false},
		{0.25, 25, false},
		{0.255, 26, false},
		{1, 100, false},
		{1.01, 0, true},
		{-0.1, 0, true},
	}

	for _, tt := range tests {
		got, err := NAFromFloat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NAFromFloat(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NAFromFloat(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKindClassification(t *testing.T) {
	if !KindQueryNA.IsQuery() || KindNA.IsQuery() {
		t.Error("IsQuery() misclassifies na kinds")
	}
	if !KindDpcSequence.IsSequence() || !KindFpmSequence.IsSequence() || KindClear.IsSequence() {
		t.Error("IsSequence() misclassifies sequence kinds")
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(SetBrightness{Value: 7}); got != "sb.7" {
		t.Errorf("Describe() = %q, want sb.7", got)
	}
	if got := Describe(SetBrightness{Value: 700}); got != "brightness(invalid)" {
		t.Errorf("Describe() = %q, want brightness(invalid)", got)
	}
}
