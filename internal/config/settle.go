package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/illuminode/internal/session"
)

// settleFields maps [settle] keys to SettleDelays fields.
var settleFields = map[string]func(*session.SettleDelays) *time.Duration{
	"default":        func(d *session.SettleDelays) *time.Duration { return &d.Default },
	"clear":          func(d *session.SettleDelays) *time.Duration { return &d.Clear },
	"pattern":        func(d *session.SettleDelays) *time.Duration { return &d.Pattern },
	"color":          func(d *session.SettleDelays) *time.Duration { return &d.Color },
	"brightness":     func(d *session.SettleDelays) *time.Duration { return &d.Brightness },
	"na":             func(d *session.SettleDelays) *time.Duration { return &d.NA },
	"array_distance": func(d *session.SettleDelays) *time.Duration { return &d.ArrayDistance },
	"leds":           func(d *session.SettleDelays) *time.Duration { return &d.Leds },
	"sequence":       func(d *session.SettleDelays) *time.Duration { return &d.Sequence },
	"reset":          func(d *session.SettleDelays) *time.Duration { return &d.Reset },
	"query":          func(d *session.SettleDelays) *time.Duration { return &d.Query },
}

// LoadSettleDelays reads a settle table. Keys that are absent keep their
// defaults. Values are duration strings ("150ms") or integer milliseconds.
//
//	[settle]
//	default = "100ms"
//	sequence = 250
func LoadSettleDelays(path string) (session.SettleDelays, error) {
	delays := session.DefaultSettleDelays()

	data, err := os.ReadFile(path)
	if err != nil {
		return delays, fmt.Errorf("read settle file: %w", err)
	}

	var raw struct {
		Settle map[string]any `toml:"settle"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return delays, fmt.Errorf("failed to parse settle file: %w", err)
	}

	for key, value := range raw.Settle {
		field, ok := settleFields[key]
		if !ok {
			return delays, fmt.Errorf("unknown settle key %q (known: %s)", key, strings.Join(settleKeys(), ", "))
		}
		d, err := parseDelay(value)
		if err != nil {
			return delays, fmt.Errorf("settle.%s: %w", key, err)
		}
		*field(&delays) = d
	}
	return delays, nil
}

func parseDelay(value any) (time.Duration, error) {
	var d time.Duration
	switch v := value.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, err
		}
		d = parsed
	case int64:
		d = time.Duration(v) * time.Millisecond
	default:
		return 0, fmt.Errorf("unsupported value %v", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative delay %s", d)
	}
	return d, nil
}

func settleKeys() []string {
	keys := make([]string, 0, len(settleFields))
	for k := range settleFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
