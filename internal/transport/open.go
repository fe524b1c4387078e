package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/smazurov/illuminode/pkg/serialport"
)

// Schemes accepted by Open.
const (
	SchemeSerial = "serial"
	SchemeSim    = "sim"
)

// Open connects to the device named by uri:
//
//	/dev/ttyACM0
//	serial:///dev/ttyACM0?baud=115200&xonxoff=true
//	sim://?leds=593&min_delay_ms=40&silent=false
func Open(uri string) (Transport, error) {
	if uri == "" {
		return nil, fmt.Errorf("empty device URI")
	}
	if !strings.Contains(uri, "://") {
		return openSerial(serialport.Config{Name: uri, SoftwareFlowControl: true})
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse device URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case SchemeSerial:
		cfg := serialport.Config{Name: u.Path, SoftwareFlowControl: true}
		if cfg.Name == "" {
			return nil, fmt.Errorf("device URI %q has no path", uri)
		}
		q := u.Query()
		if v := q.Get("baud"); v != "" {
			if cfg.Baud, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("invalid baud %q: %w", v, err)
			}
		}
		if v := q.Get("xonxoff"); v != "" {
			if cfg.SoftwareFlowControl, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("invalid xonxoff %q: %w", v, err)
			}
		}
		return openSerial(cfg)
	case SchemeSim:
		cfg, err := simConfigFromQuery(u.Query())
		if err != nil {
			return nil, err
		}
		return NewSimulator(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported device scheme %q", u.Scheme)
	}
}

func openSerial(cfg serialport.Config) (Transport, error) {
	port, err := serialport.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewLineTransport(port), nil
}

func simConfigFromQuery(q url.Values) (SimConfig, error) {
	cfg := DefaultSimConfig()
	ints := map[string]*int{
		"leds":         &cfg.LedCount,
		"min_delay_ms": &cfg.MinDelayMs,
	}
	for key, dst := range ints {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = n
	}
	if v := q.Get("distance_mm"); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid distance_mm %q: %w", v, err)
		}
		cfg.DistanceMm = d
	}
	if v := q.Get("silent"); v != "" {
		silent, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid silent %q: %w", v, err)
		}
		cfg.Silent = silent
	}
	if v := q.Get("name"); v != "" {
		cfg.DeviceName = v
	}
	return cfg, nil
}
