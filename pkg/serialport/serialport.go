// Package serialport opens serial devices for line-oriented ASCII protocols.
//
// Ports are configured 8N1 with optional XON/XOFF software flow control.
// On Linux the termios settings are applied directly; other platforms use
// github.com/tarm/serial, which does not support software flow control.
package serialport

import (
	"errors"
	"fmt"
)

// DefaultBaud is the Illuminate firmware line rate.
const DefaultBaud = 115200

// ErrUnsupportedBaud is returned for rates the platform cannot set.
var ErrUnsupportedBaud = errors.New("unsupported baud rate")

// Config describes how to open a port.
type Config struct {
	Name                string
	Baud                int
	SoftwareFlowControl bool
}

func (c Config) withDefaults() Config {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	return c
}

func (c Config) validate() error {
	if c.Name == "" {
		return errors.New("serial port name is required")
	}
	if c.Baud < 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, c.Baud)
	}
	return nil
}
