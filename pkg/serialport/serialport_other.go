//go:build !linux

package serialport

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/tarm/serial"
)

// Open opens the named port through github.com/tarm/serial.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.SoftwareFlowControl {
		slog.Warn("XON/XOFF flow control is not supported on this platform", "port", cfg.Name)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:     cfg.Name,
		Baud:     cfg.Baud,
		Size:     8,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}
	return port, nil
}
