//go:build linux

package serialport

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

var baudRates = map[int]uint32{
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	921600:  unix.B921600,
	1000000: unix.B1000000,
}

// Open opens and configures the named tty.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rate, ok := baudRates[cfg.Baud]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBaud, cfg.Baud)
	}

	// O_NONBLOCK makes os.NewFile register the fd with the runtime poller,
	// so Close unblocks a pending Read.
	fd, err := unix.Open(cfg.Name, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}

	if err := configure(fd, rate, cfg.SoftwareFlowControl); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configure %s: %w", cfg.Name, err)
	}

	return os.NewFile(uintptr(fd), cfg.Name), nil
}

func configure(fd int, rate uint32, xonxoff bool) error {
	t := termios(rate, xonxoff)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	// Drop bytes queued before the port was configured.
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// termios builds a raw 8N1 configuration.
func termios(rate uint32, xonxoff bool) unix.Termios {
	t := unix.Termios{
		Iflag:  unix.IGNPAR,
		Cflag:  unix.CS8 | unix.CREAD | unix.CLOCAL | rate,
		Ispeed: rate,
		Ospeed: rate,
	}
	if xonxoff {
		t.Iflag |= unix.IXON | unix.IXOFF
	}
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return t
}
