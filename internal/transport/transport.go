// Package transport frames the device's newline-delimited text channel.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/illuminode/internal/logging"
)

// maxLineLength bounds a single response line. pledpos on large arrays is
// printed as one JSON line.
const maxLineLength = 1 << 20

// ErrClosed is returned after Close.
var ErrClosed = errors.New("transport closed")

// Transport is an exclusively owned duplex line channel to the device.
type Transport interface {
	// Write sends p in full.
	Write(p []byte) error
	// ReadLine waits up to timeout for the next line. ok is false when the
	// timeout elapsed without a line.
	ReadLine(ctx context.Context, timeout time.Duration) (line string, ok bool, err error)
	Close() error
}

// Flusher discards input that arrived outside a command window.
type Flusher interface {
	Flush() []string
}

// LineTransport frames an io.ReadWriteCloser into lines with one reader goroutine.
type LineTransport struct {
	rwc    io.ReadWriteCloser
	lines  chan string
	done   chan struct{}
	logger *slog.Logger

	writeMu   sync.Mutex
	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

// NewLineTransport starts reading rwc and returns the framed transport.
func NewLineTransport(rwc io.ReadWriteCloser) *LineTransport {
	t := &LineTransport{
		rwc:    rwc,
		lines:  make(chan string, 256),
		done:   make(chan struct{}),
		logger: logging.GetLogger("transport"),
	}
	go t.readLoop()
	return t
}

func (t *LineTransport) readLoop() {
	defer close(t.lines)

	scanner := bufio.NewScanner(t.rwc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		select {
		case t.lines <- line:
		case <-t.done:
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case <-t.done:
	default:
		t.logger.Warn("Device read loop ended", "error", err)
	}
	t.setErr(err)
}

func (t *LineTransport) setErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		t.err = err
	}
}

func (t *LineTransport) readErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.err == nil {
		return ErrClosed
	}
	if errors.Is(t.err, ErrClosed) {
		return t.err
	}
	return fmt.Errorf("read: %w", t.err)
}

// Write sends p to the device.
func (t *LineTransport) Write(p []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	n, err := t.rwc.Write(p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("write: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadLine returns the next line received from the device. A non-positive
// timeout polls without blocking.
func (t *LineTransport) ReadLine(ctx context.Context, timeout time.Duration) (string, bool, error) {
	return receive(ctx, t.lines, timeout, t.readErr)
}

// receive waits for one line from lines. closedErr reports why lines was closed.
func receive(ctx context.Context, lines <-chan string, timeout time.Duration, closedErr func() error) (string, bool, error) {
	if timeout <= 0 {
		select {
		case line, ok := <-lines:
			if !ok {
				return "", false, closedErr()
			}
			return line, true, nil
		default:
			return "", false, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-lines:
		if !ok {
			return "", false, closedErr()
		}
		return line, true, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// Flush drops every buffered line and returns them.
func (t *LineTransport) Flush() []string {
	return drain(t.lines)
}

func drain(lines <-chan string) []string {
	var dropped []string
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return dropped
			}
			dropped = append(dropped, line)
		default:
			return dropped
		}
	}
}

// Close stops the reader and closes the underlying device.
func (t *LineTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.setErr(ErrClosed)
		close(t.done)
		err = t.rwc.Close()
	})
	return err
}
