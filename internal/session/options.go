package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/protocol"
)

// AckMode selects how a command is considered complete.
type AckMode string

const (
	// AckSettle treats a silent settle window as success.
	AckSettle AckMode = "settle"
	// AckTerminator requires the response terminator for non-sequence commands.
	AckTerminator AckMode = "terminator"
)

// DefaultAckTimeout bounds the wait for a terminator in AckTerminator mode.
const DefaultAckTimeout = 2 * time.Second

// Publisher receives session events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(events.Event) {}

// Option configures a Session.
type Option func(*Session)

// WithSettleDelays sets the per-kind settle table.
func WithSettleDelays(d SettleDelays) Option {
	return func(s *Session) {
		s.settle = d
	}
}

// WithAckMode sets the acknowledgment mode. A timeout of zero keeps DefaultAckTimeout.
func WithAckMode(mode AckMode, timeout time.Duration) Option {
	return func(s *Session) {
		s.ackMode = mode
		if timeout > 0 {
			s.ackTimeout = timeout
		}
	}
}

// WithRequireClear controls whether sequences need a preceding clear.
func WithRequireClear(require bool) Option {
	return func(s *Session) {
		s.requireClear = require
	}
}

// WithSkipRedundant controls whether settings equal to the cached state are skipped.
func WithSkipRedundant(skip bool) Option {
	return func(s *Session) {
		s.skipRedundant = skip
	}
}

// WithDecoder overrides the response decoder.
func WithDecoder(d *protocol.Decoder) Option {
	return func(s *Session) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Session) {
		if p != nil {
			s.events = p
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces the time source and the settle sleeper.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithID sets the session identifier instead of a random UUID.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
