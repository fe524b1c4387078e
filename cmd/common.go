// Package cmd holds the one-shot illuminode subcommands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/smazurov/illuminode/internal/config"
	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/session"
	"github.com/smazurov/illuminode/internal/transport"
	"github.com/spf13/cobra"
)

// deviceFlags are shared by every subcommand that talks to the array.
type deviceFlags struct {
	device       string
	settleFile   string
	ackMode      string
	ackTimeout   time.Duration
	requireClear bool
	handshake    bool
	logLevel     string
	logJSON      bool
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.device, "device", "d", "/dev/ttyACM0", "Device URI (serial path, serial://, sim://)")
	cmd.Flags().StringVar(&f.settleFile, "settle-file", "", "TOML file with per-command settle delays")
	cmd.Flags().StringVar(&f.ackMode, "ack-mode", string(session.AckSettle), "Command completion mode (settle, terminator)")
	cmd.Flags().DurationVar(&f.ackTimeout, "ack-timeout", session.DefaultAckTimeout, "Terminator wait in terminator mode")
	cmd.Flags().BoolVar(&f.requireClear, "require-clear", true, "Reject sequences not preceded by a clear")
	cmd.Flags().BoolVar(&f.handshake, "handshake", true, "Query device properties before the first command")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&f.logJSON, "log-json", false, "Log in JSON format")
}

func (f *deviceFlags) initLogging() {
	cfg := logging.Config{Level: f.logLevel, Format: "text"}
	if f.logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

// open connects to the device and performs the handshake when enabled.
func (f *deviceFlags) open(ctx context.Context, logger *slog.Logger) (*session.Session, error) {
	mode := session.AckMode(f.ackMode)
	if mode != session.AckSettle && mode != session.AckTerminator {
		return nil, fmt.Errorf("unknown ack mode %q", f.ackMode)
	}

	delays := session.DefaultSettleDelays()
	if f.settleFile != "" {
		var err error
		if delays, err = config.LoadSettleDelays(f.settleFile); err != nil {
			return nil, err
		}
	}

	t, err := transport.Open(f.device)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	sess := session.New(t,
		session.WithSettleDelays(delays),
		session.WithAckMode(mode, f.ackTimeout),
		session.WithRequireClear(f.requireClear),
		session.WithLogger(logging.GetLogger("session")),
	)
	logger.Debug("Device opened", "device", f.device, "session_id", sess.ID())

	if f.handshake {
		if _, err := sess.Handshake(ctx); err != nil {
			sess.Close()
			return nil, fmt.Errorf("handshake: %w", err)
		}
	}
	return sess, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
