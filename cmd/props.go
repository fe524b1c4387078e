package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/spf13/cobra"
)

type propsOutput struct {
	Properties  *protocol.DeviceProperties `json:"properties"`
	Triggers    string                     `json:"triggers,omitempty"`
	Positions   []protocol.LedPosition     `json:"positions,omitempty"`
	PositionsNA []protocol.LedPositionNA   `json:"positions_na,omitempty"`
}

// CreatePropsCmd creates the props command.
func CreatePropsCmd() *cobra.Command {
	var flags deviceFlags
	var positions bool
	var positionsNA bool

	cmd := &cobra.Command{
		Use:   "props",
		Short: "Print device properties as JSON",
		Long:  `Performs the handshake and prints the device properties, optionally with LED positions and trigger settings.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			flags.initLogging()
			flags.handshake = true
			logger := logging.GetLogger("cli").With("command", "props")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := flags.open(ctx, logger)
			if err != nil {
				logger.Error("Failed to open session", "device", flags.device, "error", err)
				os.Exit(1)
			}
			defer sess.Close()

			out := propsOutput{Properties: sess.CachedProperties()}
			if out.Triggers, err = sess.TriggerSettings(ctx); err != nil {
				logger.Warn("Failed to read trigger settings", "error", err)
			}
			if positions {
				if out.Positions, err = sess.LedPositions(ctx); err != nil {
					logger.Error("Failed to read LED positions", "error", err)
					sess.Close()
					os.Exit(1)
				}
			}
			if positionsNA {
				if out.PositionsNA, err = sess.LedPositionsNA(ctx); err != nil {
					logger.Error("Failed to read LED NA positions", "error", err)
					sess.Close()
					os.Exit(1)
				}
			}

			if err := printJSON(out); err != nil {
				logger.Error("Failed to write output", "error", err)
				sess.Close()
				os.Exit(1)
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&positions, "positions", false, "Include LED positions in millimeters")
	cmd.Flags().BoolVar(&positionsNA, "positions-na", false, "Include LED positions in NA coordinates")

	return cmd
}
