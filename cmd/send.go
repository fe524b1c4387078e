package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/session"
	"github.com/spf13/cobra"
)

// CreateSendCmd creates the send command.
func CreateSendCmd() *cobra.Command {
	var flags deviceFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "send <command>...",
		Short: "Send wire commands to the LED array",
		Long: `Parses each argument as a wire mnemonic (for example "x", "sc.red", "rdpc.100.2") ` +
			`and sends them in order through one session. Stops at the first failure.`,
		Example: `  illuminode send x sb.64 sc.white bf
  illuminode send -d sim:// --json pprops`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			flags.initLogging()
			logger := logging.GetLogger("cli").With("command", "send")

			reqs := make([]protocol.Request, 0, len(args))
			for _, arg := range args {
				req, err := protocol.Parse(arg)
				if err != nil {
					logger.Error("Invalid command", "error", err)
					os.Exit(1)
				}
				reqs = append(reqs, req)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := flags.open(ctx, logger)
			if err != nil {
				logger.Error("Failed to open session", "device", flags.device, "error", err)
				os.Exit(1)
			}
			defer sess.Close()

			responses, err := sendAll(ctx, sess, reqs)
			if asJSON {
				if printErr := printJSON(responses); printErr != nil {
					logger.Error("Failed to write output", "error", printErr)
				}
			} else {
				for _, resp := range responses {
					printResponse(resp)
				}
			}
			if err != nil {
				var perr *protocol.Error
				if errors.As(err, &perr) {
					logger.Error("Command failed", "code", perr.Code, "raw", perr.Raw, "error", err)
				} else {
					logger.Error("Command failed", "error", err)
				}
				sess.Close()
				os.Exit(1)
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print responses as JSON")

	return cmd
}

func sendAll(ctx context.Context, device interface {
	Do(context.Context, protocol.Request) (*session.Response, error)
}, reqs []protocol.Request) ([]*session.Response, error) {
	out := make([]*session.Response, 0, len(reqs))
	for _, req := range reqs {
		resp, err := device.Do(ctx, req)
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func printResponse(resp *session.Response) {
	switch {
	case resp.Skipped:
		fmt.Printf("%s: skipped (unchanged)\n", resp.Command)
	case len(resp.Lines) == 0:
		fmt.Printf("%s: ok\n", resp.Command)
	default:
		fmt.Printf("%s:\n", resp.Command)
		for _, line := range resp.Lines {
			fmt.Printf("  %s\n", line)
		}
	}
}
