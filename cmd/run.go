package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/protocol"
	"github.com/smazurov/illuminode/internal/script"
	"github.com/spf13/cobra"
)

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	var flags deviceFlags
	var dryRun bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run <script.toml>",
		Short: "Run an acquisition script",
		Long: `Loads a TOML script of [[step]] tables and executes the steps in order against the device. ` +
			`Waits between steps honor wait_ms and repeat. The first failing step stops the run and the ` +
			`command exits non-zero.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			flags.initLogging()
			logger := logging.GetLogger("cli").With("command", "run", "script", args[0])

			s, err := script.Load(args[0])
			if err != nil {
				logger.Error("Failed to load script", "error", err)
				os.Exit(1)
			}

			if dryRun {
				for i, step := range s.Steps {
					reqs, _ := step.Requests()
					for _, req := range reqs {
						wire, _ := protocol.EncodeString(req)
						fmt.Printf("%3d  x%d  %s\n", i+1, step.Iterations(), wire)
					}
					if step.WaitMs > 0 {
						fmt.Printf("%3d  x%d  wait %dms\n", i+1, step.Iterations(), step.WaitMs)
					}
				}
				return
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := flags.open(ctx, logger)
			if err != nil {
				logger.Error("Failed to open session", "device", flags.device, "error", err)
				os.Exit(1)
			}
			defer sess.Close()

			opts := []script.RunnerOption{script.WithRunnerLogger(logging.GetLogger("script"))}
			if verbose {
				opts = append(opts, script.WithStepHook(func(res script.StepResult) {
					fmt.Printf("step %d.%d  ", res.Step, res.Iteration)
					printResponse(res.Response)
				}))
			}

			report, err := script.NewRunner(sess, opts...).Run(ctx, s)
			if err != nil {
				logger.Error("Script failed", "completed", len(report.Results), "error", err)
				sess.Close()
				os.Exit(1)
			}
			fmt.Printf("%s: %d commands in %s\n", report.Name, len(report.Results), report.Elapsed.Round(time.Millisecond))
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Print the commands without opening the device")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every response")

	return cmd
}
