package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/jsdoctest/internal/config"
	"github.com/mvp-joe/jsdoctest/internal/isolation"
)

var workerTimeoutFlag time.Duration

// workerCmd is started by the process isolation pool. It answers one
// newline-delimited JSON request per line on stdin.
var workerCmd = &cobra.Command{
	Use:    "worker",
	Short:  "Serve isolated doctest evaluations on stdin/stdout",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(appOptions{isolate: config.IsolateNone, timeout: workerTimeoutFlag})
		if err != nil {
			return err
		}
		defer a.Close()

		h := isolation.NewHandler(a.loader, a.cfg.Runner.Timeout, a.logger)
		return isolation.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), h, a.logger)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().DurationVar(&workerTimeoutFlag, "timeout", 0, "interrupt an evaluation after this long")
}
