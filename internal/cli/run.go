package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the host until interrupted",
		Long: `Run the host: start a listener for every triggered function and
invoke functions as blobs change and messages arrive. Stops on SIGINT or
SIGTERM after in-flight invocations finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			h, err := loadHost(ctx, opts, cmd.OutOrStdout(), "")
			if err != nil {
				return err
			}
			defer h.Close()
			return h.Run(ctx)
		},
	}
}
