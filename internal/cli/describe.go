package cli

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the indexed functions and their parameter bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHost(cmd.Context(), opts, cmd.OutOrStdout(), "warn")
			if err != nil {
				return err
			}
			defer h.Close()
			return h.Describe(cmd.OutOrStdout())
		},
	}
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print every registered binding rule in resolution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHost(cmd.Context(), opts, cmd.OutOrStdout(), "warn")
			if err != nil {
				return err
			}
			defer h.Close()
			return h.DescribeRules(cmd.OutOrStdout())
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [function]",
		Short: "Print recorded invocations, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			function := ""
			if len(args) == 1 {
				function = args[0]
			}
			h, err := loadHost(cmd.Context(), opts, cmd.OutOrStdout(), "warn")
			if err != nil {
				return err
			}
			defer h.Close()

			recs, err := h.Invocations(cmd.Context(), function, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range recs {
				fmt.Fprintf(out, "%s %s %s %s", r.Started.Format(time.RFC3339), r.ID, r.Function, r.State)
				if !r.Succeeded() {
					fmt.Fprintf(out, " fault=%s", r.FaultStage)
					if r.FaultParam != "" {
						fmt.Fprintf(out, " param=%s", r.FaultParam)
					}
					fmt.Fprintf(out, " error=%q", r.FaultMessage)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of invocations to print")
	return cmd
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
