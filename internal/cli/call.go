package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args     []string
	ArgsFile string
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <function>",
		Short: "Invoke one function once",
		Long: `Invoke one function once with explicit arguments.

Arguments feed binding data and invoke-only parameters. For a triggered
function, the argument named after the trigger parameter is the payload.

Example:
  jobhost call resize --arg in=images/cat.png --arg width=64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callFunction(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Args, "arg", "a", nil, "argument as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.ArgsFile, "args-file", "", "YAML file with a mapping of arguments")

	return cmd
}

func callFunction(cmd *cobra.Command, opts *CallOptions, name string) error {
	args, err := parseArgs(opts.ArgsFile, opts.Args)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	h, err := loadHost(cmd.Context(), opts.RootOptions, cmd.OutOrStdout(), "")
	if err != nil {
		return err
	}
	defer h.Close()

	res, err := h.Call(cmd.Context(), name, args)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "invocation %s: %s in %s\n", res.ID, res.State(), res.Duration())
	for _, p := range sortedKeys(res.ParameterLogs) {
		fmt.Fprintf(out, "  %s: %s\n", p, res.ParameterLogs[p])
	}
	if res.Fault != nil {
		return &ExitError{Code: 1, Message: res.Fault.Error()}
	}
	return nil
}

// parseArgs merges the args file with name=value flags; flags win.
func parseArgs(file string, pairs []string) (map[string]any, error) {
	args := make(map[string]any)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading args file: %w", err)
		}
		if err := yaml.Unmarshal(data, &args); err != nil {
			return nil, fmt.Errorf("parsing args file %s: %w", file, err)
		}
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --arg %q: want name=value", pair)
		}
		args[k] = v
	}
	return args, nil
}
