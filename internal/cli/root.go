package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/host"
	"github.com/vk/jobhost/internal/hostconfig"
	"github.com/vk/jobhost/internal/registry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config    []string
	LogLevel  string
	LogFormat string

	// Modules are registered with every host the commands build.
	Modules []registry.Module
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"text", "json"}
)

// NewRootCommand creates the root command for the jobhost CLI.
func NewRootCommand(modules ...registry.Module) *cobra.Command {
	opts := &RootOptions{Modules: modules}

	cmd := &cobra.Command{
		Use:   "jobhost",
		Short: "jobhost - a host for declaratively triggered functions",
		Long: `jobhost runs Go functions whose parameters are bound to blobs, queues,
tables and socket.io events, as declared by HCL function manifests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel != "" && !slices.Contains(validLevels, opts.LogLevel) {
				return &ExitError{Code: 2, Message: fmt.Sprintf("invalid log-level %q: must be one of %v", opts.LogLevel, validLevels)}
			}
			if opts.LogFormat != "" && !slices.Contains(validFormats, opts.LogFormat) {
				return &ExitError{Code: 2, Message: fmt.Sprintf("invalid log-format %q: must be one of %v", opts.LogFormat, validFormats)}
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringArrayVarP(&opts.Config, "config", "c", []string{"jobhost.hcl"}, "config file or directory of .hcl files (repeatable)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log_level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override log_format (text|json)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// loadHost reads the configuration and builds a host writing to outW.
// quietLevel replaces the configured log level unless --log-level is set.
func loadHost(ctx context.Context, opts *RootOptions, outW io.Writer, quietLevel string) (*host.Host, error) {
	level := opts.LogLevel
	if level == "" {
		level = "info"
	}
	bootstrap := slog.New(slog.NewTextHandler(outW, &slog.HandlerOptions{Level: levelOf(level)}))
	ctx = ctxlog.WithLogger(ctx, bootstrap)

	cfg, err := hostconfig.Load(ctx, opts.Config...)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	switch {
	case opts.LogLevel != "":
		cfg.LogLevel = opts.LogLevel
	case quietLevel != "":
		cfg.LogLevel = quietLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}

	h, err := host.New(ctx, outW, cfg, opts.Modules...)
	if err != nil {
		return nil, &ExitError{Code: 1, Message: fmt.Sprintf("A critical startup error occurred: %v", err)}
	}
	return h, nil
}

func levelOf(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
