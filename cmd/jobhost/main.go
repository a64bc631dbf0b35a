package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/jobhost/internal/cli"
)

// main is the entrypoint for the jobhost application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line against outW and turns a panic into an error.
func run(outW io.Writer, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &cli.ExitError{Code: 1, Message: fmt.Sprintf("application startup panicked: %v", r)}
		}
	}()

	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(outW)
	cmd.SetErr(outW)
	return cmd.ExecuteContext(context.Background())
}
