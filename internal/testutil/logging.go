// Package testutil holds helpers shared by package tests: a thread-safe log
// buffer and contexts prepared the way the host prepares them.
package testutil

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/vk/jobhost/internal/ctxlog"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// NewLogger returns a debug-level text logger writing to w. When the
// JOBHOST_TEST_LOGS environment variable is set, output is mirrored to
// stdout.
func NewLogger(w io.Writer) *slog.Logger {
	if os.Getenv("JOBHOST_TEST_LOGS") != "" {
		w = io.MultiWriter(w, os.Stdout)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Context returns a context carrying a test logger, cancelled when the test
// ends, together with the buffer the logger writes to.
func Context(t *testing.T) (context.Context, *SafeBuffer) {
	t.Helper()
	buf := &SafeBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctxlog.WithLogger(ctx, NewLogger(buf)), buf
}
