package invoker

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/jobhost/internal/ctxlog"
)

type cleanupEntry struct {
	param string
	fn    func() error
}

// cleanupStack releases per-invocation resources in LIFO order.
type cleanupStack []cleanupEntry

func (s *cleanupStack) push(param string, fn func() error) {
	if fn == nil {
		return
	}
	*s = append(*s, cleanupEntry{param: param, fn: fn})
}

// run executes every cleanup, newest first, even when earlier ones fail or
// panic.
func (s *cleanupStack) run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for i := len(*s) - 1; i >= 0; i-- {
		entry := (*s)[i]
		if err := safeCall(entry.fn); err != nil {
			logger.Warn("Cleanup failed.", "param", entry.param, "error", err)
			errs = append(errs, fmt.Errorf("cleanup of %q: %w", entry.param, err))
		}
	}
	*s = nil
	return errors.Join(errs...)
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
