package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/indexer"
	"github.com/vk/jobhost/internal/listener"
	"golang.org/x/sync/errgroup"
)

type job struct {
	ctx     context.Context
	def     *indexer.FunctionDefinition
	payload any
	done    chan error
}

// Run starts one listener per auto-triggered function and executes the
// payloads they produce on a pool of cfg.Workers workers. Invocation faults
// are logged and never stop the host. Run returns when ctx is done or a
// listener fails.
func (h *Host) Run(ctx context.Context) error {
	ctx = h.context(ctx)
	logger := h.logger
	logger.Debug("Host.Run method started.")

	var triggered []*indexer.FunctionDefinition
	for _, def := range h.defs {
		if def.AutoTrigger && def.Trigger().Spec.Trigger.Listen != nil {
			triggered = append(triggered, def)
		}
	}
	if len(triggered) == 0 {
		logger.Warn("No triggered functions found, nothing to listen for.")
		return nil
	}

	jobs := make(chan job)
	var workers sync.WaitGroup
	for i := range h.cfg.Workers {
		workers.Add(1)
		go func() {
			defer workers.Done()
			h.worker(ctx, jobs, i+1)
		}()
	}

	logger.Info("🚀 Starting listeners...", "count", len(triggered), "workers", h.cfg.Workers)
	g, gctx := errgroup.WithContext(ctx)
	for _, def := range triggered {
		g.Go(func() error {
			lctx := listener.WithFunction(ctxlog.With(gctx, "function", def.Name), def.Name)
			dispatch := func(ctx context.Context, payload any) error {
				j := job{ctx: ctx, def: def, payload: payload, done: make(chan error, 1)}
				select {
				case jobs <- j:
				case <-ctx.Done():
					return ctx.Err()
				}
				return <-j.done
			}
			if err := def.Trigger().Spec.Trigger.Listen(lctx, dispatch); err != nil {
				return fmt.Errorf("listener for function %q failed: %w", def.Name, err)
			}
			return nil
		})
	}

	err := g.Wait()
	close(jobs)
	workers.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Host stopped with error.", "error", err)
		return err
	}
	logger.Info("🏁 Host stopped.")
	return nil
}

// worker is the processing loop for a single concurrent worker.
func (h *Host) worker(ctx context.Context, jobs <-chan job, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for j := range jobs {
		logger.Debug("Worker picked up invocation.", "workerID", workerID, "function", j.def.Name)
		res := h.invoker.Invoke(j.ctx, j.def, nil, j.payload)
		j.done <- res.Err()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
