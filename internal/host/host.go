package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/hostconfig"
	"github.com/vk/jobhost/internal/indexer"
	"github.com/vk/jobhost/internal/invoker"
	"github.com/vk/jobhost/internal/nameresolver"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/storage"
	"github.com/vk/jobhost/internal/storage/afsstore"
	"github.com/vk/jobhost/internal/storage/memchannel"
	"github.com/vk/jobhost/internal/store"
	"github.com/vk/jobhost/modules/blob"
	"github.com/vk/jobhost/modules/builtin"
	"github.com/vk/jobhost/modules/queue"
	"github.com/vk/jobhost/modules/socketio"
	"github.com/vk/jobhost/modules/table"
)

// Host is one running instance: its storage, registries and indexed
// functions.
type Host struct {
	cfg      *hostconfig.Config
	logger   *slog.Logger
	registry *registry.Registry
	db       *store.Store
	objects  storage.ObjectStore
	channel  storage.Channel
	invoker  *invoker.Invoker
	defs     []*indexer.FunctionDefinition
	byName   map[string]*indexer.FunctionDefinition
	closers  []io.Closer
}

// New builds a host from cfg. Logs go to outW. modules are registered after
// the built-in extensions, so they can add handlers and bindings of their
// own. Any function that fails to index fails the whole host.
func New(ctx context.Context, outW io.Writer, cfg *hostconfig.Config, modules ...registry.Module) (*Host, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	h := &Host{cfg: cfg, logger: logger, byName: make(map[string]*indexer.FunctionDefinition)}
	if err := h.init(ctx, outW, modules); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *Host) init(ctx context.Context, outW io.Writer, modules []registry.Module) (err error) {
	cfg, logger := h.cfg, h.logger

	settings := nameresolver.New(nil)
	if cfg.SettingsFile != "" {
		if settings, err = nameresolver.Load(cfg.SettingsFile); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
	}

	if h.db, err = store.Open(cfg.Storage.Database, store.WithPollInterval(cfg.PollInterval)); err != nil {
		return err
	}
	h.closers = append(h.closers, h.db)
	h.objects = afsstore.New(cfg.Storage.Objects)
	if cfg.Storage.Channel == hostconfig.ChannelMemory {
		h.channel = memchannel.New(cfg.Storage.ChannelCapacity)
	} else {
		h.channel = h.db.Channel()
	}
	logger.Debug("Storage opened.", "objects", cfg.Storage.Objects, "database", cfg.Storage.Database, "channel", cfg.Storage.Channel)

	reg := registry.New()
	reg.Use(
		&builtin.Module{Out: outW},
		&blob.Module{Objects: h.objects, Receipts: h.db, PollInterval: cfg.PollInterval},
		&queue.Module{Channel: h.channel, MaxDequeueCount: cfg.MaxDequeueCount},
		&table.Module{Table: h.db},
	)
	if cfg.SocketIO != nil {
		client, err := socketio.Dial(ctx, socketio.Options{
			URL:                cfg.SocketIO.URL,
			Namespace:          cfg.SocketIO.Namespace,
			InsecureSkipVerify: cfg.SocketIO.InsecureSkipVerify,
		})
		if err != nil {
			return err
		}
		h.closers = append(h.closers, client)
		reg.Use(&socketio.Module{Emitter: client})
	}
	reg.Use(modules...)
	if err := reg.ValidateRegistry(ctx); err != nil {
		return err
	}
	reg.Seal()
	h.registry = reg
	logger.Debug("All modules registered.", "handlers", len(reg.Handlers), "binding_kinds", len(reg.TagDecoders))

	decls, err := cfg.Declarations(reg)
	if err != nil {
		return fmt.Errorf("failed to read function manifests: %w", err)
	}
	ix := indexer.New(reg.Rules, indexer.WithNameResolver(settings), indexer.WithParallelism(cfg.Workers))
	if h.defs, err = ix.IndexAll(ctx, decls); err != nil {
		return fmt.Errorf("failed to index functions: %w", err)
	}
	for _, def := range h.defs {
		h.byName[def.Name] = def
	}
	logger.Info("Functions indexed.", "count", len(h.defs))

	h.invoker = invoker.New(reg.Converters,
		invoker.WithRecorder(h.db),
		invoker.WithDefaultTimeout(cfg.FunctionTimeout),
	)
	return nil
}

// Close releases the host's connections. It is safe to call more than once.
func (h *Host) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		errs = append(errs, h.closers[i].Close())
	}
	h.closers = nil
	return errors.Join(errs...)
}

// Functions returns the indexed functions in manifest order.
func (h *Host) Functions() []*indexer.FunctionDefinition {
	return h.defs
}

// Function returns the indexed function named name.
func (h *Host) Function(name string) (*indexer.FunctionDefinition, bool) {
	def, ok := h.byName[name]
	return def, ok
}

// Registry returns the host's sealed registry.
func (h *Host) Registry() *registry.Registry {
	return h.registry
}

// Objects returns the host's object store.
func (h *Host) Objects() storage.ObjectStore {
	return h.objects
}

// Channel returns the host's message channel.
func (h *Host) Channel() storage.Channel {
	return h.channel
}

// Invocations returns recorded invocations, newest first.
func (h *Host) Invocations(ctx context.Context, function string, limit int) ([]*store.InvocationRecord, error) {
	return h.db.Invocations(ctx, function, limit)
}

func (h *Host) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, h.logger)
}
