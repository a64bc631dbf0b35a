package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/pathtemplate"
	"github.com/vk/jobhost/internal/storage"
)

// Receipts remembers which blob content a function has already processed.
type Receipts interface {
	Receipt(ctx context.Context, function, path string) (string, bool, error)
	PutReceipt(ctx context.Context, function, path, fingerprint string) error
}

// BlobPoller scans an object store for blobs matching a template.
type BlobPoller struct {
	Objects  storage.ObjectStore
	Receipts Receipts
	Template *pathtemplate.Template
	Interval time.Duration
}

// Run scans every Interval until ctx is done. Blobs whose dispatch fails are
// retried on the next scan.
func (p *BlobPoller) Run(ctx context.Context, dispatch func(ctx context.Context, path string) error) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.Scan(ctx, dispatch); err != nil && ctx.Err() == nil {
			ctxlog.FromContext(ctx).Warn("Blob scan failed.", "template", p.Template.String(), "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Scan makes one pass and returns the number of blobs dispatched
// successfully. Dispatch failures are logged and do not end the pass.
func (p *BlobPoller) Scan(ctx context.Context, dispatch func(ctx context.Context, path string) error) (int, error) {
	logger := ctxlog.FromContext(ctx)
	function := Function(ctx)

	objects, err := p.Objects.List(ctx, p.Template.Prefix())
	if err != nil {
		return 0, fmt.Errorf("listing %q: %w", p.Template.Prefix(), err)
	}

	fired := 0
	for _, obj := range objects {
		if ctx.Err() != nil {
			return fired, nil
		}
		if _, ok := p.Template.Match(obj.Path); !ok {
			continue
		}

		fp, err := p.fingerprint(ctx, obj.Path)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fired, err
		}

		seen, ok, err := p.Receipts.Receipt(ctx, function, obj.Path)
		if err != nil {
			return fired, err
		}
		if ok && seen == fp {
			continue
		}

		logger.Debug("Blob changed.", "path", obj.Path, "fingerprint", fp)
		if err := dispatch(ctx, obj.Path); err != nil {
			logger.Warn("Blob dispatch failed, will retry.", "path", obj.Path, "error", err)
			continue
		}
		if err := p.Receipts.PutReceipt(ctx, function, obj.Path, fp); err != nil {
			return fired, err
		}
		fired++
	}
	return fired, nil
}

func (p *BlobPoller) fingerprint(ctx context.Context, path string) (string, error) {
	rc, err := p.Objects.Read(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return Fingerprint(rc)
}

// MemReceipts is an in-process Receipts.
type MemReceipts struct {
	mu sync.Mutex
	m  map[[2]string]string
}

// Receipt implements Receipts.
func (r *MemReceipts) Receipt(_ context.Context, function, path string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.m[[2]string{function, path}]
	return fp, ok, nil
}

// PutReceipt implements Receipts.
func (r *MemReceipts) PutReceipt(_ context.Context, function, path, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[[2]string]string)
	}
	r.m[[2]string{function, path}] = fingerprint
	return nil
}
