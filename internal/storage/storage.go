// Package storage defines the narrow capabilities bindings consume: an
// object store, named message channels and a keyed table. Implementations
// live in subpackages and in internal/store.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object, row or message does not exist.
var ErrNotFound = errors.New("storage: not found")

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ObjectStore reads and writes objects addressed by slash-separated paths.
type ObjectStore interface {
	Read(ctx context.Context, path string) (io.ReadCloser, error)
	Write(ctx context.Context, path string, r io.Reader) error
	// List returns the objects whose path starts with prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Message is one entry of a channel.
type Message struct {
	ID           string
	Body         []byte
	DequeueCount int
	EnqueuedAt   time.Time
	// Lease identifies this delivery on channels that implement Acker.
	Lease string
}

// Channel is a set of named FIFO queues.
type Channel interface {
	// Send enqueues msg. An empty ID is assigned by the channel.
	Send(ctx context.Context, name string, msg Message) error
	// Receive blocks until a message is available or ctx is done. The
	// returned message has its DequeueCount incremented.
	Receive(ctx context.Context, name string) (*Message, error)
}

// Acker is implemented by channels that keep a received message leased
// instead of removing it. A message that is not acknowledged before its
// lease expires is delivered again.
type Acker interface {
	Ack(ctx context.Context, name string, msg *Message) error
}

// Table stores opaque rows addressed by partition and row key.
type Table interface {
	Read(ctx context.Context, table, partition, row string) ([]byte, error)
	Write(ctx context.Context, table, partition, row string, data []byte) error
}
