// Package memchannel is an in-process storage.Channel for tests and
// single-host deployments.
package memchannel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/jobhost/internal/storage"
)

// Channel keeps one buffered Go channel per queue name.
type Channel struct {
	mu       sync.Mutex
	capacity int
	queues   map[string]chan storage.Message
}

// New returns a Channel whose queues hold up to capacity messages each.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Channel{capacity: capacity, queues: make(map[string]chan storage.Message)}
}

func (c *Channel) queue(name string) chan storage.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[name]
	if !ok {
		q = make(chan storage.Message, c.capacity)
		c.queues[name] = q
	}
	return q
}

// Send implements storage.Channel. It blocks while the queue is full.
func (c *Channel) Send(ctx context.Context, name string, msg storage.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now()
	}
	select {
	case c.queue(name) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive implements storage.Channel.
func (c *Channel) Receive(ctx context.Context, name string) (*storage.Message, error) {
	select {
	case msg := <-c.queue(name):
		msg.DequeueCount++
		return &msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of messages waiting in a queue.
func (c *Channel) Len(name string) int {
	return len(c.queue(name))
}
