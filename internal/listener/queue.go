package listener

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/jobhost/internal/ctxlog"
	"github.com/vk/jobhost/internal/storage"
)

// DefaultMaxDequeueCount is used when QueueReceiver.MaxDequeueCount is zero.
const DefaultMaxDequeueCount = 5

// PoisonQueue names the queue that receives messages of name that keep
// failing.
func PoisonQueue(name string) string {
	return name + "-poison"
}

// QueueReceiver pulls messages from one queue.
type QueueReceiver struct {
	Channel         storage.Channel
	Name            string
	MaxDequeueCount int
}

// Run receives until ctx is done. A message whose dispatch fails goes back
// to the queue, or to the poison queue once it was dequeued
// MaxDequeueCount times.
func (q *QueueReceiver) Run(ctx context.Context, dispatch func(ctx context.Context, msg *storage.Message) error) error {
	for {
		msg, err := q.Channel.Receive(ctx, q.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving from %s: %w", q.Name, err)
		}
		if err := q.Handle(ctx, msg, dispatch); err != nil {
			return err
		}
	}
}

// Handle dispatches one received message and settles it. On channels that
// implement storage.Acker the message is acknowledged only after it was
// handled or requeued.
func (q *QueueReceiver) Handle(ctx context.Context, msg *storage.Message, dispatch func(ctx context.Context, msg *storage.Message) error) error {
	logger := ctxlog.FromContext(ctx).With("queue", q.Name, "message_id", msg.ID)

	derr := dispatch(ctx, msg)
	if derr != nil {
		max := q.MaxDequeueCount
		if max <= 0 {
			max = DefaultMaxDequeueCount
		}
		target := q.Name
		if msg.DequeueCount >= max {
			target = PoisonQueue(q.Name)
			logger.Warn("Message moved to poison queue.", "dequeue_count", msg.DequeueCount, "error", derr)
		} else {
			logger.Debug("Message returned to queue.", "dequeue_count", msg.DequeueCount, "error", derr)
		}

		// Requeue even when ctx is already canceled so the message is not lost.
		if err := q.Channel.Send(context.WithoutCancel(ctx), target, *msg); err != nil {
			return errors.Join(derr, fmt.Errorf("requeueing %s to %s: %w", msg.ID, target, err))
		}
	}

	if acker, ok := q.Channel.(storage.Acker); ok {
		if err := acker.Ack(context.WithoutCancel(ctx), q.Name, msg); err != nil {
			logger.Warn("Failed to acknowledge message, it will be delivered again.", "error", err)
		}
	}
	return nil
}
