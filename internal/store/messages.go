package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vk/jobhost/internal/storage"
)

// Channel returns the store's durable storage.Channel.
func (s *Store) Channel() storage.Channel {
	return channel{s}
}

type channel struct{ s *Store }

var _ storage.Acker = channel{}

// Send enqueues a message.
func (c channel) Send(ctx context.Context, name string, msg storage.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now()
	}
	_, err := c.s.db.ExecContext(ctx,
		`INSERT INTO messages (queue, id, body, dequeue_count, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		name, msg.ID, msg.Body, msg.DequeueCount, msg.EnqueuedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("enqueueing to %s: %w", name, err)
	}
	return nil
}

// Receive polls until a message is available or ctx is done. The message
// is leased, not removed; see Ack.
func (c channel) Receive(ctx context.Context, name string) (*storage.Message, error) {
	ticker := time.NewTicker(c.s.pollInterval)
	defer ticker.Stop()

	for {
		msg, err := c.pop(ctx, name)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// pop leases the oldest visible message of queue name. The row stays in
// the table, hidden until its lease expires, so a crash before Ack leads to
// another delivery rather than a lost message.
func (c channel) pop(ctx context.Context, name string) (*storage.Message, error) {
	var msg storage.Message
	now := time.Now()
	err := c.s.withTx(ctx, func(tx *sql.Tx) error {
		var seq, enqueued int64
		err := tx.QueryRowContext(ctx,
			`SELECT seq, id, body, dequeue_count, enqueued_at FROM messages
			 WHERE queue = ? AND visible_at <= ? ORDER BY seq LIMIT 1`,
			name, now.UnixMilli(),
		).Scan(&seq, &msg.ID, &msg.Body, &msg.DequeueCount, &enqueued)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		msg.EnqueuedAt = time.UnixMilli(enqueued)
		msg.DequeueCount++
		msg.Lease = strconv.FormatInt(seq, 10)
		_, err = tx.ExecContext(ctx,
			`UPDATE messages SET dequeue_count = ?, visible_at = ? WHERE seq = ?`,
			msg.DequeueCount, now.Add(c.s.lease).UnixMilli(), seq,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Ack removes a received message for good.
func (c channel) Ack(ctx context.Context, name string, msg *storage.Message) error {
	seq, err := strconv.ParseInt(msg.Lease, 10, 64)
	if err != nil {
		return fmt.Errorf("acknowledging %s: invalid lease %q", msg.ID, msg.Lease)
	}
	res, err := c.s.db.ExecContext(ctx, `DELETE FROM messages WHERE seq = ? AND queue = ?`, seq, name)
	if err != nil {
		return fmt.Errorf("acknowledging %s: %w", msg.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("acknowledging %s: %w", msg.ID, storage.ErrNotFound)
	}
	return nil
}
