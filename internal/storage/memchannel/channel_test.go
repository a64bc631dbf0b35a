package memchannel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobhost/internal/storage"
)

func TestChannel_FIFO(t *testing.T) {
	ctx := context.Background()
	c := New(4)

	require.NoError(t, c.Send(ctx, "orders", storage.Message{Body: []byte("1")}))
	require.NoError(t, c.Send(ctx, "orders", storage.Message{Body: []byte("2")}))
	assert.Equal(t, 2, c.Len("orders"))

	first, err := c.Receive(ctx, "orders")
	require.NoError(t, err)
	second, err := c.Receive(ctx, "orders")
	require.NoError(t, err)

	assert.Equal(t, "1", string(first.Body))
	assert.Equal(t, "2", string(second.Body))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 1, first.DequeueCount)
	assert.False(t, first.EnqueuedAt.IsZero())
}

func TestChannel_RequeueKeepsCount(t *testing.T) {
	ctx := context.Background()
	c := New(1)

	require.NoError(t, c.Send(ctx, "q", storage.Message{Body: []byte("x")}))
	msg, err := c.Receive(ctx, "q")
	require.NoError(t, err)
	require.NoError(t, c.Send(ctx, "q", *msg))

	again, err := c.Receive(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, again.ID)
	assert.Equal(t, 2, again.DequeueCount)
}

func TestChannel_ReceiveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := New(1).Receive(ctx, "empty")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
