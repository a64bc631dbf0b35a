package listener

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobhost/internal/pathtemplate"
	"github.com/vk/jobhost/internal/storage"
	"github.com/vk/jobhost/internal/storage/afsstore"
	"github.com/vk/jobhost/internal/storage/memchannel"
	"github.com/vk/jobhost/internal/testutil"
)

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(strings.NewReader("hello"))
	require.NoError(t, err)
	b, err := Fingerprint(strings.NewReader("hello"))
	require.NoError(t, err)
	c, err := Fingerprint(strings.NewReader("hello!"))
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFunction(t *testing.T) {
	assert.Equal(t, "", Function(context.Background()))
	assert.Equal(t, "resize", Function(WithFunction(context.Background(), "resize")))
}

type dispatchLog struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
}

func (d *dispatchLog) dispatch(_ context.Context, path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths = append(d.paths, path)
	if d.fail[path] {
		return errors.New("handler failed")
	}
	return nil
}

func (d *dispatchLog) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths = nil
}

func TestBlobPoller_Scan(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx = WithFunction(ctx, "resize")

	objects := afsstore.New(t.TempDir())
	require.NoError(t, objects.Write(ctx, "in/a.png", strings.NewReader("a")))
	require.NoError(t, objects.Write(ctx, "in/b.png", strings.NewReader("b")))
	require.NoError(t, objects.Write(ctx, "in/notes.txt", strings.NewReader("n")))
	require.NoError(t, objects.Write(ctx, "out/c.png", strings.NewReader("c")))

	poller := &BlobPoller{
		Objects:  objects,
		Receipts: &MemReceipts{},
		Template: pathtemplate.MustParse("in/{name}.png"),
	}
	log := &dispatchLog{}

	n, err := poller.Scan(ctx, log.dispatch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"in/a.png", "in/b.png"}, log.paths)

	t.Run("unchanged blobs do not fire again", func(t *testing.T) {
		log.reset()
		n, err := poller.Scan(ctx, log.dispatch)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, log.paths)
	})

	t.Run("changed content fires again", func(t *testing.T) {
		log.reset()
		require.NoError(t, objects.Write(ctx, "in/a.png", strings.NewReader("a2")))
		n, err := poller.Scan(ctx, log.dispatch)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"in/a.png"}, log.paths)
	})

	t.Run("receipts are per function", func(t *testing.T) {
		log.reset()
		n, err := poller.Scan(WithFunction(ctx, "thumbnail"), log.dispatch)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestBlobPoller_RetriesFailedDispatch(t *testing.T) {
	ctx, logs := testutil.Context(t)

	objects := afsstore.New(t.TempDir())
	require.NoError(t, objects.Write(ctx, "in/a.png", strings.NewReader("a")))

	poller := &BlobPoller{Objects: objects, Receipts: &MemReceipts{}, Template: pathtemplate.MustParse("in/{name}.png")}
	log := &dispatchLog{fail: map[string]bool{"in/a.png": true}}

	n, err := poller.Scan(ctx, log.dispatch)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, logs.String(), "Blob dispatch failed, will retry.")

	log.fail = nil
	n, err = poller.Scan(ctx, log.dispatch)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"in/a.png", "in/a.png"}, log.paths)
}

func TestBlobPoller_RunStopsOnCancel(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)

	objects := afsstore.New(t.TempDir())
	require.NoError(t, objects.Write(ctx, "in/a.png", strings.NewReader("a")))

	poller := &BlobPoller{
		Objects:  objects,
		Receipts: &MemReceipts{},
		Template: pathtemplate.MustParse("in/{name}.png"),
		Interval: 5 * time.Millisecond,
	}
	fired := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- poller.Run(ctx, func(_ context.Context, path string) error {
			fired <- path
			return nil
		})
	}()

	select {
	case path := <-fired:
		assert.Equal(t, "in/a.png", path)
	case <-time.After(2 * time.Second):
		t.Fatal("poller never dispatched")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestQueueReceiver_Handle(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ch := memchannel.New(0)
	q := &QueueReceiver{Channel: ch, Name: "orders", MaxDequeueCount: 2}
	failing := func(context.Context, *storage.Message) error { return errors.New("boom") }

	t.Run("success settles the message", func(t *testing.T) {
		msg := &storage.Message{ID: "ok", DequeueCount: 1}
		require.NoError(t, q.Handle(ctx, msg, func(context.Context, *storage.Message) error { return nil }))
		assert.Zero(t, ch.Len("orders"))
	})

	t.Run("failure requeues below the limit", func(t *testing.T) {
		msg := &storage.Message{ID: "m1", DequeueCount: 1}
		require.NoError(t, q.Handle(ctx, msg, failing))
		require.Equal(t, 1, ch.Len("orders"))

		again, err := ch.Receive(ctx, "orders")
		require.NoError(t, err)
		assert.Equal(t, "m1", again.ID)
		assert.Equal(t, 2, again.DequeueCount)

		require.NoError(t, q.Handle(ctx, again, failing))
		assert.Zero(t, ch.Len("orders"))
		assert.Equal(t, 1, ch.Len(PoisonQueue("orders")))
	})
}

// ackingChannel records acknowledgements on top of an in-memory channel.
type ackingChannel struct {
	*memchannel.Channel
	acked []string
}

func (c *ackingChannel) Ack(_ context.Context, _ string, msg *storage.Message) error {
	c.acked = append(c.acked, msg.ID)
	return nil
}

func TestQueueReceiver_HandleAcksAfterSettling(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ch := &ackingChannel{Channel: memchannel.New(0)}
	q := &QueueReceiver{Channel: ch, Name: "orders", MaxDequeueCount: 2}

	require.NoError(t, q.Handle(ctx, &storage.Message{ID: "ok", DequeueCount: 1},
		func(context.Context, *storage.Message) error { return nil }))
	assert.Equal(t, []string{"ok"}, ch.acked)

	require.NoError(t, q.Handle(ctx, &storage.Message{ID: "bad", DequeueCount: 1},
		func(context.Context, *storage.Message) error { return errors.New("boom") }))
	assert.Equal(t, 1, ch.Len("orders"))
	assert.Equal(t, []string{"ok", "bad"}, ch.acked)
}

func TestQueueReceiver_Run(t *testing.T) {
	ctx, _ := testutil.Context(t)
	ctx, cancel := context.WithCancel(ctx)
	ch := memchannel.New(0)
	require.NoError(t, ch.Send(ctx, "orders", storage.Message{Body: []byte("1")}))
	require.NoError(t, ch.Send(ctx, "orders", storage.Message{Body: []byte("2")}))

	got := make(chan string, 2)
	q := &QueueReceiver{Channel: ch, Name: "orders"}
	done := make(chan error, 1)
	go func() {
		done <- q.Run(ctx, func(_ context.Context, msg *storage.Message) error {
			got <- string(msg.Body)
			return nil
		})
	}()

	assert.Equal(t, "1", <-got)
	assert.Equal(t, "2", <-got)
	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, "poison-poison", PoisonQueue("poison"))
}
