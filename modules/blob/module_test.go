package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobhost/internal/indexer"
	"github.com/vk/jobhost/internal/invoker"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/storage"
	"github.com/vk/jobhost/internal/storage/afsstore"
	"github.com/vk/jobhost/internal/testutil"
)

type testEnv struct {
	ctx     context.Context
	objects *afsstore.Store
	reg     *registry.Registry
	ix      *indexer.Indexer
	iv      *invoker.Invoker
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, _ := testutil.Context(t)
	objects := afsstore.New(t.TempDir())

	reg := registry.New()
	reg.Use(&Module{Objects: objects, PollInterval: 5 * time.Millisecond})
	reg.Seal()

	return &testEnv{
		ctx:     ctx,
		objects: objects,
		reg:     reg,
		ix:      indexer.New(reg.Rules),
		iv:      invoker.New(reg.Converters),
	}
}

func (e *testEnv) index(t *testing.T, decl indexer.Declaration) *indexer.FunctionDefinition {
	t.Helper()
	def, err := e.ix.Index(e.ctx, decl)
	require.NoError(t, err)
	require.NotNil(t, def)
	return def
}

func (e *testEnv) put(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, e.objects.Write(e.ctx, path, strings.NewReader(content)))
}

func (e *testEnv) get(t *testing.T, path string) string {
	t.Helper()
	rc, err := e.objects.Read(e.ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestTriggerToOutput(t *testing.T) {
	e := newEnv(t)
	e.put(t, "in/report.txt", "hello")

	def := e.index(t, indexer.Declaration{
		Name: "upper",
		Fn: func(in string, name string, out *string) {
			*out = strings.ToUpper(in) + " " + name
		},
		Params: []indexer.Param{
			{Name: "in", Tag: BlobTrigger{Path: "in/{name}.txt"}},
			{Name: "name"},
			{Name: "out", Tag: Blob{Path: "out/{name}.txt"}},
		},
	})
	assert.True(t, def.AutoTrigger)
	assert.Equal(t, []string{"name", "BlobTrigger"}, def.Trigger().Spec.Trigger.Contract)

	res := e.iv.Invoke(e.ctx, def, nil, "in/report.txt")
	require.NoError(t, res.Err())
	assert.Equal(t, "HELLO report", e.get(t, "out/report.txt"))
	assert.Equal(t, "in/report.txt", res.Data["BlobTrigger"])
	assert.Equal(t, "1 item(s) added", res.ParameterLogs["out"])
}

func TestTriggerPayloadTypes(t *testing.T) {
	e := newEnv(t)
	e.put(t, "in/a.txt", "abc")

	var got Event
	def := e.index(t, indexer.Declaration{
		Name:   "event",
		Fn:     func(ev Event) { got = ev },
		Params: []indexer.Param{{Name: "ev", Tag: BlobTrigger{Path: "in/{name}.txt"}}},
	})
	require.NoError(t, e.iv.Invoke(e.ctx, def, nil, Event{Path: "in/a.txt"}).Err())
	assert.Equal(t, Event{Path: "in/a.txt", Size: 3}, got)

	var read string
	def = e.index(t, indexer.Declaration{
		Name: "reader",
		Fn: func(r io.Reader) error {
			b, err := io.ReadAll(r)
			read = string(b)
			return err
		},
		Params: []indexer.Param{{Name: "r", Tag: BlobTrigger{Path: "in/{name}.txt"}}},
	})
	require.NoError(t, e.iv.Invoke(e.ctx, def, nil, "in/a.txt").Err())
	assert.Equal(t, "abc", read)

	t.Run("path outside the template is a bind fault", func(t *testing.T) {
		res := e.iv.Invoke(e.ctx, def, nil, "elsewhere/a.txt")
		require.Error(t, res.Err())
		assert.Equal(t, invoker.StageBind, res.Fault.Stage)
	})

	t.Run("missing blob is a bind fault", func(t *testing.T) {
		res := e.iv.Invoke(e.ctx, def, nil, "in/missing.txt")
		require.Error(t, res.Err())
		assert.ErrorIs(t, res.Err(), storage.ErrNotFound)
	})
}

func TestInputBindings(t *testing.T) {
	e := newEnv(t)
	e.put(t, "cfg/app.json", `{"a":1}`)

	var asBytes []byte
	var asString string
	var missing string
	def := e.index(t, indexer.Declaration{
		Name:       "load",
		InvokeOnly: true,
		Fn: func(b []byte, s string, m string) {
			asBytes, asString, missing = b, s, m
		},
		Params: []indexer.Param{
			{Name: "b", Tag: Blob{Path: "cfg/app.json"}},
			{Name: "s", Tag: Blob{Path: "cfg/app.json", Access: AccessRead}},
			{Name: "m", Tag: Blob{Path: "cfg/none.json"}},
		},
	})
	require.NoError(t, e.iv.Invoke(e.ctx, def, nil, nil).Err())
	assert.Equal(t, []byte(`{"a":1}`), asBytes)
	assert.Equal(t, `{"a":1}`, asString)
	assert.Empty(t, missing)
}

func TestWriterAndInOut(t *testing.T) {
	e := newEnv(t)
	e.put(t, "counter.txt", "1")

	def := e.index(t, indexer.Declaration{
		Name:       "bump",
		InvokeOnly: true,
		Fn: func(w io.Writer, counter *string) error {
			*counter += "1"
			_, err := io.Copy(w, bytes.NewBufferString("log line"))
			return err
		},
		Params: []indexer.Param{
			{Name: "w", Tag: Blob{Path: "logs/{id}.log", Access: AccessWrite}},
			{Name: "counter", Tag: Blob{Path: "counter.txt", Access: AccessReadWrite}},
			{Name: "id"},
		},
	})
	assert.Equal(t, "blob-writer", def.Param("w").Spec.Rule)
	assert.Equal(t, "blob-inout", def.Param("counter").Spec.Rule)

	res := e.iv.Invoke(e.ctx, def, map[string]any{"id": "7"}, nil)
	require.NoError(t, res.Err())
	assert.Equal(t, "11", e.get(t, "counter.txt"))
	assert.Equal(t, "log line", e.get(t, "logs/7.log"))
	assert.Equal(t, "8 byte(s) written", res.ParameterLogs["w"])
}

func TestReadOnlyOutputIsUnsupported(t *testing.T) {
	e := newEnv(t)
	_, err := e.ix.Index(e.ctx, indexer.Declaration{
		Name:       "bad",
		InvokeOnly: true,
		Fn:         func(w io.Writer) {},
		Params:     []indexer.Param{{Name: "w", Tag: Blob{Path: "x", Access: AccessRead}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported binding")
}

func TestListen(t *testing.T) {
	e := newEnv(t)
	e.put(t, "in/a.txt", "a")

	def := e.index(t, indexer.Declaration{
		Name:   "watch",
		Fn:     func(in string) {},
		Params: []indexer.Param{{Name: "in", Tag: BlobTrigger{Path: "in/{name}.txt"}}},
	})
	listen := def.Trigger().Spec.Trigger.Listen
	require.NotNil(t, listen)

	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()
	fired := make(chan any, 1)
	go func() {
		_ = listen(ctx, func(_ context.Context, payload any) error {
			fired <- payload
			return nil
		})
	}()

	select {
	case p := <-fired:
		assert.Equal(t, "in/a.txt", p)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired")
	}
}

func TestRegisterRequiresObjectStore(t *testing.T) {
	assert.Panics(t, func() { registry.New().Use(&Module{}) })
}
