package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobhost/internal/hostconfig"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/storage"
	"github.com/vk/jobhost/internal/testutil"
)

const manifest = `
log_level     = "debug"
workers       = 2
poll_interval = "10ms"
settings_file = %q

storage {
  objects  = %q
  database = %q
  channel  = "memory"
}

function "upper" {
  handler     = "Upper"
  description = "Upper-cases text files."

  parameter "in" {
    binding = "blob_trigger"
    path    = "in/{name}.txt"
  }
  parameter "out" {
    binding = "blob"
    path    = "%%out_dir%%/{name}.txt"
  }
}

function "echo" {
  handler     = "Print"
  invoke_only = true

  parameter "ctx" {}
  parameter "bc" {}
  parameter "value" {}
}

function "jobs" {
  handler = "Print"

  parameter "ctx" {}
  parameter "bc" {}
  parameter "value" {
    binding = "queue_trigger"
    name    = "jobs"
  }
}
`

func newTestHost(t *testing.T, extra string, modules ...registry.Module) (*Host, *testutil.SafeBuffer) {
	t.Helper()
	dir := t.TempDir()
	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("out_dir: out\n"), 0o644))

	src := fmt.Sprintf(manifest, settings, filepath.Join(dir, "objects"), filepath.Join(dir, "jobhost.db")) + extra
	cfg, err := hostconfig.Parse([]byte(src), "host.hcl")
	require.NoError(t, err)

	out := &testutil.SafeBuffer{}
	h, err := New(context.Background(), out, cfg, modules...)
	require.NoError(t, err, out.String())
	t.Cleanup(func() { h.Close() })
	return h, out
}

func readObject(ctx context.Context, s storage.ObjectStore, path string) (string, error) {
	rc, err := s.Read(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	return string(b), err
}

func TestNew_IndexesManifests(t *testing.T) {
	h, _ := newTestHost(t, "")

	require.Len(t, h.Functions(), 3)
	upper, ok := h.Function("upper")
	require.True(t, ok)
	assert.True(t, upper.AutoTrigger)
	assert.Equal(t, "out/{name}.txt", upper.Param("out").Spec.Template.String())
	assert.Equal(t, "host.hcl:13", upper.Source)

	echo, ok := h.Function("echo")
	require.True(t, ok)
	assert.False(t, echo.AutoTrigger)
}

func TestCall(t *testing.T) {
	h, out := newTestHost(t, "")
	ctx := context.Background()

	res, err := h.Call(ctx, "echo", map[string]any{"value": "hi"})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Contains(t, out.String(), "echo: hi")
	assert.Contains(t, out.String(), `value = "hi"`)

	t.Run("trigger payload by parameter name", func(t *testing.T) {
		require.NoError(t, h.Objects().Write(ctx, "in/doc.txt", strings.NewReader("abc")))
		res, err := h.Call(ctx, "upper", map[string]any{"in": "in/doc.txt"})
		require.NoError(t, err)
		require.NoError(t, res.Err())
		got, err := readObject(ctx, h.Objects(), "out/doc.txt")
		require.NoError(t, err)
		assert.Equal(t, "ABC", got)
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := h.Call(ctx, "nope", nil)
		var unknown *UnknownFunctionError
		assert.True(t, errors.As(err, &unknown))
	})

	t.Run("invocations are recorded", func(t *testing.T) {
		recs, err := h.Invocations(ctx, "echo", 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.True(t, recs[0].Succeeded())
		assert.Equal(t, "hi", recs[0].BindingData["value"])
	})
}

func TestRun_DispatchesTriggers(t *testing.T) {
	h, out := newTestHost(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.Objects().Write(ctx, "in/a.txt", strings.NewReader("hello")))
	require.NoError(t, h.Channel().Send(ctx, "jobs", storage.Message{Body: []byte("from queue")}))

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := readObject(ctx, h.Objects(), "out/a.txt")
		return err == nil && got == "HELLO"
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "jobs: from queue")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("host did not stop")
	}
}

type failingModule struct{}

func (failingModule) Register(r *registry.Registry) {
	r.RegisterHandler("Fail", func(value string) error { return errors.New("nope") })
}

func TestRun_FaultsDoNotStopHost(t *testing.T) {
	h, out := newTestHost(t, `
function "fail" {
  handler = "Fail"
  parameter "value" {
    binding = "queue_trigger"
    name    = "bad"
  }
}
`, failingModule{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, h.Channel().Send(ctx, "bad", storage.Message{Body: []byte("x")}))
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Message moved to poison queue.")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNew_IndexingFailure(t *testing.T) {
	dir := t.TempDir()
	cfg, err := hostconfig.Parse([]byte(fmt.Sprintf(`
storage {
  objects  = %q
  database = %q
}

function "bad" {
  handler = "Upper"
  parameter "in" {
    binding = "queue"
    name    = "q"
  }
  parameter "out" {}
}
`, filepath.Join(dir, "objects"), filepath.Join(dir, "db"))), "bad.hcl")
	require.NoError(t, err)

	_, err = New(context.Background(), io.Discard, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `indexing function "bad"`)
}

func TestDescribe(t *testing.T) {
	h, _ := newTestHost(t, "")

	var fns bytes.Buffer
	require.NoError(t, h.Describe(&fns))
	assert.Contains(t, fns.String(), "function upper\n")
	assert.Contains(t, fns.String(), "description: Upper-cases text files.")

	var rules bytes.Buffer
	require.NoError(t, h.DescribeRules(&rules))
	assert.Contains(t, rules.String(), "blob.Blob\n")
	assert.Contains(t, rules.String(), "  - blob-trigger: trigger, templated")
	assert.Contains(t, rules.String(), "  - queue-output: collector []uint8, templated")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger("warn", "json", &buf).Info("hidden")
	newLogger("warn", "json", &buf).Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
