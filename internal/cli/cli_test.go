package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
log_level = "warn"

storage {
  objects  = %q
  database = %q
  channel  = "memory"
}

function "echo" {
  handler     = "Print"
  invoke_only = true

  parameter "ctx" {}
  parameter "bc" {}
  parameter "value" {}
}

function "shout" {
  handler = "Upper"

  parameter "in" {
    binding = "blob_trigger"
    path    = "in/{name}.txt"
  }
  parameter "out" {
    binding = "blob"
    path    = "out/{name}.txt"
  }
}
`

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "host.hcl")
	src := fmt.Sprintf(testManifest, filepath.Join(dir, "objects"), filepath.Join(dir, "jobhost.db"))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "describe", "--log-level", "loud")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "invalid log-level")
}

func TestRoot_InvalidLogFormat(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "rules", "--log-format", "xml")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Contains(t, exitErr.Message, "invalid log-format")
}

func TestRoot_MissingConfig(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "describe", "--config", filepath.Join(t.TempDir(), "nope.hcl"))

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)

	out, err := execute(t, "describe", "--config", cfg)

	require.NoError(t, err)
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "shout")
	assert.Contains(t, out, "rule=blob-trigger")
}

func TestRules(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)

	out, err := execute(t, "rules", "--config", cfg)

	require.NoError(t, err)
	assert.Contains(t, out, "blob-trigger")
	assert.Contains(t, out, "queue-output")
}

func TestCall_Success(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)

	out, err := execute(t, "call", "echo", "--config", cfg, "--arg", "value=hello")

	require.NoError(t, err)
	assert.Contains(t, out, "echo: hello")
	assert.Contains(t, out, "done")
}

func TestCall_ArgsFile(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)
	argsFile := filepath.Join(t.TempDir(), "args.yaml")
	require.NoError(t, os.WriteFile(argsFile, []byte("value: from-file\n"), 0o644))

	out, err := execute(t, "call", "echo", "--config", cfg, "--args-file", argsFile)

	require.NoError(t, err)
	assert.Contains(t, out, "echo: from-file")
}

func TestCall_FlagOverridesArgsFile(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)
	argsFile := filepath.Join(t.TempDir(), "args.yaml")
	require.NoError(t, os.WriteFile(argsFile, []byte("value: from-file\n"), 0o644))

	out, err := execute(t, "call", "echo", "--config", cfg, "--args-file", argsFile, "--arg", "value=from-flag")

	require.NoError(t, err)
	assert.Contains(t, out, "echo: from-flag")
	assert.NotContains(t, out, "echo: from-file")
}

func TestCall_Fault(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)

	_, err := execute(t, "call", "echo", "--config", cfg)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, exitErr.Message, "value")
}

func TestCall_UnknownFunction(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)

	_, err := execute(t, "call", "nope", "--config", cfg)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "nope")
}

func TestHistory(t *testing.T) {
	t.Parallel()
	cfg := writeManifest(t)

	_, err := execute(t, "call", "echo", "--config", cfg, "--arg", "value=one")
	require.NoError(t, err)
	_, err = execute(t, "call", "echo", "--config", cfg)
	require.Error(t, err)

	out, err := execute(t, "history", "echo", "--config", cfg)

	require.NoError(t, err)
	assert.Contains(t, out, "echo done fault=bind param=value")
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	args, err := parseArgs("", []string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "1", "b": "x=y"}, args)

	_, err = parseArgs("", []string{"novalue"})
	assert.Error(t, err)
}
