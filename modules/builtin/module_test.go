package builtin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobhost/internal/binding"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/testutil"
)

func TestPrint(t *testing.T) {
	ctx, logs := testutil.Context(t)
	var out bytes.Buffer

	Print(ctx, &out, &binding.Context{
		FunctionName: "echo",
		Data:         binding.Data{"b": "2", "a": "1"},
	}, "hello")

	assert.Equal(t, "echo: hello\n      a = \"1\"\n      b = \"2\"\n", out.String())
	assert.Contains(t, logs.String(), "Printing input")
}

func TestCopyAndUpper(t *testing.T) {
	var b []byte
	Copy([]byte("x"), &b)
	assert.Equal(t, []byte("x"), b)

	var s string
	Upper("abc", &s)
	assert.Equal(t, "ABC", s)
}

func TestRegister(t *testing.T) {
	reg := registry.New()
	reg.Use(&Module{})
	for _, name := range []string{"Print", "Copy", "Upper"} {
		_, ok := reg.Handler(name)
		require.True(t, ok, name)
	}
}
