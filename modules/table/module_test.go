package table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobhost/internal/indexer"
	"github.com/vk/jobhost/internal/invoker"
	"github.com/vk/jobhost/internal/registry"
	"github.com/vk/jobhost/internal/store"
	"github.com/vk/jobhost/internal/testutil"
)

type counter struct {
	Hits int    `json:"hits"`
	Last string `json:"last"`
}

type testEnv struct {
	ctx context.Context
	db  *store.Store
	ix  *indexer.Indexer
	iv  *invoker.Invoker
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, _ := testutil.Context(t)
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := registry.New()
	reg.Use(&Module{Table: db})
	reg.Seal()
	return &testEnv{ctx: ctx, db: db, ix: indexer.New(reg.Rules), iv: invoker.New(reg.Converters)}
}

func TestInOutCreatesThenUpdates(t *testing.T) {
	e := newEnv(t)
	def, err := e.ix.Index(e.ctx, indexer.Declaration{
		Name:       "hit",
		InvokeOnly: true,
		Fn: func(c *counter, page string) {
			c.Hits++
			c.Last = page
		},
		Params: []indexer.Param{
			{Name: "c", Tag: Table{Name: "counters", PartitionKey: "pages", RowKey: "{page}"}},
			{Name: "page"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "table-inout", def.Param("c").Spec.Rule)
	assert.Equal(t, []string{"page"}, def.Param("c").Spec.TemplateNames())

	res := e.iv.Invoke(e.ctx, def, map[string]any{"page": "home"}, nil)
	require.NoError(t, res.Err())
	assert.Equal(t, "created", res.ParameterLogs["c"])

	res = e.iv.Invoke(e.ctx, def, map[string]any{"page": "home"}, nil)
	require.NoError(t, res.Err())
	assert.Equal(t, "updated", res.ParameterLogs["c"])

	raw, err := e.db.Read(e.ctx, "counters", "pages", "home")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":2,"last":"home"}`, string(raw))
}

func TestKeysShareAPlaceholder(t *testing.T) {
	e := newEnv(t)
	def, err := e.ix.Index(e.ctx, indexer.Declaration{
		Name:       "hit",
		InvokeOnly: true,
		Fn:         func(c *counter, id string) { c.Hits++ },
		Params: []indexer.Param{
			{Name: "c", Tag: Table{Name: "counters", PartitionKey: "{id}", RowKey: "{id}"}},
			{Name: "id"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, def.Param("c").Spec.TemplateNames())

	res := e.iv.Invoke(e.ctx, def, map[string]any{"id": "42"}, nil)
	require.NoError(t, res.Err())

	raw, err := e.db.Read(e.ctx, "counters", "42", "42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":1,"last":""}`, string(raw))
}

func TestInput(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Write(e.ctx, "counters", "pages", "about", []byte(`{"hits":5}`)))

	var got counter
	var raw []byte
	var missing counter
	def, err := e.ix.Index(e.ctx, indexer.Declaration{
		Name:       "peek",
		InvokeOnly: true,
		Fn: func(c counter, b []byte, m counter) {
			got, raw, missing = c, b, m
		},
		Params: []indexer.Param{
			{Name: "c", Tag: Table{Name: "counters", PartitionKey: "pages", RowKey: "about"}},
			{Name: "b", Tag: Table{Name: "counters", PartitionKey: "pages", RowKey: "about"}},
			{Name: "m", Tag: Table{Name: "counters", PartitionKey: "pages", RowKey: "nope"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "table-input", def.Param("c").Spec.Rule)

	require.NoError(t, e.iv.Invoke(e.ctx, def, nil, nil).Err())
	assert.Equal(t, counter{Hits: 5}, got)
	assert.JSONEq(t, `{"hits":5}`, string(raw))
	assert.Equal(t, counter{}, missing)
}

func TestValidation(t *testing.T) {
	e := newEnv(t)
	_, err := e.ix.Index(e.ctx, indexer.Declaration{
		Name:       "bad",
		InvokeOnly: true,
		Fn:         func(c counter) {},
		Params:     []indexer.Param{{Name: "c", Tag: Table{Name: "counters"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires name, partition_key and row_key")

	_, err = e.ix.Index(e.ctx, indexer.Declaration{
		Name:       "badtype",
		InvokeOnly: true,
		Fn:         func(n int) {},
		Params:     []indexer.Param{{Name: "n", Tag: Table{Name: "a", PartitionKey: "b", RowKey: "c"}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported binding")
}
