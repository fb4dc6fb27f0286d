package memory_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/core"
)

func TestConnection_Lifecycle(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	require.NoError(t, c.Bulk(ctx, core.OpIndex, "product", core.Payload{"_id": "p1", "title": "Lamp"}))
	assert.Equal(t, 1, c.Staged())

	// staged writes are invisible
	_, err := c.Get(ctx, "product", "p1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, c.Commit(ctx))
	assert.Equal(t, 0, c.Staged())

	hit, err := c.Get(ctx, "product", "p1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Lamp"}`, string(hit.Source))

	// committed but not refreshed
	res, err := c.Search(ctx, []string{"product"}, core.Query{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)

	require.NoError(t, c.Refresh(ctx))
	res, err = c.Search(ctx, []string{"product"}, core.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Commits)
	assert.Equal(t, 1, stats.Refreshes)
}

func TestConnection_Operations(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	require.NoError(t, c.Bulk(ctx, core.OpCreate, "order", core.Payload{"_id": "o1", "total": 5, "state": "new"}))
	require.NoError(t, c.Bulk(ctx, core.OpUpdate, "order", core.Payload{"_id": "o1", "state": "paid"}))
	require.NoError(t, c.Bulk(ctx, core.OpCreate, "order", core.Payload{"_id": "o1"}))
	require.NoError(t, c.Bulk(ctx, core.OpUpdate, "order", core.Payload{"_id": "missing"}))

	err := c.Flush(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.ErrorIs(t, err, core.ErrNotFound)

	hit, err := c.Get(ctx, "order", "o1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":5,"state":"paid"}`, string(hit.Source))

	require.NoError(t, c.Bulk(ctx, core.OpDelete, "order", core.Payload{"_id": "o1"}))
	require.NoError(t, c.Commit(ctx))
	_, err = c.Get(ctx, "order", "o1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestConnection_BulkValidation(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	assert.Error(t, c.Bulk(ctx, core.Operation("upsert"), "order", nil))
	assert.Error(t, c.Bulk(ctx, core.OpIndex, "", nil))
	assert.Error(t, c.Bulk(ctx, core.OpDelete, "order", core.Payload{}))

	require.NoError(t, c.Bulk(ctx, core.OpIndex, "order", core.Payload{"total": 1}))
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Refresh(ctx))

	res, err := c.Search(ctx, []string{"order"}, core.Query{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.NotEmpty(t, res.Hits[0].ID, "id is generated")
}

func TestConnection_Search(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	for i, color := range []string{"red", "blue", "red", "green"} {
		require.NoError(t, c.Bulk(ctx, core.OpIndex, "product", core.Payload{
			"_id":   string(rune('a' + i)),
			"color": color,
			"rank":  i,
			"name":  "Desk Lamp " + color,
		}))
	}
	require.NoError(t, c.Bulk(ctx, core.OpIndex, "category", core.Payload{"_id": "c1", "color": "red"}))
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Refresh(ctx))

	res, err := c.Search(ctx, []string{"product"}, core.Query{Body: core.TermsQuery(map[string]any{"color": "red"})})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, "a", res.Hits[0].ID)
	assert.Equal(t, "c", res.Hits[1].ID)

	res, err = c.Search(ctx, []string{"product", "category"}, core.Query{Body: map[string]any{"term": map[string]any{"color": "red"}}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)

	res, err = c.Search(ctx, []string{"product"}, core.Query{Body: map[string]any{"term": map[string]any{"rank": 3}}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "d", res.Hits[0].ID)

	res, err = c.Search(ctx, []string{"product"}, core.Query{Body: map[string]any{"match": map[string]any{"name": "lamp"}}, From: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)
	assert.Len(t, res.Hits, 2)
	assert.Equal(t, "b", res.Hits[0].ID)

	_, err = c.Search(ctx, []string{"product"}, core.Query{Body: map[string]any{"fuzzy": map[string]any{"name": "x"}}})
	assert.Error(t, err)
}

func TestConnection_Search_NegativePage(t *testing.T) {
	ctx := context.Background()
	c := memory.New()
	require.NoError(t, c.Bulk(ctx, core.OpIndex, "product", core.Payload{"_id": "p1", "title": "Lamp"}))
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Refresh(ctx))

	res, err := c.Search(ctx, []string{"product"}, core.Query{From: -1, Size: -5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "p1", res.Hits[0].ID)
}

func TestConnection_EnsureIndex(t *testing.T) {
	c := memory.New()
	mapping := map[string]any{"properties": map[string]any{"title": map[string]any{"type": "text"}}}

	require.NoError(t, c.EnsureIndex(context.Background(), "product", mapping))
	got, ok := c.Index("product")
	require.True(t, ok)
	assert.Equal(t, mapping, got)
	assert.NoError(t, c.Ping(context.Background()))

	state := c.State().(memory.ConnectionState)
	assert.Equal(t, 0, state.Pending)
	assert.Equal(t, "memory", c.ComponentType())
}

func TestConnection_Hits_AreJSON(t *testing.T) {
	ctx := context.Background()
	c := memory.New()
	require.NoError(t, c.Bulk(ctx, core.OpIndex, "product", core.Payload{"_id": "big", "stock": json.Number("9007199254740993")}))
	require.NoError(t, c.Commit(ctx))

	hit, err := c.Get(ctx, "product", "big")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stock":9007199254740993}`, string(hit.Source))
}
