package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/invalidation"
)

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.DefaultConfig(), cache.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	return c
}

func seed(t *testing.T, o *MemoryOrigin, table string, recs map[string]Record) {
	t.Helper()
	for id, rec := range recs {
		_, err := o.Write(context.Background(), Write{Table: table, Op: invalidation.Create, ID: id, Payload: rec})
		require.NoError(t, err)
	}
}

func TestReadsAreCached(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	seed(t, origin, "departments", map[string]Record{
		"1": {"name": "Assembly"},
		"2": {"name": "Paint"},
	})
	tbl := NewTable("departments", newCache(t), origin)

	for range 3 {
		rows, err := tbl.GetAll(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	}
	assert.Equal(t, int64(1), origin.Reads())

	rec, err := tbl.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Paint", rec.(Record)["name"])

	_, err = tbl.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), origin.Reads())
}

func TestEquivalentQueriesShareAnEntry(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	seed(t, origin, "jobs", map[string]Record{"1": {"status": "pending", "line": "a"}})
	tbl := NewTable("jobs", newCache(t), origin)

	_, err := tbl.Filter(ctx, map[string]any{"status": "pending", "line": "a"})
	require.NoError(t, err)
	_, err = tbl.Filter(ctx, map[string]any{"line": "a", "status": "pending"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), origin.Reads())
}

func TestNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	c := newCache(t)
	tbl := NewTable("machines", c, origin)

	_, err := tbl.GetByID(ctx, "404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, c.Len())

	_, err = tbl.GetByID(ctx, "")
	assert.ErrorIs(t, err, ErrIDRequired)
}

func TestWriteThroughInvalidatesTable(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	seed(t, origin, "departments", map[string]Record{"7": {"name": "Old"}})
	seed(t, origin, "machines", map[string]Record{"1": {"name": "Press"}})
	c := newCache(t)
	departments := NewTable("departments", c, origin)
	machines := NewTable("machines", c, origin)

	_, err := departments.GetAll(ctx, nil)
	require.NoError(t, err)
	_, err = departments.GetByID(ctx, "7")
	require.NoError(t, err)
	_, err = machines.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	require.NoError(t, departments.Update(ctx, "7", Record{"name": "New"}))

	assert.Equal(t, 1, c.Len(), "only the machines read survives")

	rec, err := departments.GetByID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "New", rec.(Record)["name"])
}

func TestCreateAssignsID(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	tbl := NewTable("jobs", newCache(t), origin)

	id, err := tbl.Create(ctx, "", Record{"status": "pending"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rows, err := tbl.Search(ctx, "pend")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows.([]Record)[0]["id"])
}

func TestDeleteMissingRecordFails(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable("jobs", newCache(t), NewMemoryOrigin())

	assert.ErrorIs(t, tbl.Delete(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, tbl.Delete(ctx, ""), ErrIDRequired)
	assert.ErrorIs(t, tbl.Update(ctx, "", nil), ErrIDRequired)
}

func TestWriteBackInvalidatesAfterApply(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	seed(t, origin, "jobs", map[string]Record{"1": {"status": "pending"}})
	c := newCache(t)

	policy := NewWriteBackPolicy(origin, 16, zerolog.Nop())
	tbl := NewTable("jobs", c, origin, WithWritePolicy(policy))

	_, err := tbl.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	id, err := tbl.Create(ctx, "2", Record{"status": "done"})
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	tbl.Close()

	assert.Equal(t, 0, c.Len())
	rows, err := tbl.GetAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestWriteBackRequiresID(t *testing.T) {
	policy := NewWriteBackPolicy(NewMemoryOrigin(), 1, zerolog.Nop())
	defer policy.Close()

	_, err := policy.Submit(context.Background(), Write{Table: "jobs", Op: invalidation.Create}, func(string) {})
	assert.ErrorIs(t, err, ErrIDRequired)
}

type blockingOrigin struct {
	*MemoryOrigin
	release chan struct{}
}

func (b blockingOrigin) Write(ctx context.Context, w Write) (string, error) {
	<-b.release
	return b.MemoryOrigin.Write(ctx, w)
}

func TestWriteBackQueueFullAndClose(t *testing.T) {
	origin := blockingOrigin{MemoryOrigin: NewMemoryOrigin(), release: make(chan struct{})}
	policy := NewWriteBackPolicy(origin, 1, zerolog.Nop())
	ctx := context.Background()

	var mu sync.Mutex
	var applied []string
	done := func(id string) {
		mu.Lock()
		applied = append(applied, id)
		mu.Unlock()
	}

	// The worker takes the first write and blocks; the second fills the buffer.
	_, err := policy.Submit(ctx, Write{Table: "t", Op: invalidation.Create, ID: "a"}, done)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(policy.ch) == 0 }, time.Second, time.Millisecond)
	_, err = policy.Submit(ctx, Write{Table: "t", Op: invalidation.Create, ID: "b"}, done)
	require.NoError(t, err)

	_, err = policy.Submit(ctx, Write{Table: "t", Op: invalidation.Create, ID: "c"}, done)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(origin.release)
	policy.Close()
	policy.Close()

	assert.Equal(t, []string{"a", "b"}, applied)

	_, err = policy.Submit(ctx, Write{Table: "t", Op: invalidation.Create, ID: "d"}, done)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryOriginFilterAndSearch(t *testing.T) {
	ctx := context.Background()
	origin := NewMemoryOrigin()
	seed(t, origin, "jobs", map[string]Record{
		"1": {"status": "pending", "title": "Cut steel"},
		"2": {"status": "done", "title": "Paint frame"},
		"3": {"status": "pending", "title": "Paint door"},
	})

	rows, err := origin.Read(ctx, Read{Table: "jobs", Op: invalidation.OpFilter, Query: map[string]any{"status": "pending"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = origin.Read(ctx, Read{Table: "jobs", Op: invalidation.OpSearch, Query: "paint"})
	require.NoError(t, err)
	got := rows.([]Record)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0]["id"])
	assert.Equal(t, "3", got[1]["id"])

	_, err = origin.Read(ctx, Read{Table: "jobs", Op: "explode"})
	assert.Error(t, err)
}
