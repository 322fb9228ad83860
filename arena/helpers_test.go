package arena_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/arena/alloc"
	"github.com/joshuapare/arenakit/arena/collections"
)

// Record is the root type used across the tests.
type Record struct {
	ID    int64
	Items collections.Vector[int64]
	Label collections.String
}

var strategies = []alloc.Strategy{alloc.FreeListStrategy, alloc.BitmapStrategy}

func newArena(t testing.TB, size int, opts ...arena.Option) *arena.Arena {
	t.Helper()
	a, err := arena.New(size, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// fillRecord creates root name holding a record with n items 0..n-1.
func fillRecord(t testing.TB, a *arena.Arena, name string, n int) arena.Ptr[Record] {
	t.Helper()
	rec, err := arena.MakeRoot[Record](a, name)
	require.NoError(t, err)
	rec.Get().ID = int64(n)
	items := arena.Field(rec, &rec.Get().Items)
	for i := range n {
		require.NoError(t, collections.Append(a, items, int64(i)))
	}
	return rec
}

// requireRecord checks a record written by fillRecord.
func requireRecord(t testing.TB, a *arena.Arena, name string, n int) {
	t.Helper()
	rec, found, err := arena.FindRoot[Record](a, name)
	require.NoError(t, err)
	require.True(t, found, "root %q", name)
	r := rec.Get()
	require.Equal(t, int64(n), r.ID)
	require.Equal(t, n, r.Items.Len())
	for i, v := range r.Items.Slice(a) {
		require.Equal(t, int64(i), v)
	}
}
