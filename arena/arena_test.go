package arena_test

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/arena/alloc"
	"github.com/joshuapare/arenakit/arena/collections"
)

// TestNew_Geometry verifies sizing rules for a fresh arena.
func TestNew_Geometry(t *testing.T) {
	a := newArena(t, 4000)
	assert.Equal(t, 4032, a.Size(), "rounded up to a whole chunk")
	assert.Equal(t, 64, a.ChunkSize())
	assert.Equal(t, 128, a.HeaderSize())
	assert.Equal(t, int64(4032-128), a.FreeBytes())
	assert.Zero(t, a.Base()%8)
	assert.False(t, a.ReadOnly())
	assert.False(t, a.Mapped())

	tiny := newArena(t, 1, arena.WithStrategy(alloc.BitmapStrategy), arena.WithMaxChunks(1024))
	assert.Equal(t, tiny.HeaderSize(), tiny.Size(), "never smaller than the header")
	assert.Zero(t, tiny.FreeBytes())
}

// TestNew_InvalidOptions verifies option validation.
func TestNew_InvalidOptions(t *testing.T) {
	_, err := arena.New(4096, arena.WithGrowGranularity(3000))
	require.ErrorIs(t, err, arena.ErrInvalidOption)

	_, err = arena.New(4096, arena.WithMaxSize(-1))
	require.ErrorIs(t, err, arena.ErrInvalidOption)

	_, err = arena.New(4096, arena.WithChunkSize(24))
	require.Error(t, err)

	_, err = arena.New(1<<20, arena.WithMaxSize(1<<16))
	require.ErrorIs(t, err, arena.ErrOversize)
}

// TestRoots_MakeAndFind verifies the basic root lifecycle.
func TestRoots_MakeAndFind(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			a := newArena(t, 4096, arena.WithStrategy(s))

			p, err := arena.MakeRoot[Record](a, "config")
			require.NoError(t, err)
			assert.False(t, p.IsNil())
			assert.Equal(t, Record{}, p.Load(), "new roots are zeroed")
			require.NoError(t, p.Store(Record{ID: 7}))

			got, found, err := arena.FindRoot[Record](a, "config")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, p.Offset(), got.Offset())
			assert.Equal(t, int64(7), got.Get().ID)

			_, found, err = arena.FindRoot[Record](a, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			_, err = arena.MakeRoot[Record](a, "config")
			require.ErrorIs(t, err, arena.ErrRootExists)
			require.NoError(t, a.Validate())
		})
	}
}

// TestRoots_TypeChecks verifies that pointer-carrying types are rejected
// and that a root cannot be read back as a type of another size.
func TestRoots_TypeChecks(t *testing.T) {
	a := newArena(t, 4096)

	_, err := arena.MakeRoot[string](a, "s")
	require.ErrorIs(t, err, arena.ErrUnsupportedType)
	_, err = arena.MakeRoot[struct{ B []byte }](a, "b")
	require.ErrorIs(t, err, arena.ErrUnsupportedType)
	_, err = arena.MakeRoot[*int64](a, "p")
	require.ErrorIs(t, err, arena.ErrUnsupportedType)
	_, err = arena.MakeRoot[map[int]int](a, "m")
	require.ErrorIs(t, err, arena.ErrUnsupportedType)
	_, err = arena.MakeRoot[[4]struct{ X, Y float64 }](a, "ok")
	require.NoError(t, err)

	_, err = arena.MakeRoot[int64](a, "n")
	require.NoError(t, err)
	_, _, err = arena.FindRoot[Record](a, "n")
	require.ErrorIs(t, err, arena.ErrTypeMismatch)
}

// TestRoots_NameNormalization verifies that canonically equal names bind
// to the same root and that invalid names are rejected.
func TestRoots_NameNormalization(t *testing.T) {
	a := newArena(t, 4096)

	_, err := arena.MakeRoot[int64](a, "caf\u00e9")
	require.NoError(t, err)
	_, err = arena.MakeRoot[int64](a, "cafe\u0301")
	require.ErrorIs(t, err, arena.ErrRootExists)
	assert.True(t, a.HasRoot("cafe\u0301"))
	require.Len(t, a.Roots(), 1)

	_, err = arena.MakeRoot[int64](a, "")
	require.Error(t, err)
	_, err = arena.MakeRoot[int64](a, "\xff")
	require.Error(t, err)
}

// TestRoots_ManyNames verifies the directory grows past its initial
// capacity and survives deletes.
func TestRoots_ManyNames(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			a := newArena(t, 4096, arena.WithStrategy(s))
			faker := gofakeit.New(42)

			names := make([]string, 100)
			for i := range names {
				names[i] = fmt.Sprintf("%s-%d", faker.Word(), i)
				p, err := arena.MakeRoot[int64](a, names[i])
				require.NoError(t, err)
				require.NoError(t, p.Store(int64(i)))
			}
			require.NoError(t, a.Validate())
			require.Len(t, a.Roots(), len(names))

			for i := 0; i < len(names); i += 2 {
				require.NoError(t, a.DeleteRoot(names[i]))
			}
			require.ErrorIs(t, a.DeleteRoot(names[0]), arena.ErrRootNotFound)
			require.NoError(t, a.Validate())

			for i, n := range names {
				p, found, err := arena.FindRoot[int64](a, n)
				require.NoError(t, err)
				if i%2 == 0 {
					assert.False(t, found, n)
					continue
				}
				require.True(t, found, n)
				assert.Equal(t, int64(i), p.Load())
			}
		})
	}
}

// TestRoots_FindOrMake verifies FindOrMakeRoot returns the same object twice.
func TestRoots_FindOrMake(t *testing.T) {
	a := newArena(t, 4096)
	p1, err := arena.FindOrMakeRoot[Record](a, "r")
	require.NoError(t, err)
	p1.Get().ID = 3
	p2, err := arena.FindOrMakeRoot[Record](a, "r")
	require.NoError(t, err)
	assert.Equal(t, p1.Offset(), p2.Offset())
	assert.Equal(t, int64(3), p2.Get().ID)
}

// TestScenario_GrowTrimReload builds a record with 2000 items in a 4 KiB
// arena, trims it, and reloads it from bytes.
func TestScenario_GrowTrimReload(t *testing.T) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			a := newArena(t, 4096, arena.WithStrategy(s))
			rec := fillRecord(t, a, "record", 2000)
			require.NoError(t, collections.SetString(a, arena.Field(rec, &rec.Get().Label), "two thousand"))

			st, err := a.Stats()
			require.NoError(t, err)
			assert.Positive(t, st.Grows)
			assert.Positive(t, st.Retries)

			_, err = a.ShrinkToFit()
			require.NoError(t, err)
			require.NoError(t, a.Validate())

			img := a.SaveToBytes()
			b, err := arena.LoadFromBytes(img)
			require.NoError(t, err)
			defer b.Close()

			requireRecord(t, b, "record", 2000)
			got, _, err := arena.FindRoot[Record](b, "record")
			require.NoError(t, err)
			last, err := got.Get().Items.At(b, 1999)
			require.NoError(t, err)
			assert.Equal(t, int64(1999), last)
			assert.Equal(t, "two thousand", got.Get().Label.Get(b))
		})
	}
}

// TestPtr_RelocationTransparent verifies that offsets resolve to the same
// contents after the buffer moves.
func TestPtr_RelocationTransparent(t *testing.T) {
	a := newArena(t, 4096)
	rec := fillRecord(t, a, "r", 10)
	off := rec.Offset()
	want := append([]int64(nil), rec.Get().Items.Slice(a)...)

	base := a.Base()
	require.NoError(t, a.Grow(1<<20))
	assert.NotEqual(t, base, a.Base(), "heap growth reallocates")
	assert.Equal(t, off, rec.Offset())
	assert.Equal(t, want, rec.Get().Items.Slice(a))
	assert.Equal(t, a.Base()+uintptr(off), rec.Addr())
}

// TestPtr_Resolve verifies bounds checks on raw resolution.
func TestPtr_Resolve(t *testing.T) {
	a := newArena(t, 4096)
	_, err := a.Resolve(0, 8)
	require.ErrorIs(t, err, arena.ErrBadOffset)
	_, err = a.Resolve(arena.Offset(a.Size()-4), 8)
	require.ErrorIs(t, err, arena.ErrBadOffset)
	_, err = a.Resolve(arena.Offset(a.HeaderSize()), 8)
	require.NoError(t, err)

	var nilPtr arena.Ptr[int64]
	assert.True(t, nilPtr.IsNil())
	assert.Nil(t, nilPtr.Get())
}

// TestClose verifies calls after Close fail cleanly.
func TestClose(t *testing.T) {
	a, err := arena.New(4096)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err = arena.MakeRoot[int64](a, "x")
	require.True(t, errors.Is(err, arena.ErrClosed))
	require.ErrorIs(t, a.Grow(64), arena.ErrClosed)
	assert.Nil(t, a.SaveToBytes())
}
