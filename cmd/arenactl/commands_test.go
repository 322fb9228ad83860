package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/arena/alloc"
	"github.com/joshuapare/arenakit/internal/archive"
)

// makeArenaFile creates an arena at a temp path holding n int64 roots.
func makeArenaFile(t *testing.T, strategy string, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.arena")
	cfg := &Config{Size: 8192, Strategy: strategy, ChunkSize: 64, MaxChunks: 1024, GrowGranularity: 4096}
	_, err := captureOutput(t, func() error { return runCreate(path, cfg) })
	require.NoError(t, err)

	a, err := arena.OpenMapped(path, false)
	require.NoError(t, err)
	for i := range n {
		p, err := arena.MakeRoot[int64](a, fmt.Sprintf("root-%03d", i))
		require.NoError(t, err)
		require.NoError(t, p.Store(int64(i)))
	}
	require.NoError(t, a.Flush(arena.FlushAuto))
	require.NoError(t, a.Close())
	return path
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("ARENA_STRATEGY", "bitmap")
	t.Setenv("ARENA_CHUNK_SIZE", "128")
	t.Setenv("ARENA_MAX_CHUNKS", "2048")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "bitmap", cfg.Strategy)
	assert.Equal(t, 128, cfg.ChunkSize)
	assert.Equal(t, 2048, cfg.MaxChunks)
	assert.Equal(t, 65536, cfg.Size)
	assert.Equal(t, 4096, cfg.GrowGranularity)

	cmd := newCreateCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--strategy", "freelist", "--size", "4096"}))
	require.NoError(t, cfg.applyFlags(cmd.Flags()))
	assert.Equal(t, "freelist", cfg.Strategy)
	assert.Equal(t, 4096, cfg.Size)
	assert.Equal(t, 128, cfg.ChunkSize, "unset flags keep the environment value")

	cfg.Strategy = "nope"
	_, err = cfg.Options()
	require.ErrorIs(t, err, alloc.ErrUnknownStrategy)
}

func TestCreateAndInfo(t *testing.T) {
	for _, s := range []string{"freelist", "bitmap"} {
		t.Run(s, func(t *testing.T) {
			path := makeArenaFile(t, s, 3)

			out, err := captureOutput(t, func() error { return runInfo(path) })
			require.NoError(t, err)
			assertContains(t, out, []string{"Strategy: " + s, "Roots: 3", "Chunk size: 64 bytes"})

			withJSON(t)
			out, err = captureOutput(t, func() error { return runInfo(path) })
			require.NoError(t, err)
			assertJSON(t, out)
			assertContains(t, out, []string{`"Strategy":"` + s + `"`, `"Roots":3`})
		})
	}
}

func TestRootsCommand(t *testing.T) {
	path := makeArenaFile(t, "freelist", 2)

	out, err := captureOutput(t, func() error { return runRoots(path) })
	require.NoError(t, err)
	assertContains(t, out, []string{"root-000", "root-001"})

	withJSON(t)
	out, err = captureOutput(t, func() error { return runRoots(path) })
	require.NoError(t, err)
	assertJSON(t, out)
	assertContains(t, out, []string{`"Name":"root-001"`, `"Size":8`})
}

func TestMapCommand(t *testing.T) {
	path := makeArenaFile(t, "bitmap", 1)

	out, err := captureOutput(t, func() error { return runMap(path) })
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	for _, l := range lines[:len(lines)-1] {
		assert.Len(t, l, chunksPerLine)
	}
	assert.True(t, strings.HasPrefix(lines[0], "*"), "directory and root come first")
	assert.Contains(t, out, "_")

	withJSON(t)
	out, err = captureOutput(t, func() error { return runMap(path) })
	require.NoError(t, err)
	assertJSON(t, out)
	assertContains(t, out, []string{`"Runs"`, `"Type":"used"`, `"Type":"free"`, `"Name":"root-000"`})
}

func TestValidateCommand(t *testing.T) {
	good1 := makeArenaFile(t, "freelist", 2)
	good2 := makeArenaFile(t, "bitmap", 2)
	bad := filepath.Join(t.TempDir(), "bad.arena")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not an arena, just some bytes"), 0o644))

	out, err := captureOutput(t, func() error { return runValidate([]string{good1, good2}) })
	require.NoError(t, err)
	assertContains(t, out, []string{"✓ " + good1, "✓ " + good2})

	withJSON(t)
	out, err = captureOutput(t, func() error { return runValidate([]string{good1, bad}) })
	require.Error(t, err)
	assertJSON(t, out)
	assertContains(t, out, []string{`"Valid":true`, `"Valid":false`})
}

func TestTrimCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.arena")
	cfg := &Config{Size: 1 << 20, Strategy: "freelist", ChunkSize: 64, MaxChunks: 1024, GrowGranularity: 4096}
	_, err := captureOutput(t, func() error { return runCreate(path, cfg) })
	require.NoError(t, err)

	a, err := arena.OpenMapped(path, false)
	require.NoError(t, err)
	_, err = arena.MakeRoot[int64](a, "keep")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	out, err := captureOutput(t, func() error { return runTrim(path) })
	require.NoError(t, err)
	assertContains(t, out, []string{"Trimmed", "released"})

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, st.Size(), int64(1<<20))

	b, err := arena.OpenMapped(path, true)
	require.NoError(t, err)
	defer b.Close()
	assert.True(t, b.HasRoot("keep"))
}

func TestPackUnpack(t *testing.T) {
	for _, codec := range []string{"zstd", "lz4", "none"} {
		t.Run(codec, func(t *testing.T) {
			src := makeArenaFile(t, "freelist", 20)
			dir := t.TempDir()
			packed := filepath.Join(dir, "test.arpk")
			restored := filepath.Join(dir, "restored.arena")

			packCodec = codec
			t.Cleanup(func() { packCodec = "zstd" })
			_, err := captureOutput(t, func() error { return runPack(src, packed) })
			require.NoError(t, err)

			// Commands read archives directly.
			out, err := captureOutput(t, func() error { return runRoots(packed) })
			require.NoError(t, err)
			assert.Contains(t, out, "root-019")

			_, err = captureOutput(t, func() error { return runUnpack(packed, restored) })
			require.NoError(t, err)

			want, err := os.ReadFile(src)
			require.NoError(t, err)
			got, err := os.ReadFile(restored)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestUnpackHonoursCeiling(t *testing.T) {
	src := makeArenaFile(t, "freelist", 4)
	packed := filepath.Join(t.TempDir(), "test.arpk")
	packCodec = "lz4"
	t.Cleanup(func() { packCodec = "zstd" })
	_, err := captureOutput(t, func() error { return runPack(src, packed) })
	require.NoError(t, err)

	t.Setenv("ARENA_MAX_UNPACK", "1024")
	_, err = captureOutput(t, func() error { return runUnpack(packed, filepath.Join(t.TempDir(), "out.arena")) })
	require.ErrorIs(t, err, archive.ErrBadFrame)
	_, err = captureOutput(t, func() error { return runRoots(packed) })
	require.ErrorIs(t, err, archive.ErrBadFrame)
}

func TestReadHead(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("AR"), 0o644))

	head, err := readHead(short, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("AR"), head)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	head, err = readHead(empty, 4)
	require.NoError(t, err)
	assert.Empty(t, head)

	_, err = readHead(dir, 4)
	require.Error(t, err)
}
