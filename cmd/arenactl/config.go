package main

import (
	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/arena/alloc"
)

const envVarPrefix = "ARENA"

// Config holds the geometry used for new arenas.
type Config struct {
	Size            int    `envconfig:"SIZE"             default:"65536"`
	Strategy        string `envconfig:"STRATEGY"         default:"freelist"`
	ChunkSize       int    `envconfig:"CHUNK_SIZE"       default:"64"`
	MaxChunks       int    `envconfig:"MAX_CHUNKS"       default:"16384"`
	GrowGranularity int    `envconfig:"GROW_GRANULARITY" default:"4096"`
	// MaxUnpack caps the image size a packed file may expand to.
	MaxUnpack       int64  `envconfig:"MAX_UNPACK"       default:"17179869184"`
}

// LoadConfig reads the environment.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, errors.Wrap(err, "parsing environment variables")
	}
	return &c, nil
}

// addConfigFlags registers the flags that override the environment.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.Int("size", 0, "Initial size in bytes (env ARENA_SIZE)")
	fs.String("strategy", "", "Allocator strategy: freelist or bitmap (env ARENA_STRATEGY)")
	fs.Int("chunk-size", 0, "Chunk size in bytes, a power of two (env ARENA_CHUNK_SIZE)")
	fs.Int("max-chunks", 0, "Bitmap capacity in chunks (env ARENA_MAX_CHUNKS)")
	fs.Int("grow-granularity", 0, "Growth rounding in bytes (env ARENA_GROW_GRANULARITY)")
}

// applyFlags copies explicitly set flags over c.
func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	ints := map[string]*int{
		"size":             &c.Size,
		"chunk-size":       &c.ChunkSize,
		"max-chunks":       &c.MaxChunks,
		"grow-granularity": &c.GrowGranularity,
	}
	for name, dst := range ints {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if fs.Changed("strategy") {
		v, err := fs.GetString("strategy")
		if err != nil {
			return err
		}
		c.Strategy = v
	}
	return nil
}

// Options converts c into arena options.
func (c *Config) Options() ([]arena.Option, error) {
	s, err := alloc.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, err
	}
	return []arena.Option{
		arena.WithStrategy(s),
		arena.WithChunkSize(c.ChunkSize),
		arena.WithMaxChunks(c.MaxChunks),
		arena.WithGrowGranularity(c.GrowGranularity),
		arena.WithLogger(logger()),
	}, nil
}
