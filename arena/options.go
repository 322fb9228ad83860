package arena

import (
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/arenakit/arena/alloc"
	"github.com/joshuapare/arenakit/internal/format"
)

const (
	// DefaultGrowGranularity is the unit growth is rounded up to.
	DefaultGrowGranularity = 1 << 12
)

// Options configures creation and loading. Geometry fields (Strategy,
// ChunkSize, MaxChunks) only apply when a new arena is formatted; an existing
// image keeps the geometry in its header.
type Options struct {
	Strategy        alloc.Strategy
	ChunkSize       int
	MaxChunks       int   // bitmap capacity in chunks
	GrowGranularity int   // power of two
	MaxSize         int64 // total size ceiling for growth; zero means unbounded
	Logger          *slog.Logger
	PreFault        bool // fault in mapped pages at open
	Verify          bool // run Validate at open
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Strategy:        alloc.FreeListStrategy,
		ChunkSize:       format.DefaultChunkSize,
		MaxChunks:       format.DefaultMaxChunks,
		GrowGranularity: DefaultGrowGranularity,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func WithStrategy(s alloc.Strategy) Option { return func(o *Options) { o.Strategy = s } }

func WithChunkSize(n int) Option { return func(o *Options) { o.ChunkSize = n } }

// WithMaxChunks sets the bitmap capacity. It is rounded up to a multiple of 64.
func WithMaxChunks(n int) Option {
	return func(o *Options) { o.MaxChunks = format.AlignUp(n, format.WordBits) }
}

func WithGrowGranularity(n int) Option { return func(o *Options) { o.GrowGranularity = n } }

// WithMaxSize caps the total buffer size growth may reach, for both
// strategies. Growth past it fails with ErrOversize.
func WithMaxSize(n int64) Option { return func(o *Options) { o.MaxSize = n } }

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithPreFault(on bool) Option { return func(o *Options) { o.PreFault = on } }

func WithVerify(on bool) Option { return func(o *Options) { o.Verify = on } }

// WithOptions replaces the whole option set, for callers that build Options
// from configuration.
func WithOptions(opts Options) Option {
	return func(o *Options) {
		logger := o.Logger
		*o = opts
		if o.Logger == nil {
			o.Logger = logger
		}
	}
}

func buildOptions(opts []Option) (Options, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if !format.IsPow2(o.GrowGranularity) {
		return o, errors.Wrapf(ErrInvalidOption, "grow granularity %d is not a power of two", o.GrowGranularity)
	}
	if o.MaxSize < 0 {
		return o, errors.Wrapf(ErrInvalidOption, "max size %d", o.MaxSize)
	}
	return o, nil
}

// geometry returns the header geometry for a new arena.
func (o Options) geometry() format.Geometry {
	g := format.Geometry{Strategy: uint32(o.Strategy), ChunkSize: o.ChunkSize}
	if o.Strategy == alloc.BitmapStrategy {
		g.MaxChunks = o.MaxChunks
	}
	return g
}
