package arena

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Stats summarizes an arena.
type Stats struct {
	Strategy   string
	Mode       string
	ChunkSize  int
	HeaderSize int
	TotalBytes int64
	DataBytes  int64
	FreeBytes  int64
	UsedBytes  int64

	Chunks     int
	FreeChunks int
	MaxChunks  int // zero when unbounded

	FreeRuns       int
	LargestFreeRun int // longest free run, in chunks
	Roots          int

	Grows   int
	Shrinks int
	Retries int
}

// Stats walks the allocator and reports usage. The counters for growth,
// shrinking and retries cover this process only.
func (a *Arena) Stats() (Stats, error) {
	if err := a.checkOpen(); err != nil {
		return Stats{}, err
	}
	cs := a.ChunkSize()
	s := Stats{
		Strategy:   a.Strategy().String(),
		Mode:       a.mode.String(),
		ChunkSize:  cs,
		HeaderSize: a.HeaderSize(),
		TotalBytes: int64(len(a.data)),
		Chunks:     a.alloc.ChunkCount(),
		FreeChunks: a.alloc.FreeChunks(),
		MaxChunks:  a.alloc.MaxChunks(),
		Roots:      a.header().DirCount(),
		Grows:      a.grows,
		Shrinks:    a.shrinks,
		Retries:    a.retries,
	}
	s.DataBytes = int64(s.Chunks) * int64(cs)
	s.FreeBytes = int64(s.FreeChunks) * int64(cs)
	s.UsedBytes = s.DataBytes - s.FreeBytes
	err := a.alloc.Visit(func(_ int64, chunks int, free bool) error {
		if free {
			s.FreeRuns++
			s.LargestFreeRun = max(s.LargestFreeRun, chunks)
		}
		return nil
	})
	return s, err
}

// WriteJSON writes s as one JSON object.
func (s Stats) WriteJSON(w *jwriter.Writer) {
	obj := w.Object()
	defer obj.End()

	obj.Name("Strategy").String(s.Strategy)
	obj.Name("Mode").String(s.Mode)
	obj.Name("ChunkSize").Int(s.ChunkSize)
	obj.Name("HeaderSize").Int(s.HeaderSize)
	obj.Name("TotalBytes").Float64(float64(s.TotalBytes))
	obj.Name("DataBytes").Float64(float64(s.DataBytes))
	obj.Name("FreeBytes").Float64(float64(s.FreeBytes))
	obj.Name("UsedBytes").Float64(float64(s.UsedBytes))
	obj.Name("Chunks").Int(s.Chunks)
	obj.Name("FreeChunks").Int(s.FreeChunks)
	obj.Name("MaxChunks").Int(s.MaxChunks)
	obj.Name("FreeRuns").Int(s.FreeRuns)
	obj.Name("LargestFreeRun").Int(s.LargestFreeRun)
	obj.Name("Roots").Int(s.Roots)
	obj.Name("Grows").Int(s.Grows)
	obj.Name("Shrinks").Int(s.Shrinks)
	obj.Name("Retries").Int(s.Retries)
}

// JSON returns s encoded as a JSON object.
func (s Stats) JSON() []byte {
	w := jwriter.NewWriter()
	s.WriteJSON(&w)
	return w.Bytes()
}

// WriteDetailedMap writes every chunk run and root as JSON.
func (a *Arena) WriteDetailedMap(w *jwriter.Writer) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	obj := w.Object()
	defer obj.End()

	runs := obj.Name("Runs").Array()
	err := a.alloc.Visit(func(off int64, chunks int, free bool) error {
		r := runs.Object()
		defer r.End()

		r.Name("Offset").Float64(float64(off))
		r.Name("Chunks").Int(chunks)
		if free {
			r.Name("Type").String("free")
		} else {
			r.Name("Type").String("used")
		}
		return nil
	})
	runs.End()
	if err != nil {
		return err
	}

	roots := obj.Name("Roots").Array()
	defer roots.End()
	for _, r := range a.Roots() {
		o := roots.Object()
		o.Name("Name").String(r.Name)
		o.Name("Offset").Float64(float64(r.Offset))
		o.Name("Size").Int(r.Size)
		o.End()
	}
	return nil
}
