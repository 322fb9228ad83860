package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/internal/archive"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "arenactl",
	Short: "Create, inspect and maintain offset-addressed arena files",
	Long: `arenactl works with arena files: relocatable buffers that hold a chunk
allocator, a directory of named roots and the objects reachable from them.
Files are opened read-only through a memory mapping unless a command needs
to modify them.

Defaults for new arenas come from the environment (ARENA_CHUNK_SIZE,
ARENA_STRATEGY, ARENA_MAX_CHUNKS, ARENA_GROW_GRANULARITY, ARENA_SIZE) and
can be overridden with flags.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logger returns the structured logger handed to the arena package.
func logger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openArena opens path read-only. Packed archives are unpacked into a heap
// arena; plain files are mapped.
func openArena(path string) (*arena.Arena, error) {
	opts := []arena.Option{arena.WithLogger(logger())}
	data, err := readHead(path, 4)
	if err != nil {
		return nil, err
	}
	if !archive.IsPacked(data) {
		return arena.OpenMapped(path, true, opts...)
	}
	packed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := unpack(packed)
	if err != nil {
		return nil, err
	}
	printVerbose("Unpacked %s: %d -> %d bytes\n", path, len(packed), len(img))
	return arena.LoadFromBytes(img, opts...)
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return buf[:read], nil
}

// unpack expands a packed image, bounded by ARENA_MAX_UNPACK.
func unpack(packed []byte) ([]byte, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return archive.UnpackLimit(packed, cfg.MaxUnpack)
}

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON runs fn against a fresh writer and prints the result.
func printJSON(fn func(w *jwriter.Writer)) error {
	w := jwriter.NewWriter()
	fn(&w)
	if err := w.Error(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(os.Stdout, string(w.Bytes()))
	return err
}

// formatBytes renders a size the way info and stats print it.
func formatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d bytes", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
