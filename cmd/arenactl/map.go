package main

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/arena"
)

// chunksPerLine is the width of the text chunk map.
const chunksPerLine = 64

func init() {
	rootCmd.AddCommand(newMapCmd())
}

func newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map <file>",
		Short: "Print the chunk map",
		Long: `The map command prints one character per chunk: '*' for a used chunk
and '_' for a free one, 64 chunks per line. With --json it prints every
run and root instead.

Example:
  arenactl map data.arena
  arenactl map data.arena --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(args[0])
		},
	}
	return cmd
}

func runMap(path string) error {
	a, err := openArena(path)
	if err != nil {
		return errors.Wrap(err, "failed to open arena")
	}
	defer a.Close()

	if jsonOut {
		var mapErr error
		err := printJSON(func(w *jwriter.Writer) { mapErr = a.WriteDetailedMap(w) })
		return errors.CombineErrors(mapErr, err)
	}
	if quiet {
		return nil
	}
	return writeChunkMap(os.Stdout, a)
}

// writeChunkMap renders the allocator's runs as text.
func writeChunkMap(w io.Writer, a *arena.Arena) error {
	var line strings.Builder
	flush := func() error {
		if line.Len() == 0 {
			return nil
		}
		line.WriteByte('\n')
		_, err := io.WriteString(w, line.String())
		line.Reset()
		return err
	}
	err := a.Allocator().Visit(func(_ int64, chunks int, free bool) error {
		c := byte('*')
		if free {
			c = '_'
		}
		for range chunks {
			line.WriteByte(c)
			if line.Len() == chunksPerLine {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return flush()
}
