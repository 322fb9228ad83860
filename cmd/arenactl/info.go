package main

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Report arena geometry and usage",
		Long: `The info command opens an arena read-only and prints its geometry,
space usage and root count.

Example:
  arenactl info data.arena
  arenactl info data.arena --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
	return cmd
}

func runInfo(path string) error {
	printVerbose("Opening arena: %s\n", path)
	a, err := openArena(path)
	if err != nil {
		return errors.Wrap(err, "failed to open arena")
	}
	defer a.Close()

	st, err := a.Stats()
	if err != nil {
		return errors.Wrap(err, "failed to read stats")
	}

	if jsonOut {
		return printJSON(func(w *jwriter.Writer) { st.WriteJSON(w) })
	}

	printInfo("\nArena Information:\n")
	printInfo("  File: %s\n", path)
	printInfo("  Strategy: %s\n", st.Strategy)
	printInfo("  Chunk size: %d bytes\n", st.ChunkSize)
	printInfo("  Header: %d bytes\n", st.HeaderSize)
	printInfo("  Total: %s\n", formatBytes(st.TotalBytes))
	printInfo("  Used: %s\n", formatBytes(st.UsedBytes))
	printInfo("  Free: %s in %d runs (largest %d chunks)\n", formatBytes(st.FreeBytes), st.FreeRuns, st.LargestFreeRun)
	printInfo("  Chunks: %d (%d free)\n", st.Chunks, st.FreeChunks)
	if st.MaxChunks > 0 {
		printInfo("  Capacity: %d chunks\n", st.MaxChunks)
	}
	printInfo("  Roots: %d\n", st.Roots)
	return nil
}
