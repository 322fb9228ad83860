package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/arena"
)

func init() {
	rootCmd.AddCommand(newTrimCmd())
}

func newTrimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trim <file>",
		Short: "Release trailing free space",
		Long: `The trim command opens an arena read-write, drops the run of free
chunks at its end and truncates the file.

Example:
  arenactl trim data.arena`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrim(args[0])
		},
	}
	return cmd
}

func runTrim(path string) error {
	a, err := arena.OpenMapped(path, false, arena.WithLogger(logger()), arena.WithVerify(true))
	if err != nil {
		return errors.Wrap(err, "failed to open arena")
	}
	before := a.Size()
	reclaimed, err := a.ShrinkToFit()
	if err != nil {
		_ = a.Close()
		return errors.Wrap(err, "failed to trim arena")
	}
	if err := a.Flush(arena.FlushAuto); err != nil {
		_ = a.Close()
		return errors.Wrap(err, "failed to flush arena")
	}
	after := a.Size()
	if err := a.Close(); err != nil {
		return err
	}
	printInfo("Trimmed %s: %s -> %s (%s released)\n",
		path, formatBytes(int64(before)), formatBytes(int64(after)), formatBytes(reclaimed))
	return nil
}
