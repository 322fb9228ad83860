package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/arena"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Create an empty arena file",
		Long: `The create command writes a new, empty arena file. Geometry comes
from the ARENA_* environment variables, overridden by flags.

Example:
  arenactl create data.arena
  arenactl create data.arena --strategy bitmap --max-chunks 65536
  ARENA_CHUNK_SIZE=256 arenactl create data.arena --size 1048576`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if err := cfg.applyFlags(cmd.Flags()); err != nil {
				return err
			}
			return runCreate(args[0], cfg)
		},
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func runCreate(path string, cfg *Config) error {
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	printVerbose("Creating %s (%s, %d byte chunks)\n", path, cfg.Strategy, cfg.ChunkSize)

	a, err := arena.CreateMapped(path, cfg.Size, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create arena")
	}
	if err := a.Flush(arena.FlushAuto); err != nil {
		_ = a.Close()
		return errors.Wrap(err, "failed to flush arena")
	}
	size := a.Size()
	if err := a.Close(); err != nil {
		return err
	}
	printInfo("Created %s (%s)\n", path, formatBytes(int64(size)))
	return nil
}
