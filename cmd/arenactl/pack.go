package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/arena"
	"github.com/joshuapare/arenakit/internal/archive"
	"github.com/joshuapare/arenakit/internal/writer"
)

var packCodec string

func init() {
	cmd := newPackCmd()
	cmd.Flags().StringVar(&packCodec, "codec", "zstd", "Compression codec (zstd, lz4, none)")
	rootCmd.AddCommand(cmd)
	rootCmd.AddCommand(newUnpackCmd())
}

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack <arena> <output>",
		Short: "Write a compressed copy of an arena",
		Long: `The pack command validates an arena and writes a compressed archive
of it. Other commands read archives directly.

Example:
  arenactl pack data.arena data.arpk
  arenactl pack data.arena data.arpk --codec lz4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(args[0], args[1])
		},
	}
	return cmd
}

func newUnpackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack <archive> <arena>",
		Short: "Restore an arena file from an archive",
		Long: `The unpack command decompresses an archive written by pack into a
plain arena file that can be mapped.

Example:
  arenactl unpack data.arpk data.arena`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnpack(args[0], args[1])
		},
	}
	return cmd
}

func runPack(src, dst string) error {
	codec, err := archive.ParseCodec(packCodec)
	if err != nil {
		return err
	}
	a, err := openArena(src)
	if err != nil {
		return errors.Wrap(err, "failed to open arena")
	}
	defer a.Close()
	if err := a.Validate(); err != nil {
		return errors.Wrap(err, "refusing to pack invalid arena")
	}

	packed, err := archive.Pack(a.Bytes(), codec)
	if err != nil {
		return err
	}
	w := &writer.FileWriter{Path: dst}
	if err := w.WriteArena(packed); err != nil {
		return errors.Wrapf(err, "failed to write %s", dst)
	}
	printInfo("Packed %s: %s -> %s\n", src, formatBytes(int64(a.Size())), formatBytes(int64(len(packed))))
	return nil
}

func runUnpack(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	img, err := unpack(data)
	if err != nil {
		return errors.Wrapf(err, "failed to unpack %s", src)
	}
	a, err := arena.LoadFromBytes(img, arena.WithLogger(logger()), arena.WithVerify(true))
	if err != nil {
		return errors.Wrap(err, "archive does not hold a valid arena")
	}
	defer a.Close()
	if err := a.SaveFile(dst); err != nil {
		return err
	}
	printInfo("Unpacked %s: %s\n", dst, formatBytes(int64(len(img))))
	return nil
}
