package main

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newRootsCmd())
}

func newRootsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roots <file>",
		Short: "List named roots",
		Long: `The roots command lists every named root with its offset and size.

Example:
  arenactl roots data.arena
  arenactl roots data.arena --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoots(args[0])
		},
	}
	return cmd
}

func runRoots(path string) error {
	a, err := openArena(path)
	if err != nil {
		return errors.Wrap(err, "failed to open arena")
	}
	defer a.Close()
	roots := a.Roots()

	if jsonOut {
		return printJSON(func(w *jwriter.Writer) {
			arr := w.Array()
			defer arr.End()
			for _, r := range roots {
				obj := arr.Object()
				obj.Name("Name").String(r.Name)
				obj.Name("Offset").Float64(float64(r.Offset))
				obj.Name("Size").Int(r.Size)
				obj.End()
			}
		})
	}

	if len(roots) == 0 {
		printInfo("No roots\n")
		return nil
	}
	for _, r := range roots {
		printInfo("%-32s %#10x %8d\n", r.Name, int64(r.Offset), r.Size)
	}
	return nil
}
