package main

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var validateWorkers int

func init() {
	cmd := newValidateCmd()
	cmd.Flags().IntVar(&validateWorkers, "workers", 4, "Files checked in parallel")
	rootCmd.AddCommand(cmd)
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check arena files for structural damage",
		Long: `The validate command checks the header, the allocator structure and
the root directory of each file. Files are checked in parallel.

Example:
  arenactl validate data.arena
  arenactl validate *.arena --workers 8 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
	return cmd
}

type validateResult struct {
	path string
	err  error
}

func validateFile(path string) error {
	a, err := openArena(path)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Validate()
}

func runValidate(paths []string) error {
	p := pool.NewWithResults[validateResult]().WithMaxGoroutines(max(1, validateWorkers))
	for _, path := range paths {
		p.Go(func() validateResult {
			printVerbose("Validating %s\n", path)
			return validateResult{path: path, err: validateFile(path)}
		})
	}
	results := p.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}

	if jsonOut {
		if err := printJSON(func(w *jwriter.Writer) {
			arr := w.Array()
			defer arr.End()
			for _, r := range results {
				obj := arr.Object()
				obj.Name("File").String(r.path)
				obj.Name("Valid").Bool(r.err == nil)
				if r.err != nil {
					obj.Name("Error").String(r.err.Error())
				}
				obj.End()
			}
		}); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.err != nil {
				printInfo("✗ %s: %v\n", r.path, r.err)
			} else {
				printInfo("✓ %s\n", r.path)
			}
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d files invalid", failed, len(paths))
	}
	return nil
}
