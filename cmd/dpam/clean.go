package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/cleanup"
)

func runClean(args []string) error {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	root := fs.String("working-dir", ".", "specify the working directory to clean")
	dryRun := fs.Bool("dry-run", false, "specify to list what would be removed without removing it")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam clean -working-dir <dir> [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	report, err := cleanup.Run(*root, *dryRun, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "removed=%d preserved=%d unmatched=%d bytes_freed=%d\n",
		len(report.Removed), len(report.Preserved), len(report.Unmatched), report.BytesFreed)
	if len(report.Unmatched) > 0 {
		fmt.Fprintln(os.Stdout, "unmatched files (neither preserve nor intermediate pattern):")
		for _, u := range report.Unmatched {
			fmt.Fprintf(os.Stdout, "  %s\n", u)
		}
	}
	return nil
}
