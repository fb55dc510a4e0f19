package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/migrate"
)

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	workingDir := fs.String("working-dir", ".", "specify the working directory to migrate")
	dryRun := fs.Bool("dry-run", false, "specify to list the moves without performing them")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam migrate -working-dir <dir> [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	counts, err := migrate.Run(*workingDir, *dryRun, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "moved=%d copied=%d renamed=%d skipped=%d errors=%d\n",
		counts.Moved, counts.Copied, counts.Renamed, counts.Skipped, counts.Errors)
	return nil
}
