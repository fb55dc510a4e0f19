package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/mergegraph"
	"github.com/dpam-project/dpam/internal/stages"
)

func runMergeGraph(args []string) error {
	fs := flag.NewFlagSet("mergegraph", flag.ExitOnError)
	comparisons := fs.String("comparisons", "", "specify a stage-21 .comparisons file to render (required)")
	out := fs.String("out", "", "specify the DOT output path (required)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam mergegraph -comparisons <prefix.comparisons> -out <file.dot>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *comparisons == "" || *out == "" {
		fs.Usage()
		return fmt.Errorf("-comparisons and -out are required")
	}
	if _, err := os.Stat(*comparisons); err != nil {
		return fmt.Errorf("mergegraph: %w", err)
	}

	judged, err := stages.ReadConnectivity(*comparisons)
	if err != nil {
		return err
	}
	if err := mergegraph.Write(*out, judged); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %d edges to %s\n", len(judged), *out)
	return nil
}
