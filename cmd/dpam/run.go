package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/classifier"
	"github.com/dpam-project/dpam/internal/pathresolver"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/runner"
	"github.com/dpam-project/dpam/internal/stages"
)

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	input := fs.String("input", "", "specify the AlphaFold structure file (.pdb or .cif) (required)")
	prefix := fs.String("prefix", "", "specify the protein prefix (defaults to the input file's base name)")
	workingDir := fs.String("working-dir", ".", "specify the working directory")
	var rf refFlags
	addRefFlags(fs, &rf)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam run -input <structure> [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		fs.Usage()
		os.Exit(2)
	}
	if err := rf.validate(); err != nil {
		fs.Usage()
		return err
	}
	p := *prefix
	if p == "" {
		p = prefixFromPath(*input)
	}

	ref, err := refdata.Load(rf.refDir)
	if err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}
	clf, err := classifier.Load(rf.classifierPath)
	if err != nil {
		return fmt.Errorf("load classifier: %w", err)
	}

	resolver := pathresolver.New(*workingDir)
	ctx := stages.NewContext(p, resolver, ref)
	tool := stages.NewExecRunner(ctx)

	r := runner.New(ctx, tool, runner.Options{
		HHsearch: stages.HHsearchOpts{
			ProfileDatabase: rf.profileDatabase,
			ECODDatabase:    rf.ecodDatabase,
			SkipAddSS:       rf.skipAddSS,
			CPU:             rf.cpu,
		},
		FoldseekDB:  rf.foldseekDB,
		DaliWorkers: rf.daliWorkers,
		MkdsspCmd:   rf.mkdsspCmd,
		Classifier:  clf,
	})
	return r.Run(*input)
}

// prefixFromPath derives a protein prefix from an input file path,
// stripping the directory and the last extension.
func prefixFromPath(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
