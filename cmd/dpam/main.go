// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// dpam drives the domain-parsing-and-classification pipeline described
// in spec.md: it can run a single protein end to end, run a batch of
// proteins stage-first across a working directory, generate and submit
// Slurm array jobs for a batch, report batch progress, migrate a flat
// working directory into the sharded per-stage layout, clean up
// intermediate files once a run's outputs have been checked, and
// render a finished run's stage-21 candidate-pair judgements as a DOT
// graph for inspection.
package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "run":
		err = runRun(args)
	case "batch-run":
		err = runBatchRun(args)
	case "batch-status":
		err = runBatchStatus(args)
	case "slurm-batch":
		err = runSlurmBatch(args)
	case "slurm-submit":
		err = runSlurmSubmit(args)
	case "slurm-status":
		err = runSlurmStatus(args)
	case "slurm-cancel":
		err = runSlurmCancel(args)
	case "migrate":
		err = runMigrate(args)
	case "clean":
		err = runClean(args)
	case "mergegraph":
		err = runMergeGraph(args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "dpam: unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "dpam %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dpam <command> [options]

Commands:
  run           run one protein through every stage
  batch-run     run every pending protein in a working directory stage-first
  batch-status  report per-stage complete/failed counts for a working directory
  slurm-batch   generate a Slurm array script covering every pending protein
  slurm-submit  submit a previously generated Slurm script
  slurm-status  query a submitted job's state
  slurm-cancel  cancel a submitted job
  migrate       migrate a flat working directory to the sharded layout
  clean         remove intermediate files, keeping preserved outputs
  mergegraph    render a stage-21 .comparisons file as a DOT graph

Run "dpam <command> -h" for the flags of a specific command.
`)
}

// refFlags are the reference-data and tool-location flags common to
// every subcommand that actually runs pipeline stages.
type refFlags struct {
	refDir          string
	foldseekDB      string
	classifierPath  string
	profileDatabase string
	ecodDatabase    string
	mkdsspCmd       string
	daliWorkers     int
	cpu             int
	skipAddSS       bool
}

func addRefFlags(fs *flag.FlagSet, f *refFlags) {
	fs.StringVar(&f.refDir, "ref-dir", "", "specify the ECOD reference data directory (required)")
	fs.StringVar(&f.foldseekDB, "foldseek-db", "", "specify the Foldseek target database (required)")
	fs.StringVar(&f.classifierPath, "classifier", "", "specify the domass classifier checkpoint path (required)")
	fs.StringVar(&f.profileDatabase, "hh-profile-db", "", "specify the HHblits profile database")
	fs.StringVar(&f.ecodDatabase, "hh-ecod-db", "", "specify the HHsearch ECOD database")
	fs.StringVar(&f.mkdsspCmd, "mkdssp", "mkdssp", "specify the mkdssp executable")
	fs.IntVar(&f.daliWorkers, "dali-workers", 4, "specify the iterative-DALI worker pool size")
	fs.IntVar(&f.cpu, "cpu", 0, "specify CPU count for HHblits/HHsearch (<=0 uses hhsuite's own default)")
	fs.BoolVar(&f.skipAddSS, "skip-addss", false, "specify to skip PSIPRED secondary-structure annotation")
}

func (f *refFlags) validate() error {
	if f.refDir == "" || f.foldseekDB == "" || f.classifierPath == "" {
		return fmt.Errorf("-ref-dir, -foldseek-db and -classifier are required")
	}
	return nil
}

// sliceValue is a multi-value flag, settable more than once on one
// command line, accumulating into a slice in order.
type sliceValue []string

func (s *sliceValue) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func (s *sliceValue) String() string {
	return fmt.Sprintf("%q", []string(*s))
}
