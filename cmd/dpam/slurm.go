package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"sort"

	"github.com/dpam-project/dpam/internal/ckpt"
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/slurm"
	"github.com/dpam-project/dpam/internal/tools"
)

func runSlurmBatch(args []string) error {
	fs := flag.NewFlagSet("slurm-batch", flag.ExitOnError)
	workingDir := fs.String("working-dir", ".", "specify the working directory")
	dataDir := fs.String("data-dir", "", "specify the reference/foldseek/classifier data directory passed through to each array task")
	dpamCmd := fs.String("dpam-cmd", "dpam", "specify the dpam binary to invoke per array task")
	scriptOut := fs.String("script", "dpam_array.sbatch", "specify the output script path")
	prefixesOut := fs.String("prefixes-file", "dpam_array_prefixes.txt", "specify the output prefixes-list path")
	cpusPerTask := fs.Int("cpus-per-task", 4, "specify SBATCH --cpus-per-task")
	memPerCPU := fs.String("mem-per-cpu", "4G", "specify SBATCH --mem-per-cpu")
	timeLimit := fs.String("time", "04:00:00", "specify SBATCH --time")
	partition := fs.String("partition", "", "specify SBATCH --partition")
	arraySize := fs.Int("array-throttle", 50, "specify the max number of concurrently running array tasks (%N)")
	logDir := fs.String("log-dir", "slurm_logs", "specify the SBATCH output/error log directory")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam slurm-batch -working-dir <dir> -data-dir <dir> [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	inputs, err := discoverInputs(*workingDir)
	if err != nil {
		return fmt.Errorf("discover proteins: %w", err)
	}
	var pending []string
	for prefix := range inputs {
		done, err := isFullyComplete(*workingDir, prefix)
		if err != nil {
			return err
		}
		if !done {
			pending = append(pending, prefix)
		}
	}
	sort.Strings(pending)
	if len(pending) == 0 {
		fmt.Fprintln(os.Stdout, "no pending proteins; nothing to submit")
		return nil
	}

	script, prefixList := slurm.Generate(slurm.ArrayScript{
		Prefixes:     pending,
		WorkingDir:   *workingDir,
		DataDir:      *dataDir,
		CPUsPerTask:  *cpusPerTask,
		MemPerCPU:    *memPerCPU,
		TimeLimit:    *timeLimit,
		Partition:    *partition,
		ArraySize:    *arraySize,
		LogDir:       *logDir,
		DpamCmd:      *dpamCmd,
		PrefixesFile: *prefixesOut,
	})
	if err := ioutil.WriteFile(*scriptOut, []byte(script), 0o644); err != nil {
		return fmt.Errorf("write script: %w", err)
	}
	if err := ioutil.WriteFile(*prefixesOut, []byte(prefixList), 0o644); err != nil {
		return fmt.Errorf("write prefixes file: %w", err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s and %s for %d pending proteins\n", *scriptOut, *prefixesOut, len(pending))
	return nil
}

func isFullyComplete(root, prefix string) (bool, error) {
	st, err := ckpt.LoadProtein(root, prefix)
	if err != nil {
		return false, err
	}
	for _, s := range model.Ordered {
		if !st.Completed[s] {
			return false, nil
		}
	}
	return true, nil
}

// cliToolRunner adapts tools.Invoke for the slurm package's ToolRunner
// interface, the same shape execRunner satisfies in internal/stages,
// but standalone here since slurm has no Context of its own.
type cliToolRunner struct{}

func (cliToolRunner) Run(builder tools.Builder) ([]byte, error) {
	cmd, err := builder.BuildCommand()
	if err != nil {
		return nil, err
	}
	return tools.Invoke(cmd.Path, cmd, os.Stderr)
}

func runSlurmSubmit(args []string) error {
	fs := flag.NewFlagSet("slurm-submit", flag.ExitOnError)
	script := fs.String("script", "", "specify the sbatch script to submit (required)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam slurm-submit -script <path> [options]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *script == "" {
		fs.Usage()
		os.Exit(2)
	}
	jobID, err := slurm.Submit(cliToolRunner{}, *script)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, jobID)
	return nil
}

func runSlurmStatus(args []string) error {
	fs := flag.NewFlagSet("slurm-status", flag.ExitOnError)
	jobID := fs.String("job-id", "", "specify the Slurm job id (required)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam slurm-status -job-id <id>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		fs.Usage()
		os.Exit(2)
	}
	status, err := slurm.Status(cliToolRunner{}, *jobID)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, status)
	return nil
}

func runSlurmCancel(args []string) error {
	fs := flag.NewFlagSet("slurm-cancel", flag.ExitOnError)
	jobID := fs.String("job-id", "", "specify the Slurm job id (required)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: dpam slurm-cancel -job-id <id>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == "" {
		fs.Usage()
		os.Exit(2)
	}
	return slurm.Cancel(cliToolRunner{}, *jobID)
}
