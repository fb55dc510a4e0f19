// Package slurm generates and submits SLURM job arrays that fan a
// batch of DPAM proteins out across a cluster, grounded on
// original_source/dpam/pipeline/slurm.py (spec.md §4.I).
package slurm

import (
	"bufio"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/biogo/external"

	"github.com/dpam-project/dpam/internal/tools"
)

// ToolRunner executes a built command and returns its captured stdout,
// the same narrow interface stages.ToolRunner exposes, so callers can
// pass either a stages.execRunner or a test fake.
type ToolRunner interface {
	Run(builder tools.Builder) ([]byte, error)
}

// ArrayScript holds the parameters for a SLURM array submission.
type ArrayScript struct {
	Prefixes     []string
	WorkingDir   string
	DataDir      string
	CPUsPerTask  int
	MemPerCPU    string
	TimeLimit    string
	Partition    string
	ArraySize    int
	LogDir       string
	DpamCmd      string
	PrefixesFile string
}

// Generate renders the #!/bin/bash sbatch array script and the
// newline-delimited prefix list it references, mirroring
// generate_slurm_script/prefixes_array.txt from the original pipeline.
func Generate(a ArrayScript) (script, prefixList string) {
	if a.DpamCmd == "" {
		a.DpamCmd = "dpam"
	}
	if a.PrefixesFile == "" {
		a.PrefixesFile = "prefixes_array.txt"
	}
	n := len(a.Prefixes)

	var sb strings.Builder
	fmt.Fprintln(&sb, "#!/bin/bash")
	fmt.Fprintf(&sb, "#SBATCH --job-name=dpam\n")
	fmt.Fprintf(&sb, "#SBATCH --array=0-%d%%%d\n", n-1, a.ArraySize)
	fmt.Fprintf(&sb, "#SBATCH --cpus-per-task=%d\n", a.CPUsPerTask)
	fmt.Fprintf(&sb, "#SBATCH --mem-per-cpu=%s\n", a.MemPerCPU)
	fmt.Fprintf(&sb, "#SBATCH --time=%s\n", a.TimeLimit)
	if a.Partition != "" {
		fmt.Fprintf(&sb, "#SBATCH --partition=%s\n", a.Partition)
	}
	if a.LogDir != "" {
		fmt.Fprintf(&sb, "#SBATCH --output=%s/dpam_%%A_%%a.out\n", a.LogDir)
		fmt.Fprintf(&sb, "#SBATCH --error=%s/dpam_%%A_%%a.err\n", a.LogDir)
	}
	fmt.Fprintln(&sb)
	fmt.Fprintf(&sb, "PREFIX=$(sed -n \"$((SLURM_ARRAY_TASK_ID + 1))p\" %s)\n", a.PrefixesFile)
	fmt.Fprintf(&sb, "INPUT=$(ls %s/\"$PREFIX\".pdb %s/\"$PREFIX\".cif 2>/dev/null | head -1)\n", a.WorkingDir, a.WorkingDir)
	fmt.Fprintln(&sb)
	// DataDir is expected to hold the three pieces of reference state
	// dpam run also needs standalone: ref/ (ECOD reference corpus),
	// foldseek.db (the Foldseek target database) and classifier.bin
	// (the frozen domass checkpoint).
	fmt.Fprintf(&sb, "%s run -input \"$INPUT\" -prefix \"$PREFIX\" -working-dir %s -ref-dir %s/ref -foldseek-db %s/foldseek.db -classifier %s/classifier.bin -cpu $SLURM_CPUS_PER_TASK\n",
		a.DpamCmd, a.WorkingDir, a.DataDir, a.DataDir, a.DataDir)

	var pb strings.Builder
	for _, p := range a.Prefixes {
		fmt.Fprintln(&pb, p)
	}
	return sb.String(), pb.String()
}

// Sbatch builds the argv for submitting a generated array script.
type Sbatch struct {
	Cmd    string `buildarg:"{{if .}}{{.}}{{else}}sbatch{{end}}"`
	Script string `buildarg:"{{.}}"`
}

func (s Sbatch) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(s))
	return exec.Command(cl[0], cl[1:]...), nil
}

// Squeue builds the argv for querying one job's state.
type Squeue struct {
	Cmd      string `buildarg:"{{if .}}{{.}}{{else}}squeue{{end}}"`
	JobID    string `buildarg:"-j{{split}}{{.}}"`
	Format   string `buildarg:"--format{{split}}{{.}}"`
	NoHeader bool   `buildarg:"{{if .}}--noheader{{end}}"`
}

func (s Squeue) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(s))
	return exec.Command(cl[0], cl[1:]...), nil
}

// Scancel builds the argv for cancelling a running job.
type Scancel struct {
	Cmd   string `buildarg:"{{if .}}{{.}}{{else}}scancel{{end}}"`
	JobID string `buildarg:"{{.}}"`
}

func (s Scancel) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(s))
	return exec.Command(cl[0], cl[1:]...), nil
}

// Submit runs sbatch on script via runner and parses the resulting
// "Submitted batch job 12345" line into a job ID.
func Submit(runner ToolRunner, script string) (string, error) {
	out, err := runner.Run(Sbatch{Script: script})
	if err != nil {
		return "", fmt.Errorf("slurm: sbatch: %w", err)
	}
	const marker = "Submitted batch job "
	idx := strings.Index(string(out), marker)
	if idx < 0 {
		return "", fmt.Errorf("slurm: unrecognized sbatch output: %q", out)
	}
	rest := string(out)[idx+len(marker):]
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", fmt.Errorf("slurm: unrecognized sbatch output: %q", out)
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return "", fmt.Errorf("slurm: non-numeric job id %q", fields[0])
	}
	return fields[0], nil
}

// Status queries a job's current SLURM state (e.g. "RUNNING",
// "PENDING", "COMPLETED"). An empty result (job no longer in the
// queue) is reported as "COMPLETED", matching squeue's behaviour of
// dropping finished jobs.
func Status(runner ToolRunner, jobID string) (string, error) {
	out, err := runner.Run(Squeue{JobID: jobID, Format: "%T", NoHeader: true})
	if err != nil {
		return "", fmt.Errorf("slurm: squeue: %w", err)
	}
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	if sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "COMPLETED", nil
}

// Cancel cancels a running or pending job.
func Cancel(runner ToolRunner, jobID string) error {
	if _, err := runner.Run(Scancel{JobID: jobID}); err != nil {
		return fmt.Errorf("slurm: scancel: %w", err)
	}
	return nil
}
