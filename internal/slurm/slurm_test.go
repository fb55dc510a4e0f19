package slurm

import (
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/tools"
)

func TestGenerateScriptContainsSBATCHDirectives(t *testing.T) {
	script, prefixList := Generate(ArrayScript{
		Prefixes:     []string{"prot1", "prot2"},
		WorkingDir:   "/data/work",
		DataDir:      "/data/ref",
		CPUsPerTask:  8,
		MemPerCPU:    "4G",
		TimeLimit:    "04:00:00",
		Partition:    "compute",
		ArraySize:    10,
		LogDir:       "/data/work/slurm_logs",
		PrefixesFile: "prefixes.txt",
	})

	require.True(t, strings.HasPrefix(script, "#!/bin/bash\n"))
	require.Contains(t, script, "#SBATCH --array=0-1%10")
	require.Contains(t, script, "#SBATCH --cpus-per-task=8")
	require.Contains(t, script, "#SBATCH --mem-per-cpu=4G")
	require.Contains(t, script, "#SBATCH --time=04:00:00")
	require.Contains(t, script, "#SBATCH --partition=compute")
	require.Contains(t, script, "#SBATCH --output=/data/work/slurm_logs/dpam_%A_%a.out")

	require.Contains(t, script, `sed -n "$((SLURM_ARRAY_TASK_ID + 1))p" prefixes.txt`)
	require.Contains(t, script, "INPUT=$(ls /data/work/\"$PREFIX\".pdb /data/work/\"$PREFIX\".cif 2>/dev/null | head -1)")
	require.Contains(t, script, "dpam run -input \"$INPUT\" -prefix \"$PREFIX\"")
	require.Contains(t, script, "-ref-dir /data/ref/ref")
	require.Contains(t, script, "-foldseek-db /data/ref/foldseek.db")
	require.Contains(t, script, "-classifier /data/ref/classifier.bin")
	require.Contains(t, script, "-cpu $SLURM_CPUS_PER_TASK")

	require.Equal(t, "prot1\nprot2\n", prefixList)
}

func TestGenerateDefaultsDpamCmdAndPrefixesFile(t *testing.T) {
	script, _ := Generate(ArrayScript{Prefixes: []string{"p1"}})
	require.Contains(t, script, "prefixes_array.txt")
	require.Contains(t, script, "dpam run")
}

func TestGenerateOmitsOptionalDirectivesWhenUnset(t *testing.T) {
	script, _ := Generate(ArrayScript{Prefixes: []string{"p1"}})
	require.NotContains(t, script, "--partition=")
	require.NotContains(t, script, "--output=")
	require.NotContains(t, script, "--error=")
}

// fakeRunner records the command it would have run and returns a
// canned response, so Submit/Status/Cancel can be tested without
// shelling out to a real sbatch/squeue/scancel.
type fakeRunner struct {
	out []byte
	err error
	cmd *exec.Cmd
}

func (f *fakeRunner) Run(builder tools.Builder) ([]byte, error) {
	cmd, err := builder.BuildCommand()
	if err != nil {
		return nil, err
	}
	f.cmd = cmd
	return f.out, f.err
}

func TestSubmitParsesJobID(t *testing.T) {
	r := &fakeRunner{out: []byte("Submitted batch job 12345\n")}
	jobID, err := Submit(r, "/tmp/array.sbatch")
	require.NoError(t, err)
	require.Equal(t, "12345", jobID)
	require.Contains(t, r.cmd.Args, "/tmp/array.sbatch")
}

func TestSubmitRejectsUnrecognizedOutput(t *testing.T) {
	r := &fakeRunner{out: []byte("something went sideways\n")}
	_, err := Submit(r, "/tmp/array.sbatch")
	require.Error(t, err)
}

func TestStatusReturnsQueueState(t *testing.T) {
	r := &fakeRunner{out: []byte("RUNNING\n")}
	status, err := Status(r, "12345")
	require.NoError(t, err)
	require.Equal(t, "RUNNING", status)
}

func TestStatusReportsCompletedWhenJobDroppedFromQueue(t *testing.T) {
	r := &fakeRunner{out: []byte("")}
	status, err := Status(r, "12345")
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", status)
}

func TestCancelInvokesScancelWithJobID(t *testing.T) {
	r := &fakeRunner{}
	err := Cancel(r, "12345")
	require.NoError(t, err)
	require.Contains(t, r.cmd.Args, "12345")
}
