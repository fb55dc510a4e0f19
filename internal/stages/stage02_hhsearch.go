package stages

import (
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/tools"
)

// ToolRunner executes a built command and returns its captured stdout,
// folding stderr into ctx.Log via tools.Invoke. Stage kernels depend on
// this narrow interface rather than *exec.Cmd directly so tests can
// substitute a fake tool.
type ToolRunner interface {
	Run(builder tools.Builder) ([]byte, error)
}

// execRunner is the production ToolRunner, grounded on tools.Invoke.
type execRunner struct{ ctx *Context }

func (r execRunner) Run(builder tools.Builder) ([]byte, error) {
	cmd, err := builder.BuildCommand()
	if err != nil {
		return nil, err
	}
	return tools.Invoke(cmd.Path, cmd, r.ctx.LogWriter)
}

// NewExecRunner returns the subprocess-backed ToolRunner for ctx.
func NewExecRunner(ctx *Context) ToolRunner { return execRunner{ctx: ctx} }

// HHsearchOpts configures stage 2's optional steps.
type HHsearchOpts struct {
	ProfileDatabase string
	ECODDatabase    string
	SkipAddSS       bool
	CPU             int
}

// RunHHsearch implements stage 2: build an MSA profile, optionally
// annotate it with PSIPRED secondary structure, then search it against
// the ECOD profile database (spec.md stage 2).
func RunHHsearch(ctx *Context, runner ToolRunner, fastaPath string, opts HHsearchOpts) ([]tools.HHRecord, error) {
	if err := ctx.Resolver.EnsureStageDir(model.HHSEARCH); err != nil {
		return nil, fmt.Errorf("stage02: %w", err)
	}
	a3m := ctx.Resolver.StagePath(model.HHSEARCH, ctx.Prefix+".a3m")
	if _, err := runner.Run(tools.HHBlits{
		Input: fastaPath, Database: opts.ProfileDatabase, OutA3M: a3m, CPU: opts.CPU, Iters: 3,
	}); err != nil {
		return nil, fmt.Errorf("stage02: hhblits: %w", err)
	}

	profile := a3m
	if !opts.SkipAddSS {
		ssA3M := ctx.Resolver.StagePath(model.HHSEARCH, ctx.Prefix+".ss.a3m")
		if _, err := runner.Run(tools.AddSS{Input: a3m, Output: ssA3M}); err != nil {
			ctx.Log.Printf("addss failed, continuing without secondary structure annotation: %v", err)
		} else {
			profile = ssA3M
		}
	}

	report := ctx.Resolver.StagePath(model.HHSEARCH, ctx.Prefix+".hhsearch")
	if _, err := runner.Run(tools.HHsearch{
		Input: profile, Database: opts.ECODDatabase, Output: report, CPU: opts.CPU,
	}); err != nil {
		return nil, fmt.Errorf("stage02: hhsearch: %w", err)
	}

	f, err := os.Open(report)
	if err != nil {
		return nil, fmt.Errorf("stage02: %w", err)
	}
	defer f.Close()
	return tools.ParseHHR(f)
}
