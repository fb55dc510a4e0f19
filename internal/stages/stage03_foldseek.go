package stages

import (
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/tools"
)

// RunFoldseek implements stage 3 for the per-protein runner: a single
// easy-search invocation with the deliberately permissive e-value and
// --max-seqs so stage 4, not Foldseek, decides significance (spec.md
// stage 3). The batch orchestrator (component G) runs its own
// createdb/search/convertalis sequence (runFoldseekBatch) instead.
func RunFoldseek(ctx *Context, runner ToolRunner, queryPDB, targetDB string) ([]tools.Hit, error) {
	if err := ctx.Resolver.EnsureStageDir(model.FOLDSEEK); err != nil {
		return nil, fmt.Errorf("stage03: %w", err)
	}
	out := ctx.Resolver.StagePath(model.FOLDSEEK, ctx.Prefix+".foldseek")
	tmp, err := os.MkdirTemp("", "dpam-foldseek-")
	if err != nil {
		return nil, fmt.Errorf("stage03: %w", err)
	}
	defer os.RemoveAll(tmp)

	if _, err := runner.Run(tools.EasySearch{
		Query: queryPDB, Target: targetDB, Out: out, TmpDir: tmp,
		EValue: tools.DefaultEValue, MaxSeqs: tools.DefaultMaxSeqs,
		Format: "query,target,pident,alnlen,mismatch,gapopen,qstart,qend,tstart,tend,evalue,bits",
	}); err != nil {
		return nil, fmt.Errorf("stage03: foldseek: %w", err)
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("stage03: %w", err)
	}
	defer f.Close()
	return tools.ParseTabular(f)
}
