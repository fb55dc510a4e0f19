package batch

import (
	"os"
	"path/filepath"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/stages"
)

// runIterativeDaliBatch implements spec.md §4.G stage-7 specialisation:
// collect the union of template uids referenced by every pending
// protein's stage-6 candidates and warm a shared local cache with one
// copy of each, so the first touch of a template shared by several
// proteins in this batch is the only one that pays NFS latency.
// ReferenceData stays immutable and single-loaded per spec.md §4.A/§5
// ("pass it explicitly... rather than hang it on a module"), so the
// per-protein kernel still resolves templates through ref.TemplatePath;
// the cache's effect is at the OS page-cache level, not a rebinding of
// ref's own template directory. The cache is torn down at stage end.
func (o *Orchestrator) runIterativeDaliBatch(pending []string) {
	cacheDir := filepath.Join(o.resolver.BatchDir(), "_dali_template_cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		o.failAll(pending, model.ITERATIVE_DALI, err)
		return
	}
	defer os.RemoveAll(cacheDir)

	seen := make(map[int64]bool)
	for _, prefix := range pending {
		w := o.proteins[prefix]
		for _, uid := range w.daliUIDs {
			if seen[uid] {
				continue
			}
			seen[uid] = true
			meta, ok := o.ref.Metadata[uid]
			if !ok {
				continue
			}
			dst := filepath.Join(cacheDir, meta.Key+".pdb")
			if _, err := os.Stat(dst); err == nil {
				continue
			}
			if err := copyFile(o.ref.TemplatePath(meta.Key), dst); err != nil {
				// A missing template is a per-uid data gap, not a
				// reason to fail the whole batch; stage 7's own
				// per-candidate kernel already treats an unreadable
				// template as zero hits for that uid.
				continue
			}
		}
	}

	for _, prefix := range pending {
		w := o.proteins[prefix]
		ctx := o.ctxFor(prefix)
		w.daliResults = stages.RunIterativeDali(ctx, o.tool, o.ref, w.pdbPath, w.daliUIDs, o.opts.DaliWorkers)
		o.mark(prefix, model.ITERATIVE_DALI, stages.WriteIterativeDaliHits(ctx, w.daliResults))
	}
}
