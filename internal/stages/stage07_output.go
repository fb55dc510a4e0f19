package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
)

// WriteIterativeDaliHits emits stage 7's primary output file. The
// filename typo "_iterativdDali_hits" is preserved verbatim per
// spec.md §6 compatibility note.
func WriteIterativeDaliHits(ctx *Context, results map[int64][]DaliIteration) error {
	if err := ctx.Resolver.EnsureStageDir(model.ITERATIVE_DALI); err != nil {
		return fmt.Errorf("stage07: %w", err)
	}
	path := ctx.Resolver.StagePath(model.ITERATIVE_DALI, ctx.Prefix+"_iterativdDali_hits")

	uids := make([]int64, 0, len(results))
	for uid := range results {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	return writeLines(path, func(w io.Writer) error {
		for _, uid := range uids {
			for _, it := range results[uid] {
				pairs := make([][2]int, len(it.Result.Alignment))
				for i, p := range it.Result.Alignment {
					pairs[i] = [2]int{p.Query, p.Template}
				}
				if _, err := fmt.Fprintf(w, "%s\t%g\t%d", it.HitName, it.Result.Z, len(pairs)); err != nil {
					return err
				}
				for _, p := range pairs {
					if _, err := fmt.Fprintf(w, "\t%d:%d", p[0], p[1]); err != nil {
						return err
					}
				}
				if _, err := fmt.Fprintln(w); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
