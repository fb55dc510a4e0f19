package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
)

// DaliCandidates implements stage 6: the deduplicated, sorted union of
// ECOD uids from stages 4 and 5 (spec.md stage 6).
func DaliCandidates(foldseekHits []FilteredHit, seqHits []model.SequenceHit) []int64 {
	seen := make(map[int64]bool)
	for _, h := range foldseekHits {
		seen[h.UID] = true
	}
	for _, h := range seqHits {
		seen[h.UID] = true
	}
	out := make([]int64, 0, len(seen))
	for uid := range seen {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WriteDaliCandidates emits stage 6's primary output file, "_hits4Dali".
func WriteDaliCandidates(ctx *Context, uids []int64) error {
	if err := ctx.Resolver.EnsureStageDir(model.DALI_CANDIDATES); err != nil {
		return fmt.Errorf("stage06: %w", err)
	}
	path := ctx.Resolver.StagePath(model.DALI_CANDIDATES, ctx.Prefix+"_hits4Dali")
	return writeLines(path, func(w io.Writer) error {
		for _, uid := range uids {
			if _, err := fmt.Fprintf(w, "%d\n", uid); err != nil {
				return err
			}
		}
		return nil
	})
}
