package stages

import (
	"fmt"
	"io"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
)

// GoodDomains implements stage 10: per hit, merge segments with gap
// tolerance 10, drop segments shorter than 5, require a total of ≥25
// remaining residues. Structure hits additionally need a positive
// judge score (spec.md stage 10).
func GoodDomains(seqHits []FilteredSequenceHit, structHits []model.StructureHit, ref *refdata.Data) []model.GoodDomain {
	var out []model.GoodDomain
	for _, h := range seqHits {
		res, ok := cleanSegments(parseOr(h.QueryRange))
		if !ok {
			continue
		}
		hCopy := (model.SequenceHit)(h)
		out = append(out, model.GoodDomain{
			Class:    model.ClassSequence,
			UID:      h.UID,
			Key:      h.Key,
			HGroup:   h.HGroup,
			Residues: res,
			SeqHit:   &hCopy,
		})
	}
	for _, h := range structHits {
		res, ok := cleanSegments(parseOr(h.QueryRange))
		if !ok {
			continue
		}
		judge := structureJudge(h, ref)
		if judge <= 0 {
			continue
		}
		hCopy := h
		out = append(out, model.GoodDomain{
			Class:    model.ClassStructure,
			UID:      h.UID,
			Key:      h.Key,
			HGroup:   h.HGroup,
			Residues: res,
			Judge:    judge,
			StructHit: &hCopy,
		})
	}
	return out
}

func parseOr(s string) []int {
	r, _ := ranges.Parse(s)
	return r
}

// cleanSegments merges with gap tolerance 10, drops segments <5
// residues, and requires a total of ≥25 remaining (spec.md stage 10).
func cleanSegments(residues []int) ([]int, bool) {
	merged := mergeWithGapTolerance(residues, 10)
	var kept []int
	for _, run := range maximalRuns(merged) {
		if len(run) < 5 {
			continue
		}
		kept = append(kept, run...)
	}
	if len(kept) < 25 {
		return nil, false
	}
	return kept, true
}

// structureJudge implements stage 10's judge score: +1 for each of
// nine conditions (spec.md stage 10), cumulative per open question 2.
func structureJudge(h model.StructureHit, ref *refdata.Data) int {
	judge := 0
	if h.Rank < 1.5 {
		judge++
	}
	if h.Q > 0.5 {
		judge++
	}
	if h.ZTile >= 0 && h.ZTile < 0.75 {
		judge++
	}
	if h.QTile >= 0 && h.QTile < 0.75 {
		judge++
	}
	norm, ok := ref.Norms[h.UID]
	if ok && norm != 0 && h.Z/norm > 0.225 {
		judge++
	}
	cov, prob := h.BestSeqCoverage, h.BestSeqProb
	if prob >= 20 && cov >= 0.2 {
		judge++
	}
	if prob >= 50 && cov >= 0.3 {
		judge++
	}
	if prob >= 80 && cov >= 0.4 {
		judge++
	}
	if prob >= 95 && cov >= 0.6 {
		judge++
	}
	return judge
}

// WriteGoodDomains emits stage 10's primary output, one line per hit
// with a leading discriminator column ("sequence"/"structure")
// (spec.md stage 10).
func WriteGoodDomains(ctx *Context, domains []model.GoodDomain) error {
	if err := ctx.Resolver.EnsureStageDir(model.FILTER_GOOD_DOMAINS); err != nil {
		return fmt.Errorf("stage10: %w", err)
	}
	path := ctx.Resolver.StagePath(model.FILTER_GOOD_DOMAINS, ctx.Prefix+".goodDomains")
	return writeLines(path, func(w io.Writer) error {
		for _, d := range domains {
			_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				d.Class, d.UID, d.Key, d.HGroup, ranges.Emit(d.Residues))
			if err != nil {
				return err
			}
		}
		return nil
	})
}
