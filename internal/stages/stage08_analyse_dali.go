package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
)

// AnalyseDali implements stage 8: for each raw DALI iteration compute
// a weighted q-score, z-tile/q-tile percentiles against historical
// distributions, and a rank derived from the running count of distinct
// H-groups seen at each aligned query residue, processed in descending
// z order (spec.md stage 8, §5 "order-sensitive, single-threaded").
func AnalyseDali(results map[int64][]DaliIteration, ref *refdata.Data) []model.StructureHit {
	type flat struct {
		uid  int64
		iter DaliIteration
	}
	var all []flat
	for uid, iters := range results {
		for _, it := range iters {
			all = append(all, flat{uid: uid, iter: it})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].iter.Result.Z > all[j].iter.Result.Z })

	hGroupsSeenAt := make(map[int]map[string]bool)
	out := make([]model.StructureHit, 0, len(all))
	for _, f := range all {
		uid := f.uid
		meta := ref.Metadata[uid]
		weights, _ := ref.PositionWeights(uid)

		qResidues := make([]int, len(f.iter.Result.Alignment))
		tResidues := make([]int, len(f.iter.Result.Alignment))
		wsum, wtotal := 0.0, 0.0
		for i, p := range f.iter.Result.Alignment {
			qResidues[i] = p.Query
			tResidues[i] = p.Template
			w := refdata.UniformWeightFallback
			if weights != nil {
				if v, ok := weights[p.Template]; ok {
					w = v
				}
			}
			wsum += w
		}
		for _, w := range weights {
			wtotal += w
		}
		q := 0.0
		if wtotal > 0 {
			q = wsum / wtotal
		}

		hist, hasHist, _ := ref.HistoricalScores(uid)
		zTile := refdata.NoHistoricalData
		qTile := refdata.NoHistoricalData
		if hasHist && hist != nil {
			zTile = tilePercentile(hist.Z, f.iter.Result.Z)
			qTile = tilePercentile(hist.Q, q)
		}

		rankSum := 0.0
		for _, qr := range qResidues {
			seen := hGroupsSeenAt[qr]
			if seen == nil {
				seen = make(map[string]bool)
				hGroupsSeenAt[qr] = seen
			}
			seen[meta.HGroup] = true
			rankSum += float64(len(seen))
		}
		rank := 0.0
		if len(qResidues) > 0 {
			rank = rankSum / float64(len(qResidues))
		}

		out = append(out, model.StructureHit{
			HitName: f.iter.HitName,
			UID:     uid,
			Key:     meta.Key,
			HGroup:  meta.HGroup,
			Z:       f.iter.Result.Z,
			Q:       q,
			ZTile:   zTile,
			QTile:   qTile,
			Rank:    rank,

			QueryRange:       ranges.Emit(qResidues),
			GapFilteredRange: ranges.Emit(mergeWithGapTolerance(qResidues, 10)),
			TemplateRange:    ranges.Emit(tResidues),
		})
	}
	return out
}

// tilePercentile is the fraction of dist strictly greater than value
// (spec.md stage 8: "fraction of a historical distribution strictly
// greater than the observed value, better/(better+worse)").
func tilePercentile(dist []float64, value float64) float64 {
	if len(dist) == 0 {
		return refdata.NoHistoricalData
	}
	better, worse := 0, 0
	for _, d := range dist {
		if d > value {
			better++
		} else if d < value {
			worse++
		}
	}
	if better+worse == 0 {
		return refdata.NoHistoricalData
	}
	return float64(better) / float64(better+worse)
}

// WriteAnalyseDali emits stage 8's primary output, "_good_hits" in the
// structure-hit half of the file set (joined with sequence support in
// stage 9/10's downstream consumers).
func WriteAnalyseDali(ctx *Context, hits []model.StructureHit) error {
	if err := ctx.Resolver.EnsureStageDir(model.ANALYSE_DALI); err != nil {
		return fmt.Errorf("stage08: %w", err)
	}
	path := ctx.Resolver.StagePath(model.ANALYSE_DALI, ctx.Prefix+"_good_hits")
	return writeLines(path, func(w io.Writer) error {
		for _, h := range hits {
			_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%g\t%g\t%g\t%g\t%g\t%s\t%s\t%s\n",
				h.HitName, h.UID, h.Key, h.HGroup, h.Z, h.Q, h.ZTile, h.QTile, h.Rank,
				h.QueryRange, h.GapFilteredRange, h.TemplateRange)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
