package stages

import (
	"fmt"
	"io"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/tools"
)

// MapHHsearchToECOD implements stage 5: for each HHsearch alignment,
// look up ecod_pdbmap[hit_id] and walk the gapped query/template
// alignment columns, keeping ungapped columns whose template PDB
// residue has an ECOD position. Keeps the hit iff ≥10 aligned
// positions survive (spec.md stage 5).
func MapHHsearchToECOD(recs []tools.HHRecord, ref *refdata.Data) []model.SequenceHit {
	var out []model.SequenceHit
	for _, r := range recs {
		entry, ok := ref.PDBMap[r.HitID]
		if !ok {
			continue
		}
		meta, hasMeta := ref.Metadata[entry.UID]
		length := ref.Lengths[entry.UID].Length

		qPos := r.QueryStart
		tPos := 0 // index into entry.Residue (0-based, file order)
		var queryRes, templateRes []int
		for i := 0; i < len(r.QueryAlign) && i < len(r.TemplateAlign); i++ {
			qc, tc := r.QueryAlign[i], r.TemplateAlign[i]
			qGap := qc == '-'
			tGap := tc == '-'
			if !qGap && !tGap {
				if tPos < len(entry.Residue) {
					ecodResid := entry.Residue[tPos]
					queryRes = append(queryRes, qPos)
					templateRes = append(templateRes, ecodResid)
				}
			}
			if !qGap {
				qPos++
			}
			if !tGap {
				tPos++
			}
		}
		if len(queryRes) < 10 {
			continue
		}

		// ungapped_coverage = (max-min+1)/ecod_length is carried in
		// TemplateRange's span and can be recomputed by callers that
		// need it (stage 9/15 both re-derive ranges from scratch).
		coverage := 0.0
		if length > 0 {
			coverage = float64(len(templateRes)) / float64(length)
		}

		out = append(out, model.SequenceHit{
			UID:            entry.UID,
			Key:            meta.Key,
			TGroup:         meta.TGroup,
			HGroup:         meta.HGroup,
			Prob:           r.Prob,
			Coverage:       coverage,
			TemplateLength: length,
			QueryRange:     ranges.Emit(queryRes),
			TemplateRange:  ranges.Emit(templateRes),
		})
		_ = hasMeta
	}
	return out
}

// WriteMapResult emits stage 5's primary output file.
func WriteMapResult(ctx *Context, hits []model.SequenceHit) error {
	if err := ctx.Resolver.EnsureStageDir(model.MAP_ECOD); err != nil {
		return fmt.Errorf("stage05: %w", err)
	}
	path := ctx.Resolver.StagePath(model.MAP_ECOD, ctx.Prefix+".map2ecod.result")
	return writeLines(path, func(w io.Writer) error {
		for _, h := range hits {
			_, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%g\t%g\t%s\t%s\n",
				h.UID, h.Key, h.TGroup, h.HGroup, h.Prob, h.Coverage, h.QueryRange, h.TemplateRange)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
