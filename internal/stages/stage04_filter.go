package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/iv"
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/tools"
)

// FilteredHit is one retained Foldseek hit after stage 4's
// coverage-gain filter.
type FilteredHit struct {
	UID              int64
	Key              string
	QStart, QEnd     int
	TStart, TEnd     int
	EValue, BitScore float64
}

// FilterFoldseek implements stage 4: sort hits ascending by e-value,
// maintain a coverage array of size queryLen, and keep a hit only if
// it brings ≥5 previously uncovered query residues. Keeps at most one
// representative per ECOD uid, the first one encountered in sorted
// order (spec.md stage 4).
func FilterFoldseek(hits []tools.Hit, queryLen int, ref *refdata.Data) []FilteredHit {
	sorted := append([]tools.Hit(nil), hits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EValue < sorted[j].EValue })

	cov := make([]bool, queryLen+1)
	seen := make(map[int64]bool)
	var out []FilteredHit
	for _, h := range sorted {
		entry, ok := ref.PDBMap[h.Target]
		if !ok {
			continue
		}
		gain := iv.CoverageGain(cov, h.QStart, h.QEnd)
		if gain < 5 {
			continue
		}
		if seen[entry.UID] {
			continue
		}
		seen[entry.UID] = true
		iv.MarkCovered(cov, h.QStart, h.QEnd)
		key := ""
		if meta, ok := ref.Metadata[entry.UID]; ok {
			key = meta.Key
		}
		out = append(out, FilteredHit{
			UID: entry.UID, Key: key,
			QStart: h.QStart, QEnd: h.QEnd, TStart: h.TStart, TEnd: h.TEnd,
			EValue: h.EValue, BitScore: h.BitScore,
		})
	}
	return out
}

// WriteFilteredHits emits stage 4's primary output file.
func WriteFilteredHits(ctx *Context, hits []FilteredHit) error {
	if err := ctx.Resolver.EnsureStageDir(model.FOLDSEEK_FILTER); err != nil {
		return fmt.Errorf("stage04: %w", err)
	}
	path := ctx.Resolver.StagePath(model.FOLDSEEK_FILTER, ctx.Prefix+".foldseek.flt.result")
	return writeLines(path, func(w io.Writer) error {
		for _, h := range hits {
			_, err := fmt.Fprintf(w, "%d\t%s\t%d-%d\t%d-%d\t%g\t%g\n",
				h.UID, h.Key, h.QStart, h.QEnd, h.TStart, h.TEnd, h.EValue, h.BitScore)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
