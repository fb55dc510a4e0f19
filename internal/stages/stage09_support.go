package stages

import (
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
)

// FilteredSequenceHit is a stage-5 hit surviving stage 9's greedy
// redundancy removal.
type FilteredSequenceHit model.SequenceHit

// SequenceSupport implements stage 9's sequence side: group stage-5
// rows by uid, sort by descending probability, keep a hit only if its
// template residues add ≥50% new residues to the uid's covered set —
// no probability or coverage threshold (spec.md stage 9).
func SequenceSupport(hits []model.SequenceHit) []FilteredSequenceHit {
	byUID := make(map[int64][]model.SequenceHit)
	for _, h := range hits {
		byUID[h.UID] = append(byUID[h.UID], h)
	}

	var out []FilteredSequenceHit
	for _, group := range byUID {
		sorted := append([]model.SequenceHit(nil), group...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Prob > sorted[j].Prob })

		covered := make(map[int]bool)
		for _, h := range sorted {
			tRes, _ := ranges.Parse(h.TemplateRange)
			newCount := 0
			for _, r := range tRes {
				if !covered[r] {
					newCount++
				}
			}
			total := len(tRes)
			if total == 0 {
				continue
			}
			if float64(newCount)/float64(total) < 0.5 {
				continue
			}
			for _, r := range tRes {
				covered[r] = true
			}
			out = append(out, FilteredSequenceHit(h))
		}
	}
	return out
}

// StructureSupport implements stage 9's structure side: for each
// stage-8 hit, merge its query range with gap tolerance 10 and expand
// to hulls; within the same H-group family of stage-5 hits, find the
// maximum sequence probability p* intersecting the hit's query
// residues; take best_cov = max{cov : prob >= p*-0.1} (spec.md stage
// 9). Attaches (best_prob, best_cov) to each structure hit.
func StructureSupport(structHits []model.StructureHit, seqHits []model.SequenceHit) []model.StructureHit {
	seqByHGroup := make(map[string][]model.SequenceHit)
	for _, s := range seqHits {
		seqByHGroup[s.HGroup] = append(seqByHGroup[s.HGroup], s)
	}

	out := make([]model.StructureHit, len(structHits))
	for i, h := range structHits {
		qRes, _ := ranges.Parse(h.QueryRange)
		merged := mergeWithGapTolerance(qRes, 10)
		mergedSet := make(map[int]bool, len(merged))
		for _, r := range merged {
			mergedSet[r] = true
		}

		pStar := -1.0
		for _, s := range seqByHGroup[h.HGroup] {
			sRes, _ := ranges.Parse(s.QueryRange)
			intersects := false
			for _, r := range sRes {
				if mergedSet[r] {
					intersects = true
					break
				}
			}
			if intersects && s.Prob > pStar {
				pStar = s.Prob
			}
		}

		bestCov := 0.0
		if pStar >= 0 {
			for _, s := range seqByHGroup[h.HGroup] {
				if s.Prob >= pStar-0.1 && s.Coverage > bestCov {
					bestCov = s.Coverage
				}
			}
		}

		h.BestSeqProb = pStar
		h.BestSeqCoverage = bestCov
		out[i] = h
	}
	return out
}
