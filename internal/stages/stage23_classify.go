package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
)

// ClassLabel is stage 23's per-entity classification.
type ClassLabel string

const (
	ClassFull ClassLabel = "full"
	ClassPart ClassLabel = "part"
	ClassMiss ClassLabel = "miss"
)

// Classification is one stage-23 output row.
type Classification struct {
	EntityID       string // "D{n}" for a lone domain, "M{n}" for a merged entity
	DomainIDs      []int
	UID            int64
	Prob           float64
	WeightedRatio  float64
	LengthRatio    float64
	Label          ClassLabel
}

// classifyEntity wraps a merged component, or a lone, unmerged domain
// as a one-member entity, so both share stage 23's code path.
type classifyEntity struct {
	id        string
	domainIDs []int
	residues  []int
}

// ClassifyEntities implements stage 23: for each final entity (a
// merged component or an unmerged stage-13 domain), gather its
// classifier predictions across participating domains, reconstruct
// per-uid template coverage (DALI side if it covers >50% of the HH
// side, else HH), compute weighted_ratio and length_ratio, and label
// full/part/miss, preferring the best label and emitting at most one
// row per entity (spec.md stage 23).
func ClassifyEntities(domains [][]int, merged []MergedEntity, preds []DomassPrediction, mappings []ConfidentMapping, ref *refdata.Data) []Classification {
	inMerge := make(map[int]bool)
	for _, m := range merged {
		for _, d := range m.DomainIDs {
			inMerge[d] = true
		}
	}

	var entities []classifyEntity
	for i, m := range merged {
		entities = append(entities, classifyEntity{id: fmt.Sprintf("M%d", i+1), domainIDs: m.DomainIDs, residues: m.Residues})
	}
	for d := range domains {
		id := d + 1
		if inMerge[id] {
			continue
		}
		entities = append(entities, classifyEntity{id: fmt.Sprintf("D%d", id), domainIDs: []int{id}, residues: domains[d]})
	}

	mappingByDU := make(map[[2]int64]ConfidentMapping)
	for _, m := range mappings {
		mappingByDU[[2]int64{int64(m.DomainID), m.UID}] = m
	}
	predByDU := make(map[[2]int64]float64)
	for _, p := range preds {
		k := [2]int64{int64(p.Row.DomainID), p.Row.UID}
		if p.Prob > predByDU[k] {
			predByDU[k] = p.Prob
		}
	}

	var out []Classification
	for _, e := range entities {
		type templateCandidate struct {
			uid           int64
			prob          float64
			templateRange []int
		}
		byUID := make(map[int64]templateCandidate)
		for _, domainID := range e.domainIDs {
			for k, prob := range predByDU {
				if k[0] != int64(domainID) {
					continue
				}
				uid := k[1]
				mapping, ok := mappingByDU[[2]int64{int64(domainID), uid}]
				if !ok {
					continue
				}
				tr := bestTemplateRange(mapping)
				cur, exists := byUID[uid]
				if !exists || prob > cur.prob {
					byUID[uid] = templateCandidate{uid: uid, prob: prob, templateRange: tr}
				}
			}
		}
		if len(byUID) == 0 {
			continue
		}

		var candidates []templateCandidate
		for _, c := range byUID {
			candidates = append(candidates, c)
		}
		domainLength := float64(len(e.residues))
		sort.SliceStable(candidates, func(i, j int) bool {
			if len(e.domainIDs) > 1 {
				return candidates[i].prob*domainLength > candidates[j].prob*domainLength
			}
			return candidates[i].prob > candidates[j].prob
		})

		var best *Classification
		for _, c := range candidates {
			weightedRatio := weightedCoverage(ref, c.uid, c.templateRange)
			avgLen := ref.TGroupLength[ref.Metadata[c.uid].TGroup]
			lengthRatio := 0.0
			if avgLen > 0 {
				lengthRatio = domainLength / avgLen
			}

			label := classifyLabel(c.prob, weightedRatio, lengthRatio)
			row := Classification{
				EntityID:      e.id,
				DomainIDs:     e.domainIDs,
				UID:           c.uid,
				Prob:          c.prob,
				WeightedRatio: weightedRatio,
				LengthRatio:   lengthRatio,
				Label:         label,
			}
			if best == nil || labelRank(row.Label) > labelRank(best.Label) {
				r := row
				best = &r
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func bestTemplateRange(m ConfidentMapping) []int {
	hh, _ := ranges.Parse(m.HHRange)
	dali, _ := ranges.Parse(m.DaliRange)
	if len(hh) == 0 {
		return dali
	}
	if len(dali) == 0 {
		return hh
	}
	if float64(ranges.Overlap(dali, hh))/float64(len(hh)) > 0.5 {
		return dali
	}
	return hh
}

func classifyLabel(prob, weightedRatio, lengthRatio float64) ClassLabel {
	if prob >= 0.85 {
		if (weightedRatio >= 0.66 || lengthRatio >= 0.66) && weightedRatio >= 0.33 && lengthRatio >= 0.33 {
			return ClassFull
		}
		if weightedRatio >= 0.33 || lengthRatio >= 0.33 {
			return ClassPart
		}
	}
	return ClassMiss
}

func labelRank(l ClassLabel) int {
	switch l {
	case ClassFull:
		return 2
	case ClassPart:
		return 1
	default:
		return 0
	}
}

// WriteClassifications emits stage 23's primary output.
func WriteClassifications(ctx *Context, rows []Classification) error {
	if err := ctx.Resolver.EnsureStageDir(model.CLASSIFY); err != nil {
		return fmt.Errorf("stage23: %w", err)
	}
	path := ctx.Resolver.StagePath(model.CLASSIFY, ctx.Prefix+".predictions")
	return writeLines(path, func(w io.Writer) error {
		for _, r := range rows {
			_, err := fmt.Fprintf(w, "%s\t%d\t%g\t%g\t%g\t%s\n",
				r.EntityID, r.UID, r.Prob, r.WeightedRatio, r.LengthRatio, r.Label)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
