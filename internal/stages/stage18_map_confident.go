package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
)

// ConfidentMapping is one stage-18 output row: the template residue
// range a confident (domain, uid) prediction maps onto, separately
// from the HH and DALI sides (either may be empty/"na").
type ConfidentMapping struct {
	DomainID  int
	UID       int64
	HHRange   string
	DaliRange string
}

// alignmentPairs reconstructs (query, template) alignment columns from
// a hit's already-collapsed range strings. Both ranges were built from
// monotonically increasing position lists of equal length (spec.md
// stage 5/8), so zipping their ascending residue order recovers the
// original column correspondence; this is an approximation forced by
// the hit types carrying ranges rather than raw column lists, noted
// here rather than silently assumed.
func alignmentPairs(queryRange, templateRange string) ([]int, []int) {
	q, _ := ranges.Parse(queryRange)
	t, _ := ranges.Parse(templateRange)
	n := len(q)
	if len(t) < n {
		n = len(t)
	}
	return q[:n], t[:n]
}

// mapToTemplate projects an alignment onto domain (keeping only
// columns whose query residue lies in domain) and returns the mapped
// template residues, translated through ecodMap when non-nil (spec.md
// stage 18).
func mapToTemplate(domainSet map[int]bool, queryRange, templateRange string, ecodMap map[int]int) []int {
	q, t := alignmentPairs(queryRange, templateRange)
	var out []int
	for i, qr := range q {
		if !domainSet[qr] {
			continue
		}
		tr := t[i]
		if ecodMap != nil {
			mapped, ok := ecodMap[tr]
			if !ok {
				continue
			}
			tr = mapped
		}
		out = append(out, tr)
	}
	return out
}

// MapConfidentPredictions implements stage 18: for each confident
// (domain, uid), find the overlapping stage-5 HH hit and stage-8 DALI
// hit using the stricter overlap rule (>=33% of the domain AND (>=50%
// of the domain OR >=50% of the hit)), project each onto the domain,
// and translate the HH side through the ECOD map (the DALI side is
// already in ECOD numbering) (spec.md stage 18).
func MapConfidentPredictions(confident []ConfidentPrediction, domains [][]int, seqHits []model.SequenceHit, structHits []model.StructureHit, ref *refdata.Data) []ConfidentMapping {
	var out []ConfidentMapping
	for _, c := range confident {
		if c.DomainID < 1 || c.DomainID > len(domains) {
			continue
		}
		domain := domains[c.DomainID-1]
		domainSet := ranges.Set(domain)

		var hhRes []int
		for _, h := range seqHits {
			if h.UID != c.UID {
				continue
			}
			if !strictOverlapQualifies(domain, h.QueryRange) {
				continue
			}
			ecodMap, err := ref.ECODMap(c.UID)
			if err != nil {
				continue
			}
			hhRes = append(hhRes, mapToTemplate(domainSet, h.QueryRange, h.TemplateRange, ecodMap)...)
		}

		var daliRes []int
		for _, h := range structHits {
			if h.UID != c.UID {
				continue
			}
			if !strictOverlapQualifies(domain, h.QueryRange) {
				continue
			}
			daliRes = append(daliRes, mapToTemplate(domainSet, h.QueryRange, h.TemplateRange, nil)...)
		}

		hhRange := "na"
		if len(hhRes) > 0 {
			sort.Ints(hhRes)
			hhRange = ranges.Emit(hhRes)
		}
		daliRange := "na"
		if len(daliRes) > 0 {
			sort.Ints(daliRes)
			daliRange = ranges.Emit(daliRes)
		}
		if hhRange == "na" && daliRange == "na" {
			continue
		}
		out = append(out, ConfidentMapping{DomainID: c.DomainID, UID: c.UID, HHRange: hhRange, DaliRange: daliRange})
	}
	return out
}

func strictOverlapQualifies(domain []int, hitRangeStr string) bool {
	hit, _ := ranges.Parse(hitRangeStr)
	n := ranges.Overlap(domain, hit)
	if n == 0 || len(domain) == 0 {
		return false
	}
	fracDomain := float64(n) / float64(len(domain))
	if fracDomain < 0.33 {
		return false
	}
	if fracDomain >= 0.5 {
		return true
	}
	return len(hit) > 0 && float64(n)/float64(len(hit)) >= 0.5
}

// WriteConfidentMappings emits stage 18's primary output.
func WriteConfidentMappings(ctx *Context, mappings []ConfidentMapping) error {
	if err := ctx.Resolver.EnsureStageDir(model.MAP_CONFIDENT); err != nil {
		return fmt.Errorf("stage18: %w", err)
	}
	path := ctx.Resolver.StagePath(model.MAP_CONFIDENT, ctx.Prefix+".mappings")
	return writeLines(path, func(w io.Writer) error {
		for _, m := range mappings {
			_, err := fmt.Fprintf(w, "D%d\t%d\t%s\t%s\n", m.DomainID, m.UID, m.HHRange, m.DaliRange)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
