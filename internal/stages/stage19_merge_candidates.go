package stages

import (
	"fmt"
	"io"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
)

// MergeCandidate is one stage-19 accepted domain pair, carrying the uid
// whose mapping connects them.
type MergeCandidate struct {
	DomainA, DomainB int
	UID              int64
}

// weightedCoverage is the fraction of uid's reference position-weight
// mass covered by templateResidues (spec.md stage 19 "weighted
// template coverage using per-uid position weights (or uniform)").
func weightedCoverage(ref *refdata.Data, uid int64, templateResidues []int) float64 {
	weights, err := ref.PositionWeights(uid)
	if err != nil || len(weights) == 0 {
		return 0
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total == 0 {
		return 0
	}
	covered := 0.0
	seen := make(map[int]bool, len(templateResidues))
	for _, r := range templateResidues {
		if seen[r] {
			continue
		}
		seen[r] = true
		covered += weights[r]
	}
	return covered / total
}

// templateResiduesOf resolves a mapping's template residue set,
// preferring the DALI (structural) alignment over the HHsearch
// (sequence) one when both are present, rather than unioning them.
func templateResiduesOf(m ConfidentMapping) []int {
	if dali, _ := ranges.Parse(m.DaliRange); len(dali) > 0 {
		return dali
	}
	hh, _ := ranges.Parse(m.HHRange)
	return hh
}

// MergeCandidates implements stage 19. For every uid mapped on at
// least two distinct domains, every pair of those domains is tested:
// both predictions must sit within 0.1 of their domain's best
// confident probability, their mapped template-residue sets must
// overlap less than 25% on either side, and the pair's count of
// "supporting" uids (other uids jointly covered by the same two
// domains under the same two conditions) must exceed its count of
// "opposing" uids (confidently, highly covering >50% of the template,
// on at least one of the two domains, and not already counted as
// supporting) for at least one of the two domains (spec.md stage 19).
//
// The precise supporting/opposing bookkeeping is underspecified beyond
// this description; "high probability" for an opposing uid is read
// here as the same within-0.1-of-domain-best test used for the
// supporting side, applied per domain.
func MergeCandidates(confident []ConfidentPrediction, mappings []ConfidentMapping, ref *refdata.Data) []MergeCandidate {
	domainBest := make(map[int]float64)
	for _, c := range confident {
		if c.Prob > domainBest[c.DomainID] {
			domainBest[c.DomainID] = c.Prob
		}
	}

	type dUID struct {
		domain int
		uid    int64
	}
	probByDU := make(map[dUID]float64)
	for _, c := range confident {
		probByDU[dUID{c.DomainID, c.UID}] = c.Prob
	}

	mappingByDU := make(map[dUID]ConfidentMapping)
	for _, m := range mappings {
		mappingByDU[dUID{m.DomainID, m.UID}] = m
	}

	domainsForUID := make(map[int64]map[int]bool)
	for _, m := range mappings {
		if domainsForUID[m.UID] == nil {
			domainsForUID[m.UID] = make(map[int]bool)
		}
		domainsForUID[m.UID][m.DomainID] = true
	}

	withinBest := func(domain int, uid int64) bool {
		best, ok := domainBest[domain]
		if !ok {
			return false
		}
		p, ok := probByDU[dUID{domain, uid}]
		return ok && p >= best-0.1
	}

	lowOverlap := func(a, b ConfidentMapping) bool {
		ta, tb := templateResiduesOf(a), templateResiduesOf(b)
		n := ranges.Overlap(ta, tb)
		if len(ta) == 0 || len(tb) == 0 {
			return false
		}
		return float64(n)/float64(len(ta)) < 0.25 && float64(n)/float64(len(tb)) < 0.25
	}

	qualifies := func(d1, d2 int, uid int64) bool {
		if !withinBest(d1, uid) || !withinBest(d2, uid) {
			return false
		}
		m1, ok1 := mappingByDU[dUID{d1, uid}]
		m2, ok2 := mappingByDU[dUID{d2, uid}]
		if !ok1 || !ok2 {
			return false
		}
		return lowOverlap(m1, m2)
	}

	var out []MergeCandidate
	seenPair := make(map[[3]int64]bool)
	for uid, domains := range domainsForUID {
		if len(domains) < 2 {
			continue
		}
		var ds []int
		for d := range domains {
			ds = append(ds, d)
		}
		sort.Ints(ds)
		for i := 0; i < len(ds); i++ {
			for j := i + 1; j < len(ds); j++ {
				d1, d2 := ds[i], ds[j]
				if !qualifies(d1, d2, uid) {
					continue
				}

				supporting := 0
				opposingD1, opposingD2 := 0, 0
				for otherUID := range domainsForUID {
					if otherUID == uid {
						continue
					}
					if domainsForUID[otherUID][d1] && domainsForUID[otherUID][d2] && qualifies(d1, d2, otherUID) {
						supporting++
						continue
					}
					if withinBest(d1, otherUID) {
						if mm, ok := mappingByDU[dUID{d1, otherUID}]; ok {
							if weightedCoverage(ref, otherUID, templateResiduesOf(mm)) > 0.5 {
								opposingD1++
							}
						}
					}
					if withinBest(d2, otherUID) {
						if mm, ok := mappingByDU[dUID{d2, otherUID}]; ok {
							if weightedCoverage(ref, otherUID, templateResiduesOf(mm)) > 0.5 {
								opposingD2++
							}
						}
					}
				}

				if supporting > opposingD1 || supporting > opposingD2 {
					key := [3]int64{int64(d1), int64(d2), uid}
					if !seenPair[key] {
						seenPair[key] = true
						out = append(out, MergeCandidate{DomainA: d1, DomainB: d2, UID: uid})
					}
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DomainA != out[j].DomainA {
			return out[i].DomainA < out[j].DomainA
		}
		if out[i].DomainB != out[j].DomainB {
			return out[i].DomainB < out[j].DomainB
		}
		return out[i].UID < out[j].UID
	})
	return out
}

// WriteMergeCandidates emits stage 19's primary output.
func WriteMergeCandidates(ctx *Context, candidates []MergeCandidate) error {
	if err := ctx.Resolver.EnsureStageDir(model.MERGE_CANDIDATES); err != nil {
		return fmt.Errorf("stage19: %w", err)
	}
	path := ctx.Resolver.StagePath(model.MERGE_CANDIDATES, ctx.Prefix+".merge_candidates")
	return writeLines(path, func(w io.Writer) error {
		for _, c := range candidates {
			_, err := fmt.Fprintf(w, "D%d\tD%d\t%d\n", c.DomainA, c.DomainB, c.UID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
