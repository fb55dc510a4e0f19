package stages

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
	"github.com/dpam-project/dpam/internal/refdata"
)

// domassSentinelRank stands in for "no evidence of this kind": larger
// than any rank a real hit would accumulate (spec.md stage 15
// "rank=max").
const domassSentinelRank = 100.0

// domassSentinelTile is the "no evidence" tile value for the side
// missing a DALI hit (spec.md stage 15 "ztiles=10").
const domassSentinelTile = 10.0

// DomassRow is one stage-15 feature row: a (domain, uid) candidate with
// its 13 numeric features plus identifying metadata.
type DomassRow struct {
	DomainID    int
	UID         int64
	TGroup      string
	HHHitName   string
	DaliHitName string

	DomainLength    float64
	HelixCount      float64
	StrandCount     float64
	HHProb          float64
	HHCov           float64
	HHRank          float64
	DaliZScaled     float64
	DaliQ           float64
	DaliZTile       float64
	DaliQTile       float64
	DaliRankScaled  float64
	ConsensusDiff   float64
	ConsensusCov    float64
}

// Features returns the row's 13-wide feature vector in the fixed order
// consumed by the classifier (spec.md stage 15/16).
func (r DomassRow) Features() []float64 {
	return []float64{
		r.DomainLength, r.HelixCount, r.StrandCount,
		r.HHProb, r.HHCov, r.HHRank,
		r.DaliZScaled, r.DaliQ, r.DaliZTile, r.DaliQTile, r.DaliRankScaled,
		r.ConsensusDiff, r.ConsensusCov,
	}
}

// hhHitRank computes the incremental "average distinct H-groups seen so
// far" rank for sequence hits, mirroring stage 8's DALI rank but over
// descending HH probability instead of descending z (spec.md design
// note 3: "match stage 8's descending order").
func hhHitRank(seqHits []model.GoodDomain) map[int]float64 {
	sorted := append([]model.GoodDomain(nil), seqHits...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SeqHit.Prob > sorted[j].SeqHit.Prob })

	hGroupsSeenAt := make(map[int]map[string]bool)
	rank := make(map[int]float64, len(sorted))
	for idx, h := range sorted {
		rankSum := 0.0
		for _, r := range h.Residues {
			seen := hGroupsSeenAt[r]
			if seen == nil {
				seen = make(map[string]bool)
				hGroupsSeenAt[r] = seen
			}
			seen[h.HGroup] = true
			rankSum += float64(len(seen))
		}
		v := 0.0
		if len(h.Residues) > 0 {
			v = rankSum / float64(len(h.Residues))
		}
		rank[origIndex(seqHits, sorted, idx)] = v
	}
	return rank
}

// origIndex recovers sorted[idx]'s position in the original slice by
// identity of its SeqHit pointer; good domains carry no stable id
// of their own, so the SeqHit pointer (unique per row) serves as one.
func origIndex(orig, sorted []model.GoodDomain, idx int) int {
	target := sorted[idx].SeqHit
	for i, o := range orig {
		if o.SeqHit == target {
			return i
		}
	}
	return -1
}

func overlapQualifies(domain, hit []int) bool {
	n := ranges.Overlap(domain, hit)
	if n == 0 {
		return false
	}
	if len(domain) > 0 && float64(n)/float64(len(domain)) >= 0.5 {
		return true
	}
	if len(hit) > 0 && float64(n)/float64(len(hit)) >= 0.5 {
		return true
	}
	return false
}

// PrepareDomassFeatures implements stage 15: for each (domain, uid)
// candidate surfaced by a stage-10 good-domain hit overlapping the
// domain by >=50% w.r.t. either side, build the 13-feature row,
// filling the missing evidence side with sentinels when only one of
// HH/DALI supports that uid (spec.md stage 15).
//
// consensus_diff/consensus_cov are not pinned down numerically by the
// distilled description beyond their names; this implementation takes
// consensus_cov as the mean of the two coverage estimates (HH_cov,
// DALI_q) when both sides are present, and consensus_diff as their
// absolute difference, falling back to the single present side (with
// the counterpart treated as zero) when only one side has evidence.
func PrepareDomassFeatures(domains [][]int, sse []model.SSEResidue, goodDomains []model.GoodDomain, ref *refdata.Data) []DomassRow {
	var seqHits, structHits []model.GoodDomain
	for _, g := range goodDomains {
		switch g.Class {
		case model.ClassSequence:
			seqHits = append(seqHits, g)
		case model.ClassStructure:
			structHits = append(structHits, g)
		}
	}
	hhRank := hhHitRank(seqHits)

	sseByID := make(map[int][]model.SSEResidue)
	for _, r := range sse {
		if r.SSEID != 0 {
			sseByID[r.SSEID] = append(sseByID[r.SSEID], r)
		}
	}

	var rows []DomassRow
	for did, domain := range domains {
		domainSet := ranges.Set(domain)

		uids := make(map[int64]bool)
		seqByUID := make(map[int64]model.GoodDomain)
		structByUID := make(map[int64]model.GoodDomain)
		for i, h := range seqHits {
			if !overlapQualifies(domain, h.Residues) {
				continue
			}
			if cur, ok := seqByUID[h.UID]; !ok || h.SeqHit.Prob > cur.SeqHit.Prob {
				seqByUID[h.UID] = seqHits[i]
			}
			uids[h.UID] = true
		}
		for i, h := range structHits {
			if !overlapQualifies(domain, h.Residues) {
				continue
			}
			if cur, ok := structByUID[h.UID]; !ok || h.StructHit.Z > cur.StructHit.Z {
				structByUID[h.UID] = structHits[i]
			}
			uids[h.UID] = true
		}

		helixCount, strandCount := countSSE(sseByID, domainSet)
		domainLen := float64(len(domain))

		for uid := range uids {
			row := DomassRow{
				DomainID:     did + 1,
				UID:          uid,
				TGroup:       ref.Metadata[uid].TGroup,
				DomainLength: domainLen,
				HelixCount:   helixCount,
				StrandCount:  strandCount,
			}

			seqHit, hasHH := seqByUID[uid]
			structHit, hasDali := structByUID[uid]

			if hasHH {
				row.HHHitName = fmt.Sprintf("D%d_%d", did+1, uid)
				row.HHProb = seqHit.SeqHit.Prob
				row.HHCov = seqHit.SeqHit.Coverage
				row.HHRank = hhRank[indexOfSeqHit(seqHits, seqHit.SeqHit)]
			} else {
				row.HHRank = domassSentinelRank
			}

			if hasDali {
				row.DaliHitName = structHit.StructHit.HitName
				row.DaliZScaled = structHit.StructHit.Z / 10
				row.DaliQ = structHit.StructHit.Q
				row.DaliZTile = structHit.StructHit.ZTile
				row.DaliQTile = structHit.StructHit.QTile
				row.DaliRankScaled = structHit.StructHit.Rank / 10
			} else {
				row.DaliZTile = domassSentinelTile
				row.DaliQTile = domassSentinelTile
				row.DaliRankScaled = domassSentinelRank / 10
			}

			switch {
			case hasHH && hasDali:
				row.ConsensusCov = (row.HHCov + row.DaliQ) / 2
				row.ConsensusDiff = math.Abs(row.HHCov - row.DaliQ)
			case hasHH:
				row.ConsensusCov = row.HHCov
				row.ConsensusDiff = row.HHCov
			case hasDali:
				row.ConsensusCov = row.DaliQ
				row.ConsensusDiff = row.DaliQ
			}

			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].DomainID != rows[j].DomainID {
			return rows[i].DomainID < rows[j].DomainID
		}
		return rows[i].UID < rows[j].UID
	})
	return rows
}

func indexOfSeqHit(hits []model.GoodDomain, target *model.SequenceHit) int {
	for i, h := range hits {
		if h.SeqHit == target {
			return i
		}
	}
	return -1
}

func countSSE(sseByID map[int][]model.SSEResidue, domainSet map[int]bool) (helix, strand float64) {
	for _, seg := range sseByID {
		overlaps := false
		for _, r := range seg {
			if domainSet[r.Resid] {
				overlaps = true
				break
			}
		}
		if !overlaps {
			continue
		}
		switch seg[0].Type {
		case model.Helix:
			helix++
		case model.Strand:
			strand++
		}
	}
	return helix, strand
}

// WriteDomassFeatures emits stage 15's feature rows, one per line,
// identifying columns first, then the 13 features in fixed order
// (spec.md stage 15).
func WriteDomassFeatures(ctx *Context, rows []DomassRow) error {
	if err := ctx.Resolver.EnsureStageDir(model.PREPARE_DOMASS); err != nil {
		return fmt.Errorf("stage15: %w", err)
	}
	path := ctx.Resolver.StagePath(model.PREPARE_DOMASS, ctx.Prefix+".domass_features")
	return writeLines(path, func(w io.Writer) error {
		for _, r := range rows {
			f := r.Features()
			_, err := fmt.Fprintf(w, "D%d\t%d\t%s\t%s\t%s\t%s\n",
				r.DomainID, r.UID, r.TGroup, r.HHHitName, r.DaliHitName, formatFeatures(f))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func formatFeatures(f []float64) string {
	parts := make([]string, len(f))
	for i, v := range f {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, "\t")
}
