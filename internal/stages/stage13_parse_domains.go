package stages

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
)

// Bin-lookup tables for the four evidence probabilities (spec.md
// stage 13 "Probability matrix"). Ascending tables return the value at
// the first threshold the observation does not exceed; descending
// tables return the value at the first threshold the observation
// meets or exceeds, falling through to the final "else" value.
var (
	distThresholds = []float64{3, 6, 9, 12, 15, 18, 21, 24, 27, 30, 35, 40, 45, 50, 55, 60, 70, 80, 120, 160, 200, math.Inf(1)}
	distValues     = []float64{0.95, 0.94, 0.93, 0.91, 0.89, 0.85, 0.81, 0.77, 0.71, 0.66, 0.58, 0.48, 0.40, 0.33, 0.28, 0.24, 0.22, 0.20, 0.19, 0.15, 0.10, 0.06}

	paeThresholds = []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 14, 16, 18, 20, 22, 24, 26, 28, math.Inf(1)}
	paeValues     = []float64{0.97, 0.89, 0.77, 0.67, 0.61, 0.57, 0.54, 0.52, 0.50, 0.48, 0.47, 0.45, 0.44, 0.42, 0.41, 0.39, 0.37, 0.32, 0.25, 0.16, 0.11}

	hhsThresholds = []float64{180, 160, 140, 120, 110, 100, 50}
	hhsValues     = []float64{0.98, 0.94, 0.92, 0.88, 0.87, 0.81, 0.76, 0.50}

	daliThresholds = []float64{35, 25, 20, 18, 16, 14, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	daliValues     = []float64{0.95, 0.94, 0.93, 0.90, 0.87, 0.85, 0.80, 0.77, 0.74, 0.71, 0.68, 0.63, 0.60, 0.57, 0.54, 0.53, 0.52, 0.50}
)

func binAscending(v float64, thresholds, values []float64) float64 {
	for i, t := range thresholds {
		if v <= t {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func binDescending(v float64, thresholds, values []float64) float64 {
	for i, t := range thresholds {
		if v >= t {
			return values[i]
		}
	}
	return values[len(values)-1]
}

// GetPDBProb is the distance bin lookup (spec.md §8 boundary case:
// GetPDBProb(3.0)=0.95, GetPDBProb(3.0001)=0.94).
func GetPDBProb(d float64) float64 { return binAscending(d, distThresholds, distValues) }

// GetPAEProb is the PAE bin lookup (spec.md §8: GetPAEProb(1.0)=0.97,
// GetPAEProb(1.0001)=0.89).
func GetPAEProb(p float64) float64 { return binAscending(p, paeThresholds, paeValues) }

func getHHSProb(v float64) float64  { return binDescending(v, hhsThresholds, hhsValues) }
func getDaliProb(v float64) float64 { return binDescending(v, daliThresholds, daliValues) }

type pairKey struct{ I, J int }

// collectEvidence gathers, for every residue pair drawn from a stage-10
// good domain's own residue range, the HH probability (sequence hits)
// or DALI z (structure hits) contributed by that hit (spec.md stage 13
// "Aggregation").
func collectEvidence(domains []model.GoodDomain) (hh, dali map[pairKey][]float64) {
	hh = make(map[pairKey][]float64)
	dali = make(map[pairKey][]float64)
	for _, d := range domains {
		res := append([]int(nil), d.Residues...)
		sort.Ints(res)
		for a := 0; a < len(res); a++ {
			for b := a + 1; b < len(res); b++ {
				key := pairKey{res[a], res[b]}
				switch d.Class {
				case model.ClassSequence:
					if d.SeqHit != nil {
						hh[key] = append(hh[key], d.SeqHit.Prob)
					}
				case model.ClassStructure:
					if d.StructHit != nil {
						dali[key] = append(dali[key], d.StructHit.Z)
					}
				}
			}
		}
	}
	return hh, dali
}

// collapseHH and collapseDali implement spec.md stage 13's aggregation
// collapse rules, including the written-back defaults (HH=20, DALI=1)
// for pairs with no evidence of that kind.
func collapseHH(vals []float64) float64 {
	if len(vals) == 0 {
		return 20
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	n := len(vals)
	if n <= 10 {
		return m + 10*float64(n) - 10
	}
	return m + 100
}

func collapseDali(vals []float64) float64 {
	if len(vals) == 0 {
		return 1
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	n := len(vals)
	if n <= 5 {
		return m + float64(n) - 1
	}
	return m + 5
}

// combinedProbability computes p(i,j) = (p_dist*p_pae*p_hhs*p_dali)^(1/4)
// for every ordered pair i<j that has both coordinates and a PAE
// entry (spec.md stage 13 "Combined probability").
func combinedProbability(s *model.Structure, pae *model.PAE, hh, dali map[pairKey][]float64) map[pairKey]float64 {
	prob := make(map[pairKey]float64)
	ids := make([]int, len(s.Residues))
	for i, r := range s.Residues {
		ids[i] = r.ID
	}
	for a := 0; a < len(ids); a++ {
		for b := a + 1; b < len(ids); b++ {
			i, j := ids[a], ids[b]
			if i > pae.N || j > pae.N {
				continue
			}
			paeVal, ok := pae.Get(i, j)
			if !ok {
				continue
			}
			d, ok := minDistance(s, i, j)
			if !ok {
				continue
			}
			key := pairKey{i, j}
			hhVal := collapseHH(hh[key])
			daliVal := collapseDali(dali[key])
			pDist := GetPDBProb(d)
			pPae := GetPAEProb(paeVal)
			pHHs := getHHSProb(hhVal)
			pDali := getDaliProb(daliVal)
			prob[key] = math.Pow(pDist*pPae*pHHs*pDali, 0.25)
		}
	}
	return prob
}

func minDistance(s *model.Structure, i, j int) (float64, bool) {
	ai, bi := s.ByID(i), s.ByID(j)
	if len(ai) == 0 || len(bi) == 0 {
		return 0, false
	}
	best := math.Inf(1)
	for _, a := range ai {
		for _, b := range bi {
			dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if d < best {
				best = d
			}
		}
	}
	return best, true
}

// chunk is one initial 5-residue segmentation unit.
type chunk struct {
	residues []int
}

// initialChunks implements spec.md stage 13's initial segmentation:
// 5-residue windows starting at 1, keeping the disorder-free residues
// in each, dropping chunks with <3 residues.
func initialChunks(length int, disordered map[int]bool) []chunk {
	var chunks []chunk
	for start := 1; start <= length; start += 5 {
		end := start + 4
		if end > length {
			end = length
		}
		var res []int
		for r := start; r <= end; r++ {
			if !disordered[r] {
				res = append(res, r)
			}
		}
		if len(res) >= 3 {
			chunks = append(chunks, chunk{residues: res})
		}
	}
	return chunks
}

type chunkPair struct {
	i, j  int
	mu    float64
	count int
}

// clusterState tracks one growing cluster's member chunks and the
// running weighted intra-cluster mean used by the merge tests.
type clusterState struct {
	chunks    map[int]bool
	pairSum   float64
	pairCount int
}

func (c *clusterState) intraMean() float64 {
	if c.pairCount == 0 {
		return 0
	}
	return c.pairSum / float64(c.pairCount)
}

// ParseDomains implements stage 13, the algorithmic centrepiece: builds
// the pairwise combined-probability matrix, segments the sequence into
// 5-residue chunks, clusters chunks by betwen-chunk mean probability
// with the 1.1-biased comparator, fills small gaps, then removes
// cross-domain overlap (spec.md stage 13).
//
// The exact bookkeeping for "intra-cluster residue-pair counts" is
// resolved here as the running weighted mean of all chunk-pair means
// absorbed into a cluster so far, weighted by each absorbed pair's
// residue-pair count; this is the natural reading of "pre-tabulated
// sums" that keeps the ≤20 / 1.1x tests well-defined as clusters grow.
func ParseDomains(s *model.Structure, pae *model.PAE, disordered map[int]bool, goodDomains []model.GoodDomain) [][]int {
	hh, dali := collectEvidence(goodDomains)
	prob := combinedProbability(s, pae, hh, dali)

	chunks := initialChunks(s.Length(), disordered)
	if len(chunks) == 0 {
		return nil
	}

	var pairs []chunkPair
	for i := 0; i < len(chunks); i++ {
		for j := i + 1; j < len(chunks); j++ {
			sum, count := 0.0, 0
			for _, ri := range chunks[i].residues {
				for _, rj := range chunks[j].residues {
					lo, hi := ri, rj
					if lo > hi {
						lo, hi = hi, lo
					}
					p, ok := prob[pairKey{lo, hi}]
					if !ok {
						continue
					}
					sum += p
					count++
				}
			}
			if count == 0 {
				continue
			}
			mu := sum / float64(count)
			if mu > 0.64 {
				pairs = append(pairs, chunkPair{i: i, j: j, mu: mu, count: count})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].mu > pairs[b].mu })

	clusterOf := make(map[int]int) // chunk index -> cluster id
	clusters := make(map[int]*clusterState)
	nextClusterID := 0

	for _, p := range pairs {
		ci, oki := clusterOf[p.i]
		cj, okj := clusterOf[p.j]
		switch {
		case oki && okj && ci == cj:
			// no-op
		case oki && okj:
			a, b := clusters[ci], clusters[cj]
			if a.pairCount <= 20 || b.pairCount <= 20 ||
				p.mu*1.1 >= a.intraMean() || p.mu*1.1 >= b.intraMean() {
				mergeClusters(clusterOf, clusters, ci, cj, p)
			}
		case oki:
			a := clusters[ci]
			if a.pairCount <= 20 || p.mu*1.1 >= a.intraMean() {
				a.chunks[p.j] = true
				clusterOf[p.j] = ci
				a.pairSum += p.mu * float64(p.count)
				a.pairCount += p.count
			}
		case okj:
			b := clusters[cj]
			if b.pairCount <= 20 || p.mu*1.1 >= b.intraMean() {
				b.chunks[p.i] = true
				clusterOf[p.i] = cj
				b.pairSum += p.mu * float64(p.count)
				b.pairCount += p.count
			}
		default:
			id := nextClusterID
			nextClusterID++
			clusters[id] = &clusterState{
				chunks:    map[int]bool{p.i: true, p.j: true},
				pairSum:   p.mu * float64(p.count),
				pairCount: p.count,
			}
			clusterOf[p.i] = id
			clusterOf[p.j] = id
		}
	}

	var domains [][]int
	for _, c := range clusters {
		var residues []int
		for idx := range c.chunks {
			residues = append(residues, chunks[idx].residues...)
		}
		if len(residues) < 20 {
			continue
		}
		sort.Ints(residues)
		domains = append(domains, residues)
	}
	sort.SliceStable(domains, func(a, b int) bool { return mean(domains[a]) < mean(domains[b]) })

	domains = fillGaps(domains)
	domains = removeOverlap(domains)
	return domains
}

func mergeClusters(clusterOf map[int]int, clusters map[int]*clusterState, ci, cj int, p chunkPair) {
	a, b := clusters[ci], clusters[cj]
	for idx := range b.chunks {
		a.chunks[idx] = true
		clusterOf[idx] = ci
	}
	a.pairSum += b.pairSum + p.mu*float64(p.count)
	a.pairCount += b.pairCount + p.count
	delete(clusters, cj)
}

// fillGaps implements the v0->v1 gap-filling rule: within each domain,
// fill an inter-run gap iff |gap|<=10, or |gap|<=20 and the gap
// intersects <=10 residues belonging to other domains (spec.md stage
// 13 "Gap filling").
func fillGaps(domains [][]int) [][]int {
	others := make([]map[int]bool, len(domains))
	for i := range domains {
		others[i] = make(map[int]bool)
		for j, d := range domains {
			if i == j {
				continue
			}
			for _, r := range d {
				others[i][r] = true
			}
		}
	}
	out := make([][]int, len(domains))
	for i, d := range domains {
		runs := maximalRuns(d)
		filled := append([]int(nil), d...)
		for k := 0; k+1 < len(runs); k++ {
			gapStart := runs[k][len(runs[k])-1] + 1
			gapEnd := runs[k+1][0] - 1
			if gapEnd < gapStart {
				continue
			}
			gapLen := gapEnd - gapStart + 1
			if gapLen <= 10 {
				filled = append(filled, fillRange(gapStart, gapEnd)...)
				continue
			}
			if gapLen <= 20 {
				overlap := 0
				for r := gapStart; r <= gapEnd; r++ {
					if others[i][r] {
						overlap++
					}
				}
				if overlap <= 10 {
					filled = append(filled, fillRange(gapStart, gapEnd)...)
				}
			}
		}
		sort.Ints(filled)
		out[i] = filled
	}
	return out
}

func fillRange(a, b int) []int {
	out := make([]int, 0, b-a+1)
	for r := a; r <= b; r++ {
		out = append(out, r)
	}
	return out
}

// removeOverlap implements the v1->v2 filter: split into maximal runs,
// keep a run only if it has >=10 residues unique to this domain
// (keeping the entire run when kept), discard domains under 25
// residues afterwards (spec.md stage 13 "Overlap removal").
func removeOverlap(domains [][]int) [][]int {
	owner := make(map[int][]int) // residue -> domain indices holding it
	for i, d := range domains {
		for _, r := range d {
			owner[r] = append(owner[r], i)
		}
	}
	var out [][]int
	for i, d := range domains {
		var kept []int
		for _, run := range maximalRuns(d) {
			unique := 0
			for _, r := range run {
				if len(owner[r]) == 1 {
					unique++
				}
			}
			if unique >= 10 {
				kept = append(kept, run...)
			}
		}
		if len(kept) < 25 {
			continue
		}
		out = append(out, kept)
	}
	return out
}

// WriteDomains emits stage 13's output to both the stage directory and
// results/, ordered D1..Dn by ascending residue mean (spec.md stage 13
// "Output").
func WriteDomains(ctx *Context, domains [][]int) error {
	if err := ctx.Resolver.EnsureStageDir(model.PARSE_DOMAINS); err != nil {
		return fmt.Errorf("stage13: %w", err)
	}
	if err := ctx.Resolver.EnsureResultsDir(); err != nil {
		return fmt.Errorf("stage13: %w", err)
	}
	write := func(path string) error {
		return writeLines(path, func(w io.Writer) error {
			for i, d := range domains {
				_, err := fmt.Fprintf(w, "D%d\t%s\n", i+1, ranges.Emit(d))
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	stagePath := ctx.Resolver.StagePath(model.PARSE_DOMAINS, ctx.Prefix+".step13_domains")
	if err := write(stagePath); err != nil {
		return err
	}
	resultsPath := filepath.Join(ctx.Resolver.ResultsDir(), ctx.Prefix+".step13_domains")
	return write(resultsPath)
}
