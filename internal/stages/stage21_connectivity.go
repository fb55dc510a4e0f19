package stages

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pdbio"
)

// ConnectivityJudgement is stage 21's per-pair verdict.
type ConnectivityJudgement int

const (
	Reject              ConnectivityJudgement = 0
	SequenceConnected   ConnectivityJudgement = 1
	StructureConnected  ConnectivityJudgement = 2
)

// ConnectivityResult is one judged stage-19 candidate pair.
type ConnectivityResult struct {
	DomainA, DomainB int
	UID              int64
	Judgement        ConnectivityJudgement
}

// JudgeConnectivity implements stage 21: sequence-connected (1) if some
// structured residue of A and of B sit within 5 of each other in the
// ordered list of all structured residues in the protein; else
// structure-connected (2) if >=9 residue pairs have min-atom distance
// <=8A; else reject (0) (spec.md stage 21).
func JudgeConnectivity(atoms []pdbio.AtomRecord, domains [][]int, candidates []MergeCandidate, structuredResidues []int) []ConnectivityResult {
	orderOf := make(map[int]int, len(structuredResidues))
	sorted := append([]int(nil), structuredResidues...)
	sort.Ints(sorted)
	for i, r := range sorted {
		orderOf[r] = i
	}

	atomsByResidue := make(map[int][]pdbio.AtomRecord)
	for _, a := range atoms {
		atomsByResidue[a.ResSeq] = append(atomsByResidue[a.ResSeq], a)
	}

	var out []ConnectivityResult
	for _, c := range candidates {
		if c.DomainA < 1 || c.DomainA > len(domains) || c.DomainB < 1 || c.DomainB > len(domains) {
			continue
		}
		a := domains[c.DomainA-1]
		b := domains[c.DomainB-1]

		judgement := Reject
		if sequenceConnected(a, b, orderOf) {
			judgement = SequenceConnected
		} else if structureConnected(a, b, atomsByResidue) {
			judgement = StructureConnected
		}
		out = append(out, ConnectivityResult{DomainA: c.DomainA, DomainB: c.DomainB, UID: c.UID, Judgement: judgement})
	}
	return out
}

func sequenceConnected(a, b []int, orderOf map[int]int) bool {
	var ao, bo []int
	for _, r := range a {
		if o, ok := orderOf[r]; ok {
			ao = append(ao, o)
		}
	}
	for _, r := range b {
		if o, ok := orderOf[r]; ok {
			bo = append(bo, o)
		}
	}
	for _, x := range ao {
		for _, y := range bo {
			d := x - y
			if d < 0 {
				d = -d
			}
			if d <= 5 {
				return true
			}
		}
	}
	return false
}

func structureConnected(a, b []int, atomsByResidue map[int][]pdbio.AtomRecord) bool {
	count := 0
	for _, ra := range a {
		for _, rb := range b {
			if minAtomDistance(atomsByResidue[ra], atomsByResidue[rb]) <= 8 {
				count++
				if count >= 9 {
					return true
				}
			}
		}
	}
	return false
}

func minAtomDistance(a, b []pdbio.AtomRecord) float64 {
	best := -1.0
	for _, x := range a {
		for _, y := range b {
			dx, dy, dz := x.X-y.X, x.Y-y.Y, x.Z-y.Z
			d2 := dx*dx + dy*dy + dz*dz
			if best < 0 || d2 < best {
				best = d2
			}
		}
	}
	if best < 0 {
		return 1e9
	}
	return math.Sqrt(best)
}

// WriteConnectivity emits stage 21's primary output.
func WriteConnectivity(ctx *Context, results []ConnectivityResult) error {
	if err := ctx.Resolver.EnsureStageDir(model.CONNECTIVITY); err != nil {
		return fmt.Errorf("stage21: %w", err)
	}
	path := ctx.Resolver.StagePath(model.CONNECTIVITY, ctx.Prefix+".comparisons")
	return writeLines(path, func(w io.Writer) error {
		for _, r := range results {
			_, err := fmt.Fprintf(w, "D%d\tD%d\t%d\t%d\n", r.DomainA, r.DomainB, r.UID, r.Judgement)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadConnectivity parses a .comparisons file written by
// WriteConnectivity back into its judged candidate pairs, for tooling
// that inspects a finished run's stage 21 output (dpam mergegraph).
func ReadConnectivity(path string) ([]ConnectivityResult, error) {
	var out []ConnectivityResult
	err := forEachTabLine(path, func(fields []string) error {
		if len(fields) != 4 {
			return fmt.Errorf("comparisons line has %d fields, want 4", len(fields))
		}
		a, err := strconv.Atoi(strings.TrimPrefix(fields[0], "D"))
		if err != nil {
			return fmt.Errorf("domain A: %w", err)
		}
		b, err := strconv.Atoi(strings.TrimPrefix(fields[1], "D"))
		if err != nil {
			return fmt.Errorf("domain B: %w", err)
		}
		uid, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("uid: %w", err)
		}
		judgement, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("judgement: %w", err)
		}
		out = append(out, ConnectivityResult{DomainA: a, DomainB: b, UID: uid, Judgement: ConnectivityJudgement(judgement)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stage21: read connectivity: %w", err)
	}
	return out, nil
}
