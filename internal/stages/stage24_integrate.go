package stages

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/ranges"
)

// RefinedLabel is stage 24's final per-entity quality label.
type RefinedLabel string

const (
	GoodDomain     RefinedLabel = "good_domain"
	PartialDomain  RefinedLabel = "partial_domain"
	LowConfidence  RefinedLabel = "low_confidence"
	SimpleTopology RefinedLabel = "simple_topology"
)

// FinalDomain is one row of the final finalDPAM.domains output.
type FinalDomain struct {
	ID         string // "nD1".."nDn"
	Residues   []int
	Range      string
	UID        int64
	Label      RefinedLabel
	Classification ClassLabel
}

// IntegrateFinalDomains implements stage 24: count kept SSEs per final
// entity, refine each classification into a quality label per the
// branching table, sort survivors by ascending mean residue, and
// renumber nD1..nDn (spec.md stage 24).
func IntegrateFinalDomains(classifications []Classification, domains [][]int, merged []MergedEntity, sse []model.SSEResidue) []FinalDomain {
	residuesOf := make(map[string][]int)
	for i, m := range merged {
		residuesOf[fmt.Sprintf("M%d", i+1)] = m.Residues
	}
	for d := range domains {
		residuesOf[fmt.Sprintf("D%d", d+1)] = domains[d]
	}

	type scored struct {
		residues []int
		uid      int64
		label    RefinedLabel
		class    ClassLabel
	}
	var rows []scored
	for _, c := range classifications {
		residues, ok := residuesOf[c.EntityID]
		if !ok {
			continue
		}
		sseCount := countKeptSSEOverlapping(sse, residues)
		rows = append(rows, scored{
			residues: residues,
			uid:      c.UID,
			class:    c.Label,
			label:    refineLabel(c.Label, sseCount, c.Prob, c.WeightedRatio, c.LengthRatio),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return mean(rows[i].residues) < mean(rows[j].residues) })

	out := make([]FinalDomain, len(rows))
	for i, r := range rows {
		out[i] = FinalDomain{
			ID:             fmt.Sprintf("nD%d", i+1),
			Residues:       r.residues,
			Range:          ranges.Emit(r.residues),
			UID:            r.uid,
			Label:          r.label,
			Classification: r.class,
		}
	}
	return out
}

func countKeptSSEOverlapping(sse []model.SSEResidue, residues []int) int {
	residueSet := ranges.Set(residues)
	bySegment := make(map[int][]model.SSEResidue)
	for _, r := range sse {
		if r.SSEID != 0 {
			bySegment[r.SSEID] = append(bySegment[r.SSEID], r)
		}
	}
	count := 0
	for _, seg := range bySegment {
		for _, r := range seg {
			if residueSet[r.Resid] {
				count++
				break
			}
		}
	}
	return count
}

// refineLabel implements stage 24's branching table (spec.md stage 24).
func refineLabel(class ClassLabel, sseCount int, prob, weightedRatio, lengthRatio float64) RefinedLabel {
	highQuality := prob >= 0.95 && weightedRatio >= 0.8 && lengthRatio >= 0.8
	switch class {
	case ClassFull:
		if sseCount >= 3 {
			return GoodDomain
		}
		if highQuality {
			return GoodDomain
		}
		return SimpleTopology
	case ClassPart:
		if sseCount >= 3 {
			return PartialDomain
		}
		if highQuality {
			return PartialDomain
		}
		return SimpleTopology
	default: // miss
		if sseCount >= 3 {
			return LowConfidence
		}
		return SimpleTopology
	}
}

// WriteFinalDomains rewrites finalDPAM.domains in both the working
// root and results/ (spec.md stage 24).
func WriteFinalDomains(ctx *Context, finals []FinalDomain) error {
	if err := ctx.Resolver.EnsureStageDir(model.INTEGRATE); err != nil {
		return fmt.Errorf("stage24: %w", err)
	}
	if err := ctx.Resolver.EnsureResultsDir(); err != nil {
		return fmt.Errorf("stage24: %w", err)
	}
	write := func(path string) error {
		return writeLines(path, func(w io.Writer) error {
			for _, f := range finals {
				_, err := fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", f.ID, f.Range, f.UID, f.Classification, f.Label)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	rootPath := filepath.Join(ctx.Resolver.Root, ctx.Prefix+".finalDPAM.domains")
	if err := write(rootPath); err != nil {
		return err
	}
	resultsPath := filepath.Join(ctx.Resolver.ResultsDir(), ctx.Prefix+".finalDPAM.domains")
	return write(resultsPath)
}
