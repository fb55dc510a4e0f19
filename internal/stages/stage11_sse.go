package stages

import (
	"fmt"
	"io"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/tools"
)

// AssignSSE implements stage 11: collapse DSSP's raw per-residue
// secondary structure to {H,E,C}, segment on maximal runs of the same
// type, and keep a segment only if it has ≥3 strand or ≥6 helix
// residues (spec.md §3 "significant SSE", stage 11).
func AssignSSE(raw []tools.RawResidue) []model.SSEResidue {
	collapsed := tools.Collapse(raw)
	segments := segmentByType(collapsed)

	kept := make([]model.SSEResidue, len(collapsed))
	copy(kept, collapsed)

	nextID := 1
	for _, seg := range segments {
		sig := isSignificant(collapsed, seg)
		for _, idx := range seg {
			if sig {
				kept[idx].SSEID = nextID
			} else {
				kept[idx].SSEID = 0
				kept[idx].Type = model.Coil
			}
		}
		if sig {
			nextID++
		}
	}
	return kept
}

// segmentByType groups residue indices into maximal runs of the same
// non-coil SSE type, treating any coil residue as the "--" delimiter
// that separates runs (spec.md §3).
func segmentByType(residues []model.SSEResidue) [][]int {
	var segs [][]int
	var cur []int
	curType := model.Coil
	for i, r := range residues {
		if r.Type == model.Coil {
			if len(cur) > 0 {
				segs = append(segs, cur)
				cur = nil
			}
			continue
		}
		if len(cur) == 0 {
			curType = r.Type
			cur = []int{i}
			continue
		}
		if r.Type == curType {
			cur = append(cur, i)
		} else {
			segs = append(segs, cur)
			cur = []int{i}
			curType = r.Type
		}
	}
	if len(cur) > 0 {
		segs = append(segs, cur)
	}
	return segs
}

func isSignificant(residues []model.SSEResidue, seg []int) bool {
	if len(seg) == 0 {
		return false
	}
	switch residues[seg[0]].Type {
	case model.Strand:
		return len(seg) >= 3
	case model.Helix:
		return len(seg) >= 6
	default:
		return false
	}
}

// WriteSSE emits stage 11's primary output: (resid, aa, sse_id|na, type).
func WriteSSE(ctx *Context, residues []model.SSEResidue) error {
	if err := ctx.Resolver.EnsureStageDir(model.SSE); err != nil {
		return fmt.Errorf("stage11: %w", err)
	}
	path := ctx.Resolver.StagePath(model.SSE, ctx.Prefix+".sse")
	return writeLines(path, func(w io.Writer) error {
		for _, r := range residues {
			sseID := "na"
			if r.SSEID != 0 {
				sseID = fmt.Sprintf("%d", r.SSEID)
			}
			if _, err := fmt.Fprintf(w, "%d\t%c\t%s\t%c\n", r.Resid, r.AA, sseID, byte(r.Type)); err != nil {
				return err
			}
		}
		return nil
	})
}
