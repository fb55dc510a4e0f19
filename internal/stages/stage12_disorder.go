package stages

import (
	"fmt"
	"io"

	"github.com/dpam-project/dpam/internal/model"
)

// Disorder implements stage 12: for residue pair (r1,r2) with
// r2 >= r1+10 and PAE<12 where at least one is in an SSE and the two
// are not in the same SSE, record a contact on the in-SSE endpoint(s).
// For each 10-residue sliding window, mark all its residues disordered
// iff total contacts <=30 and good-domain residues in the window <=5
// (spec.md stage 12).
func Disorder(length int, pae *model.PAE, sse []model.SSEResidue, goodDomains []model.GoodDomain) map[int]bool {
	sseOf := make(map[int]int, len(sse)) // resid -> sse_id (0 = none)
	for _, r := range sse {
		sseOf[r.Resid] = r.SSEID
	}

	inGoodDomain := make(map[int]bool)
	for _, d := range goodDomains {
		for _, r := range d.Residues {
			inGoodDomain[r] = true
		}
	}

	contacts := make(map[int]int, length)
	for r1 := 1; r1 <= length; r1++ {
		for r2 := r1 + 10; r2 <= length; r2++ {
			v, ok := pae.Get(r1, r2)
			if !ok || v >= 12 {
				continue
			}
			s1, in1 := sseOf[r1], sseOf[r1] != 0
			s2, in2 := sseOf[r2], sseOf[r2] != 0
			if !in1 && !in2 {
				continue
			}
			if in1 && in2 && s1 == s2 {
				continue
			}
			if in1 {
				contacts[r1]++
			}
			if in2 {
				contacts[r2]++
			}
		}
	}

	disordered := make(map[int]bool)
	for start := 1; start+9 <= length; start++ {
		windowContacts := 0
		windowGood := 0
		for r := start; r < start+10; r++ {
			windowContacts += contacts[r]
			if inGoodDomain[r] {
				windowGood++
			}
		}
		if windowContacts <= 30 && windowGood <= 5 {
			for r := start; r < start+10; r++ {
				disordered[r] = true
			}
		}
	}
	return disordered
}

// WriteDisorder emits stage 12's primary output, one disordered
// residue id per line in ascending order.
func WriteDisorder(ctx *Context, length int, disordered map[int]bool) error {
	if err := ctx.Resolver.EnsureStageDir(model.DISORDER); err != nil {
		return fmt.Errorf("stage12: %w", err)
	}
	path := ctx.Resolver.StagePath(model.DISORDER, ctx.Prefix+".diso")
	return writeLines(path, func(w io.Writer) error {
		for r := 1; r <= length; r++ {
			if disordered[r] {
				if _, err := fmt.Fprintf(w, "%d\n", r); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
