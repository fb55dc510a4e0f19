package stages

import (
	"fmt"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pdbio"
)

// ExtractDomainPDBs implements stage 20: for every domain id appearing
// in a stage-19 merge candidate, write a single-domain PDB containing
// only the ATOM lines for its residues (spec.md stage 20).
func ExtractDomainPDBs(ctx *Context, atoms []pdbio.AtomRecord, domains [][]int, candidates []MergeCandidate) error {
	if err := ctx.Resolver.EnsureStageDir(model.EXTRACT_DOMAIN_PDBS); err != nil {
		return fmt.Errorf("stage20: %w", err)
	}

	wanted := make(map[int]bool)
	for _, c := range candidates {
		wanted[c.DomainA] = true
		wanted[c.DomainB] = true
	}

	for domainID := range wanted {
		if domainID < 1 || domainID > len(domains) {
			continue
		}
		residueSet := make(map[int]bool)
		for _, r := range domains[domainID-1] {
			residueSet[r] = true
		}
		var kept []pdbio.AtomRecord
		for _, a := range atoms {
			if residueSet[a.ResSeq] {
				kept = append(kept, a)
			}
		}

		path := ctx.Resolver.StagePath(model.EXTRACT_DOMAIN_PDBS, fmt.Sprintf("%s.D%d.pdb", ctx.Prefix, domainID))
		af, err := createAtomic(path)
		if err != nil {
			return fmt.Errorf("stage20: %w", err)
		}
		if err := pdbio.WritePDB(af, kept); err != nil {
			af.Abort()
			return fmt.Errorf("stage20: %w", err)
		}
		if err := af.Close(); err != nil {
			return fmt.Errorf("stage20: %w", err)
		}
	}
	return nil
}
