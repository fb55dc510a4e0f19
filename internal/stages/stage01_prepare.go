package stages

import (
	"fmt"
	"io"
	"os"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pathresolver"
	"github.com/dpam-project/dpam/internal/pdbio"
	"github.com/dpam-project/dpam/internal/seqio"
)

// Prepare implements stage 1: parse the input structure, extract chain
// A, and emit a standardised single-chain PDB plus a FASTA. Residue
// numbering is preserved verbatim (spec.md stage 1).
//
// mmCIF inputs are read through the same fixed-column ATOM scanner as
// PDB; AlphaFold's mmCIF atom_site loop is not yet distinguished from
// PDB ATOM records by this parser, so .cif inputs should be
// pre-converted to PDB until pdbio grows a loop-based CIF reader.
func Prepare(ctx *Context, inputPath string) (*model.Structure, error) {
	atoms, err := pdbio.ParseFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("stage01: %w", err)
	}
	chainA := pdbio.Chain(atoms, 'A')
	if len(chainA) == 0 {
		return nil, fmt.Errorf("stage01: no chain A atoms in %s", inputPath)
	}

	structure, names := pdbio.ToStructure(chainA)

	if err := ctx.Resolver.EnsureStageDir(model.PREPARE); err != nil {
		return nil, fmt.Errorf("stage01: %w", err)
	}
	pdbPath := ctx.Resolver.StagePath(model.PREPARE, ctx.Prefix+".pdb")
	if err := writeLines(pdbPath, func(w io.Writer) error {
		return pdbio.WritePDB(w, chainA)
	}); err != nil {
		return nil, fmt.Errorf("stage01: write pdb: %w", err)
	}

	faPath := ctx.Resolver.StagePath(model.PREPARE, ctx.Prefix+".fa")
	seq := seqio.SequenceOf(structure, names)
	if err := writeLines(faPath, func(w io.Writer) error {
		return seqio.WriteFASTA(w, ctx.Prefix, "", seq)
	}); err != nil {
		return nil, fmt.Errorf("stage01: write fasta: %w", err)
	}

	return structure, nil
}

// inputPathFor resolves {prefix}.cif or {prefix}.pdb, preferring
// whichever is present, per spec.md §6.
func inputPathFor(r *pathresolver.Resolver, prefix string) (string, error) {
	cif := r.InputPath(prefix, ".cif")
	if _, err := os.Stat(cif); err == nil {
		return cif, nil
	}
	pdb := r.InputPath(prefix, ".pdb")
	if _, err := os.Stat(pdb); err == nil {
		return pdb, nil
	}
	return "", fmt.Errorf("stage01: no %s.cif or %s.pdb found", prefix, prefix)
}
