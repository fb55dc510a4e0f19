// Package batch implements DPAM's stage-first batch orchestrator
// (spec.md §4.G): an outer loop over stages 1..24, an inner loop over
// the subset of proteins still pending at that stage, with stages 3,
// 7 and 16 specialised to share one expensive resource across the
// whole pending set instead of repeating it per protein.
package batch

import (
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pdbio"
	"github.com/dpam-project/dpam/internal/stages"
	"github.com/dpam-project/dpam/internal/tools"
)

// workspace accumulates one protein's in-memory intermediate values as
// the orchestrator marches it through stages, mirroring the locals
// internal/runner.Runner.run keeps on its stack for the single-protein
// case. Unlike the per-protein runner, a batch run never needs to
// reconstruct these from disk: the whole batch lives in one process
// for the duration of the run, so the values simply carry forward.
type workspace struct {
	prefix string
	input  string

	structure *model.Structure
	fastaPath string
	pdbPath   string
	atoms     []pdbio.AtomRecord

	hhRecs       []tools.HHRecord
	foldseekHits []tools.Hit
	filtered     []stages.FilteredHit
	seqHits      []model.SequenceHit
	daliUIDs     []int64
	daliResults  map[int64][]stages.DaliIteration
	structHits   []model.StructureHit

	filteredSeqHits     []stages.FilteredSequenceHit
	supportedStructHits []model.StructureHit
	goodDomains         []model.GoodDomain

	sseResidues []model.SSEResidue
	pae         *model.PAE
	disorder    map[int]bool
	domains     [][]int

	domassRows  []stages.DomassRow
	preds       []stages.DomassPrediction
	confident   []stages.ConfidentPrediction
	mappings    []stages.ConfidentMapping
	candidates  []stages.MergeCandidate
	judged      []stages.ConnectivityResult
	merged      []stages.MergedEntity
	classified  []stages.Classification

	noDomains bool
}
