// Package runner drives a single protein through DPAM's ordered stage
// list, persisting checkpoint state after each stage and enforcing the
// critical/non-critical failure split from spec.md §4.F.
package runner

import (
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/ckpt"
	"github.com/dpam-project/dpam/internal/classifier"
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/paeio"
	"github.com/dpam-project/dpam/internal/pdbio"
	"github.com/dpam-project/dpam/internal/stages"
	"github.com/dpam-project/dpam/internal/tools"
)

// Options configures the tool invocations a run needs beyond the
// structure/PAE inputs themselves.
type Options struct {
	HHsearch    stages.HHsearchOpts
	FoldseekDB  string
	DaliWorkers int
	MkdsspCmd   string
	Classifier  *classifier.Model
}

// Runner drives model.Ordered for one protein.
type Runner struct {
	ctx  *stages.Context
	tool stages.ToolRunner
	opts Options
}

// New builds a Runner for the protein identified by ctx.Prefix.
func New(ctx *stages.Context, tool stages.ToolRunner, opts Options) *Runner {
	return &Runner{ctx: ctx, tool: tool, opts: opts}
}

// haltError distinguishes a critical-stage failure, which should stop
// the caller's batch loop from moving on to other proteins in the same
// way a crash would, from an ordinary returned error.
type haltError struct {
	stage model.Stage
	err   error
}

func (h *haltError) Error() string {
	return fmt.Sprintf("stage %s: %v", h.stage, h.err)
}
func (h *haltError) Unwrap() error { return h.err }

// Run executes the stages of model.Ordered in order, persisting
// PipelineState after each one. Stage 25 (PDB
// emission) is handled as a no-op at the end, never dispatched through
// the ordered list (spec.md §4.F).
//
// A protein whose checkpoint already has every ordered stage marked
// complete is a no-op: Run logs it and returns immediately rather than
// replaying the pipeline. Resuming a partially completed run replays
// every stage from the beginning, recomputing in-memory values rather
// than reloading each stage's on-disk output, since several stages
// (HHSEARCH, FOLDSEEK in particular) have no separate DPAM-formatted
// output distinct from the raw tool report already reparsed by their
// own kernel; see DESIGN.md for why this run restarts from stage 1
// instead of re-reading every intermediate file.
func (r *Runner) Run(inputPath string) error {
	state, err := ckpt.LoadProtein(r.ctx.Resolver.Root, r.ctx.Prefix)
	if err != nil {
		return fmt.Errorf("runner: load state: %w", err)
	}

	allDone := true
	for _, s := range model.Ordered {
		if !state.Completed[s] {
			allDone = false
			break
		}
	}
	if allDone {
		r.ctx.Log.Printf("%s: all stages already complete, nothing to run", r.ctx.Prefix)
		return nil
	}

	if err := r.run(inputPath, state); err != nil {
		var h *haltError
		if e, ok := err.(*haltError); ok {
			h = e
			r.ctx.Log.Printf("CRITICAL: stage %s failed, halting pipeline for %s: %v", h.stage, r.ctx.Prefix, h.err)
			return h
		}
		return err
	}

	r.ctx.Log.Printf("%s: stage %s (no-op, spec.md stage 25)", r.ctx.Prefix, model.PDB_EMISSION)
	return nil
}

func (r *Runner) run(inputPath string, state *model.PipelineState) error {
	mark := func(s model.Stage, err error) error {
		if err != nil {
			state.MarkFailed(s, err.Error())
			if saveErr := ckpt.SaveProtein(r.ctx.Resolver.Root, state); saveErr != nil {
				r.ctx.Log.Printf("checkpoint save failed: %v", saveErr)
			}
			if model.CriticalStages[s] {
				return &haltError{stage: s, err: err}
			}
			r.ctx.Log.Printf("warning: stage %s failed, continuing: %v", s, err)
			return nil
		}
		state.MarkComplete(s)
		if saveErr := ckpt.SaveProtein(r.ctx.Resolver.Root, state); saveErr != nil {
			r.ctx.Log.Printf("checkpoint save failed: %v", saveErr)
		}
		return nil
	}

	// Stage 1: PREPARE.
	structure, err := stages.Prepare(r.ctx, inputPath)
	if err != nil {
		return mark(model.PREPARE, err)
	}
	if err := mark(model.PREPARE, nil); err != nil {
		return err
	}

	fastaPath := r.ctx.Resolver.StagePath(model.PREPARE, r.ctx.Prefix+".fa")
	pdbPath := r.ctx.Resolver.StagePath(model.PREPARE, r.ctx.Prefix+".pdb")
	atoms, err := pdbio.ParseFile(pdbPath)
	if err != nil {
		return fmt.Errorf("runner: reread stage01 pdb: %w", err)
	}

	// Stage 2: HHSEARCH.
	hhRecs, err := stages.RunHHsearch(r.ctx, r.tool, fastaPath, r.opts.HHsearch)
	if err != nil {
		return mark(model.HHSEARCH, err)
	}
	if err := mark(model.HHSEARCH, nil); err != nil {
		return err
	}

	// Stage 3: FOLDSEEK.
	foldseekHits, err := stages.RunFoldseek(r.ctx, r.tool, pdbPath, r.opts.FoldseekDB)
	if err != nil {
		return mark(model.FOLDSEEK, err)
	}
	if err := mark(model.FOLDSEEK, nil); err != nil {
		return err
	}

	// Stage 4: FOLDSEEK_FILTER.
	filtered := stages.FilterFoldseek(foldseekHits, structure.Length(), r.ctx.Ref)
	if err := stages.WriteFilteredHits(r.ctx, filtered); err != nil {
		return mark(model.FOLDSEEK_FILTER, err)
	}
	if err := mark(model.FOLDSEEK_FILTER, nil); err != nil {
		return err
	}

	// Stage 5: MAP_ECOD.
	seqHits := stages.MapHHsearchToECOD(hhRecs, r.ctx.Ref)
	if err := stages.WriteMapResult(r.ctx, seqHits); err != nil {
		return mark(model.MAP_ECOD, err)
	}
	if err := mark(model.MAP_ECOD, nil); err != nil {
		return err
	}

	// Stage 6: DALI_CANDIDATES.
	daliUIDs := stages.DaliCandidates(filtered, seqHits)
	if err := stages.WriteDaliCandidates(r.ctx, daliUIDs); err != nil {
		return mark(model.DALI_CANDIDATES, err)
	}
	if err := mark(model.DALI_CANDIDATES, nil); err != nil {
		return err
	}

	// Stage 7: ITERATIVE_DALI.
	daliResults := stages.RunIterativeDali(r.ctx, r.tool, r.ctx.Ref, pdbPath, daliUIDs, r.opts.DaliWorkers)
	if err := stages.WriteIterativeDaliHits(r.ctx, daliResults); err != nil {
		return mark(model.ITERATIVE_DALI, err)
	}
	if err := mark(model.ITERATIVE_DALI, nil); err != nil {
		return err
	}

	// Stage 8: ANALYSE_DALI.
	structHits := stages.AnalyseDali(daliResults, r.ctx.Ref)
	if err := stages.WriteAnalyseDali(r.ctx, structHits); err != nil {
		return mark(model.ANALYSE_DALI, err)
	}
	if err := mark(model.ANALYSE_DALI, nil); err != nil {
		return err
	}

	// Stage 9: GET_SUPPORT. No primary output of its own; its two
	// filtered slices feed stage 10 directly (spec.md stage 9).
	filteredSeqHits := stages.SequenceSupport(seqHits)
	supportedStructHits := stages.StructureSupport(structHits, seqHits)
	if err := mark(model.GET_SUPPORT, nil); err != nil {
		return err
	}

	// Stage 10: FILTER_GOOD_DOMAINS.
	goodDomains := stages.GoodDomains(filteredSeqHits, supportedStructHits, r.ctx.Ref)
	if err := stages.WriteGoodDomains(r.ctx, goodDomains); err != nil {
		return mark(model.FILTER_GOOD_DOMAINS, err)
	}
	if err := mark(model.FILTER_GOOD_DOMAINS, nil); err != nil {
		return err
	}

	// Stage 11: SSE, via mkdssp over the stage-1 PDB.
	dsspOut := r.ctx.Resolver.StagePath(model.SSE, r.ctx.Prefix+".dssp")
	if err := r.ctx.Resolver.EnsureStageDir(model.SSE); err != nil {
		return mark(model.SSE, err)
	}
	var sseResidues []model.SSEResidue
	var sseErr error
	if _, runErr := r.tool.Run(tools.Mkdssp{Cmd: r.opts.MkdsspCmd, Input: pdbPath, Output: dsspOut}); runErr != nil {
		sseErr = fmt.Errorf("mkdssp: %w", runErr)
	} else if raw, parseErr := readDSSP(dsspOut); parseErr != nil {
		sseErr = parseErr
	} else {
		sseResidues = stages.AssignSSE(raw)
		sseErr = stages.WriteSSE(r.ctx, sseResidues)
	}
	if markErr := mark(model.SSE, sseErr); markErr != nil {
		return markErr
	}

	// Stage 12: DISORDER.
	pae, err := loadPAE(r.ctx.Resolver.InputPath(r.ctx.Prefix, ".pae.json"))
	if err != nil {
		return fmt.Errorf("runner: load pae: %w", err)
	}
	disorder := stages.Disorder(structure.Length(), pae, sseResidues, goodDomains)
	if err := stages.WriteDisorder(r.ctx, structure.Length(), disorder); err != nil {
		return mark(model.DISORDER, err)
	}
	if err := mark(model.DISORDER, nil); err != nil {
		return err
	}

	// Stage 13: PARSE_DOMAINS.
	domains := stages.ParseDomains(structure, pae, disorder, goodDomains)
	if err := stages.WriteDomains(r.ctx, domains); err != nil {
		return mark(model.PARSE_DOMAINS, err)
	}
	if err := mark(model.PARSE_DOMAINS, nil); err != nil {
		return err
	}

	if len(domains) == 0 {
		r.ctx.Log.Printf("%s: no domains parsed, skipping classification stages", r.ctx.Prefix)
		return nil
	}

	// Stage 15: PREPARE_DOMASS.
	domassRows := stages.PrepareDomassFeatures(domains, sseResidues, goodDomains, r.ctx.Ref)
	if err := stages.WriteDomassFeatures(r.ctx, domassRows); err != nil {
		return mark(model.PREPARE_DOMASS, err)
	}
	if err := mark(model.PREPARE_DOMASS, nil); err != nil {
		return err
	}

	// Stage 16: RUN_DOMASS.
	preds, err := stages.RunDomass(r.opts.Classifier, domassRows)
	if err != nil {
		return mark(model.RUN_DOMASS, err)
	}
	if err := stages.WriteDomassPredictions(r.ctx, preds); err != nil {
		return mark(model.RUN_DOMASS, err)
	}
	if err := mark(model.RUN_DOMASS, nil); err != nil {
		return err
	}

	// Stage 17: CONFIDENT_PREDICTIONS.
	confident := stages.ConfidentPredictions(preds)
	if err := stages.WriteConfidentPredictions(r.ctx, confident); err != nil {
		return mark(model.CONFIDENT_PREDICTIONS, err)
	}
	if err := mark(model.CONFIDENT_PREDICTIONS, nil); err != nil {
		return err
	}

	// Stage 18: MAP_CONFIDENT.
	mappings := stages.MapConfidentPredictions(confident, domains, seqHits, structHits, r.ctx.Ref)
	if err := stages.WriteConfidentMappings(r.ctx, mappings); err != nil {
		return mark(model.MAP_CONFIDENT, err)
	}
	if err := mark(model.MAP_CONFIDENT, nil); err != nil {
		return err
	}

	// Stage 19: MERGE_CANDIDATES.
	candidates := stages.MergeCandidates(confident, mappings, r.ctx.Ref)
	if err := stages.WriteMergeCandidates(r.ctx, candidates); err != nil {
		return mark(model.MERGE_CANDIDATES, err)
	}
	if err := mark(model.MERGE_CANDIDATES, nil); err != nil {
		return err
	}

	// Stage 20: EXTRACT_DOMAIN_PDBS.
	if err := stages.ExtractDomainPDBs(r.ctx, atoms, domains, candidates); err != nil {
		return mark(model.EXTRACT_DOMAIN_PDBS, err)
	}
	if err := mark(model.EXTRACT_DOMAIN_PDBS, nil); err != nil {
		return err
	}

	// Stage 21: CONNECTIVITY.
	var structuredResidues []int
	for resid := 1; resid <= structure.Length(); resid++ {
		if !disorder[resid] {
			structuredResidues = append(structuredResidues, resid)
		}
	}
	judged := stages.JudgeConnectivity(atoms, domains, candidates, structuredResidues)
	if err := stages.WriteConnectivity(r.ctx, judged); err != nil {
		return mark(model.CONNECTIVITY, err)
	}
	if err := mark(model.CONNECTIVITY, nil); err != nil {
		return err
	}

	// Stage 22: MERGE.
	merged := stages.MergeTransitiveClosure(domains, judged)
	if err := stages.WriteMergedEntities(r.ctx, merged); err != nil {
		return mark(model.MERGE, err)
	}
	if err := mark(model.MERGE, nil); err != nil {
		return err
	}

	// Stage 23: CLASSIFY.
	classifications := stages.ClassifyEntities(domains, merged, preds, mappings, r.ctx.Ref)
	if err := stages.WriteClassifications(r.ctx, classifications); err != nil {
		return mark(model.CLASSIFY, err)
	}
	if err := mark(model.CLASSIFY, nil); err != nil {
		return err
	}

	// Stage 24: INTEGRATE.
	finals := stages.IntegrateFinalDomains(classifications, domains, merged, sseResidues)
	if err := stages.WriteFinalDomains(r.ctx, finals); err != nil {
		return mark(model.INTEGRATE, err)
	}
	return mark(model.INTEGRATE, nil)
}

// readDSSP opens and parses an mkdssp report from disk, the same path
// every other stage follows for its upstream tool's raw output.
func readDSSP(path string) ([]tools.RawResidue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tools.ParseDSSP(f)
}

// loadPAE opens and decodes the input PAE matrix, the one upstream
// artifact every stage after 11 needs that never passes through a
// stage's own Write/Read pair.
func loadPAE(path string) (*model.PAE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return paeio.Load(f)
}
