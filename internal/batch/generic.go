package batch

import (
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/paeio"
	"github.com/dpam-project/dpam/internal/pdbio"
	"github.com/dpam-project/dpam/internal/stages"
	"github.com/dpam-project/dpam/internal/tools"
)

// runGenericStage dispatches one stage for one protein using the same
// per-protein kernels internal/runner drives, the difference being
// that the batch orchestrator is the one marching stage-major instead
// of protein-major (spec.md §4.G "All other stages use the plain
// per-protein kernel").
func (o *Orchestrator) runGenericStage(prefix string, stage model.Stage) {
	w := o.proteins[prefix]
	ctx := o.ctxFor(prefix)
	var err error

	switch stage {
	case model.PREPARE:
		w.structure, err = stages.Prepare(ctx, w.input)
		if err == nil {
			w.fastaPath = ctx.Resolver.StagePath(model.PREPARE, prefix+".fa")
			w.pdbPath = ctx.Resolver.StagePath(model.PREPARE, prefix+".pdb")
			w.atoms, err = pdbio.ParseFile(w.pdbPath)
		}

	case model.HHSEARCH:
		w.hhRecs, err = stages.RunHHsearch(ctx, o.tool, w.fastaPath, o.opts.HHsearch)

	case model.FOLDSEEK_FILTER:
		w.filtered = stages.FilterFoldseek(w.foldseekHits, w.structure.Length(), o.ref)
		err = stages.WriteFilteredHits(ctx, w.filtered)

	case model.MAP_ECOD:
		w.seqHits = stages.MapHHsearchToECOD(w.hhRecs, o.ref)
		err = stages.WriteMapResult(ctx, w.seqHits)

	case model.DALI_CANDIDATES:
		w.daliUIDs = stages.DaliCandidates(w.filtered, w.seqHits)
		err = stages.WriteDaliCandidates(ctx, w.daliUIDs)

	case model.ANALYSE_DALI:
		w.structHits = stages.AnalyseDali(w.daliResults, o.ref)
		err = stages.WriteAnalyseDali(ctx, w.structHits)

	case model.GET_SUPPORT:
		w.filteredSeqHits = stages.SequenceSupport(w.seqHits)
		w.supportedStructHits = stages.StructureSupport(w.structHits, w.seqHits)

	case model.FILTER_GOOD_DOMAINS:
		w.goodDomains = stages.GoodDomains(w.filteredSeqHits, w.supportedStructHits, o.ref)
		err = stages.WriteGoodDomains(ctx, w.goodDomains)

	case model.SSE:
		err = o.runSSE(ctx, w)

	case model.DISORDER:
		w.pae, err = loadPAE(ctx.Resolver.InputPath(prefix, ".pae.json"))
		if err == nil {
			w.disorder = stages.Disorder(w.structure.Length(), w.pae, w.sseResidues, w.goodDomains)
			err = stages.WriteDisorder(ctx, w.structure.Length(), w.disorder)
		}

	case model.PARSE_DOMAINS:
		w.domains = stages.ParseDomains(w.structure, w.pae, w.disorder, w.goodDomains)
		err = stages.WriteDomains(ctx, w.domains)
		if err == nil && len(w.domains) == 0 {
			w.noDomains = true
		}

	case model.PREPARE_DOMASS:
		if w.noDomains {
			return
		}
		w.domassRows = stages.PrepareDomassFeatures(w.domains, w.sseResidues, w.goodDomains, o.ref)
		err = stages.WriteDomassFeatures(ctx, w.domassRows)

	case model.CONFIDENT_PREDICTIONS:
		if w.noDomains {
			return
		}
		w.confident = stages.ConfidentPredictions(w.preds)
		err = stages.WriteConfidentPredictions(ctx, w.confident)

	case model.MAP_CONFIDENT:
		if w.noDomains {
			return
		}
		w.mappings = stages.MapConfidentPredictions(w.confident, w.domains, w.seqHits, w.structHits, o.ref)
		err = stages.WriteConfidentMappings(ctx, w.mappings)

	case model.MERGE_CANDIDATES:
		if w.noDomains {
			return
		}
		w.candidates = stages.MergeCandidates(w.confident, w.mappings, o.ref)
		err = stages.WriteMergeCandidates(ctx, w.candidates)

	case model.EXTRACT_DOMAIN_PDBS:
		if w.noDomains {
			return
		}
		err = stages.ExtractDomainPDBs(ctx, w.atoms, w.domains, w.candidates)

	case model.CONNECTIVITY:
		if w.noDomains {
			return
		}
		var structured []int
		for resid := 1; resid <= w.structure.Length(); resid++ {
			if !w.disorder[resid] {
				structured = append(structured, resid)
			}
		}
		w.judged = stages.JudgeConnectivity(w.atoms, w.domains, w.candidates, structured)
		err = stages.WriteConnectivity(ctx, w.judged)

	case model.MERGE:
		if w.noDomains {
			return
		}
		w.merged = stages.MergeTransitiveClosure(w.domains, w.judged)
		err = stages.WriteMergedEntities(ctx, w.merged)

	case model.CLASSIFY:
		if w.noDomains {
			return
		}
		w.classified = stages.ClassifyEntities(w.domains, w.merged, w.preds, w.mappings, o.ref)
		err = stages.WriteClassifications(ctx, w.classified)

	case model.INTEGRATE:
		if w.noDomains {
			return
		}
		finals := stages.IntegrateFinalDomains(w.classified, w.domains, w.merged, w.sseResidues)
		err = stages.WriteFinalDomains(ctx, finals)

	default:
		err = fmt.Errorf("batch: stage %s has no generic handler (should be specialised or reserved)", stage)
	}

	o.mark(prefix, stage, err)
}

func (o *Orchestrator) runSSE(ctx *stages.Context, w *workspace) error {
	dsspOut := ctx.Resolver.StagePath(model.SSE, w.prefix+".dssp")
	if err := ctx.Resolver.EnsureStageDir(model.SSE); err != nil {
		return err
	}
	if _, err := o.tool.Run(tools.Mkdssp{Cmd: o.opts.MkdsspCmd, Input: w.pdbPath, Output: dsspOut}); err != nil {
		return fmt.Errorf("mkdssp: %w", err)
	}
	raw, err := readDSSP(dsspOut)
	if err != nil {
		return err
	}
	w.sseResidues = stages.AssignSSE(raw)
	return stages.WriteSSE(ctx, w.sseResidues)
}

func readDSSP(path string) ([]tools.RawResidue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tools.ParseDSSP(f)
}

func loadPAE(path string) (*model.PAE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return paeio.Load(f)
}
