package batch

import (
	"fmt"
	"os"

	"github.com/dpam-project/dpam/internal/ckpt"
	"github.com/dpam-project/dpam/internal/classifier"
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pathresolver"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/stages"
)

// Options configures an Orchestrator, mirroring internal/runner.Options
// plus the batch-only knobs (progress modulus).
type Options struct {
	HHsearch        stages.HHsearchOpts
	FoldseekDB      string
	DaliWorkers     int
	MkdsspCmd       string
	Classifier      *classifier.Model
	ProgressModulus int
}

// Orchestrator runs a set of proteins through the full pipeline
// stage-first rather than protein-first (spec.md §4.G).
type Orchestrator struct {
	root     string
	resolver *pathresolver.Resolver
	ref      *refdata.Data
	tool     stages.ToolRunner
	opts     Options

	batchState *model.BatchState
	proteins   map[string]*workspace
	states     map[string]*model.PipelineState
	order      []string
}

// New builds an Orchestrator rooted at root for the given prefixes and
// their input file paths (keyed by prefix).
func New(root string, ref *refdata.Data, tool stages.ToolRunner, opts Options, inputs map[string]string) (*Orchestrator, error) {
	if opts.ProgressModulus <= 0 {
		opts.ProgressModulus = 10
	}
	resolver := pathresolver.New(root)
	bs, err := ckpt.LoadBatch(root)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	o := &Orchestrator{
		root:       root,
		resolver:   resolver,
		ref:        ref,
		tool:       tool,
		opts:       opts,
		batchState: bs,
		proteins:   make(map[string]*workspace),
		states:     make(map[string]*model.PipelineState),
	}
	for prefix, input := range inputs {
		st, err := ckpt.LoadProtein(root, prefix)
		if err != nil {
			return nil, fmt.Errorf("batch: load %s: %w", prefix, err)
		}
		bs.SeedFrom(prefix, st)
		o.states[prefix] = st
		o.proteins[prefix] = &workspace{prefix: prefix, input: input}
		o.order = append(o.order, prefix)
	}
	return o, nil
}

// pending returns the prefixes not yet complete and not yet halted by
// an earlier critical-stage failure, in stable input order.
func (o *Orchestrator) pending(stage model.Stage) []string {
	var out []string
	for _, prefix := range o.order {
		st := o.states[prefix]
		if st.Completed[stage] {
			continue
		}
		if o.haltedEarlier(prefix) {
			continue
		}
		out = append(out, prefix)
	}
	return out
}

// haltedEarlier reports whether prefix has a recorded failure of any
// critical stage, matching the per-protein runner's CRITICAL-halt
// semantics (spec.md §4.F) projected onto the batch loop. It does not
// compare the failed stage against the stage being dispatched.
func (o *Orchestrator) haltedEarlier(prefix string) bool {
	st := o.states[prefix]
	for stage := range model.CriticalStages {
		if reason, failed := st.Failed[stage]; failed && reason != "" {
			return true
		}
	}
	return false
}

func (o *Orchestrator) mark(prefix string, stage model.Stage, err error) {
	st := o.states[prefix]
	log := func(msg string) {
		fmt.Fprintf(os.Stderr, "dpam-batch[%s] %s\n", prefix, msg)
	}
	if err != nil {
		st.MarkFailed(stage, err.Error())
		o.batchState.Set(stage, prefix, model.StatusFailed(err.Error()))
		if model.CriticalStages[stage] {
			log(fmt.Sprintf("CRITICAL: stage %s failed, halting pipeline: %v", stage, err))
		} else {
			log(fmt.Sprintf("warning: stage %s failed, continuing: %v", stage, err))
		}
	} else {
		st.MarkComplete(stage)
		o.batchState.Set(stage, prefix, model.StatusComplete)
	}
	if serr := ckpt.SaveProtein(o.root, st); serr != nil {
		log(fmt.Sprintf("checkpoint save failed: %v", serr))
	}
}

// Run drives every pending protein through every stage in order,
// specialising stages 3, 7 and 16 to share one resource across the
// whole pending set (spec.md §4.G). It returns the final batch state.
func (o *Orchestrator) Run() (*model.BatchState, error) {
	for _, stage := range model.Ordered {
		pending := o.pending(stage)
		if len(pending) == 0 {
			continue
		}
		switch stage {
		case model.FOLDSEEK:
			o.runFoldseekBatch(pending)
		case model.ITERATIVE_DALI:
			o.runIterativeDaliBatch(pending)
		case model.RUN_DOMASS:
			o.runDomassBatch(pending)
		default:
			for _, prefix := range pending {
				o.runGenericStage(prefix, stage)
			}
		}
		o.reportProgress(stage, pending)
		if serr := ckpt.SaveBatch(o.root, o.batchState); serr != nil {
			return o.batchState, fmt.Errorf("batch: save batch state: %w", serr)
		}
	}
	return o.batchState, nil
}

func (o *Orchestrator) reportProgress(stage model.Stage, pending []string) {
	if len(pending)%o.opts.ProgressModulus != 0 && len(pending) < o.opts.ProgressModulus {
		return
	}
	complete, failed := 0, 0
	for _, prefix := range pending {
		st := o.states[prefix]
		if st.Completed[stage] {
			complete++
		} else if _, ok := st.Failed[stage]; ok {
			failed++
		}
	}
	fmt.Fprintf(os.Stderr, "dpam-batch: stage %s: %d complete, %d failed (of %d pending)\n", stage, complete, failed, len(pending))
}

// ctxFor builds a stage Context for one protein.
func (o *Orchestrator) ctxFor(prefix string) *stages.Context {
	return stages.NewContext(prefix, o.resolver, o.ref)
}
