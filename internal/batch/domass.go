package batch

import (
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/stages"
)

// runDomassBatch implements spec.md §4.G stage-16 specialisation: the
// classifier session (component H) is loaded once by the caller and
// handed to every Orchestrator; since spec.md §5 requires "callers must
// not invoke predict concurrently", this loop simply reuses the single
// o.opts.Classifier instance sequentially across pending proteins
// instead of opening and disposing a session per protein the way the
// plain per-protein runner would if called once per protein.
func (o *Orchestrator) runDomassBatch(pending []string) {
	for _, prefix := range pending {
		w := o.proteins[prefix]
		if w.noDomains {
			continue
		}
		ctx := o.ctxFor(prefix)
		preds, err := stages.RunDomass(o.opts.Classifier, w.domassRows)
		if err != nil {
			o.mark(prefix, model.RUN_DOMASS, err)
			continue
		}
		w.preds = preds
		o.mark(prefix, model.RUN_DOMASS, stages.WriteDomassPredictions(ctx, preds))
	}
}
