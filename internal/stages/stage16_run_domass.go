package stages

import (
	"fmt"
	"io"

	"github.com/dpam-project/dpam/internal/classifier"
	"github.com/dpam-project/dpam/internal/model"
)

// domassBatchSize is the fixed batch width the classifier is invoked
// with (spec.md stage 16).
const domassBatchSize = 100

// DomassPrediction pairs a stage-15 row with its class-1 probability.
type DomassPrediction struct {
	Row  DomassRow
	Prob float64
}

// RunDomass implements stage 16: feed stage-15 rows through the
// classifier in fixed-size batches, tiling an input smaller than one
// batch up to batch size and slicing the result back down (spec.md
// stage 16).
func RunDomass(clf *classifier.Model, rows []DomassRow) ([]DomassPrediction, error) {
	out := make([]DomassPrediction, 0, len(rows))
	for start := 0; start < len(rows); start += domassBatchSize {
		end := start + domassBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		input := make([][]float64, len(batch))
		for i, r := range batch {
			input[i] = r.Features()
		}
		if len(input) < domassBatchSize {
			input = tileToBatch(input, domassBatchSize)
		}

		probs, err := clf.Predict(input)
		if err != nil {
			return nil, fmt.Errorf("stage16: %w", err)
		}
		for i, r := range batch {
			out = append(out, DomassPrediction{Row: r, Prob: probs[i]})
		}
	}
	return out, nil
}

// tileToBatch repeats rows (cycling) until it reaches width n.
func tileToBatch(rows [][]float64, n int) [][]float64 {
	if len(rows) == 0 {
		return rows
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = rows[i%len(rows)]
	}
	return out
}

// WriteDomassPredictions emits stage 16's primary output:
// domain, uid, p.
func WriteDomassPredictions(ctx *Context, preds []DomassPrediction) error {
	if err := ctx.Resolver.EnsureStageDir(model.RUN_DOMASS); err != nil {
		return fmt.Errorf("stage16: %w", err)
	}
	path := ctx.Resolver.StagePath(model.RUN_DOMASS, ctx.Prefix+".domass_predictions")
	return writeLines(path, func(w io.Writer) error {
		for _, p := range preds {
			_, err := fmt.Fprintf(w, "D%d\t%d\t%g\n", p.Row.DomainID, p.Row.UID, p.Prob)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
