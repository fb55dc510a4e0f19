// Package classifier runs the frozen feed-forward DOMASS model: a
// fixed 13-wide input through dense(64, ReLU) -> dense(2) -> softmax,
// returning the class-1 probability (spec.md §4.H, §9 "Classifier
// boundary"). The forward pass is three gonum.org/v1/gonum/mat
// operations, grounded on the model's own recommendation to avoid a
// heavyweight ML runtime for a three-operation network.
package classifier

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// NumFeatures is the fixed width of a stage-15 feature row.
const NumFeatures = 13

const hiddenWidth = 64

// checkpoint is the on-disk JSON representation of the frozen
// variables dense/kernel, dense/bias, dense_1/kernel, dense_1/bias.
// spec.md's reference-data layout names the upstream artifact
// domass_epo29.{meta,index,data*}, a real TensorFlow checkpoint; no
// repo in the retrieved corpus links a TensorFlow client or a
// protobuf library (the .meta file is a serialized MetaGraphDef, and
// the .index file is itself a sorted-string-table format), so there is
// no example-grounded way to parse that triad directly. DPAM instead
// reads the four frozen tensors from a domass_epo29.weights.json
// sidecar, produced once from the real checkpoint by the conversion
// step recorded in DESIGN.md's Classifier section.
type checkpoint struct {
	DenseKernel   [][]float64 `json:"dense/kernel"`   // [13][64]
	DenseBias     []float64   `json:"dense/bias"`     // [64]
	Dense1Kernel  [][]float64 `json:"dense_1/kernel"` // [64][2]
	Dense1Bias    []float64   `json:"dense_1/bias"`   // [2]
}

// Model holds the loaded, frozen weights as dense matrices.
type Model struct {
	w0 *mat.Dense // 13x64
	b0 []float64  // 64
	w1 *mat.Dense // 64x2
	b1 []float64  // 2
}

// Load reads the checkpoint sidecar at path (see
// refdata.ClassifierCheckpointPath for how DPAM locates it within a
// reference-data directory).
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	defer f.Close()

	var ck checkpoint
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&ck); err != nil {
		return nil, fmt.Errorf("classifier: decode checkpoint: %w", err)
	}
	if len(ck.DenseKernel) != NumFeatures {
		return nil, fmt.Errorf("classifier: dense/kernel has %d input rows, want %d", len(ck.DenseKernel), NumFeatures)
	}
	w0 := mat.NewDense(NumFeatures, hiddenWidth, nil)
	for i, row := range ck.DenseKernel {
		for j, v := range row {
			w0.Set(i, j, v)
		}
	}
	w1 := mat.NewDense(hiddenWidth, 2, nil)
	for i, row := range ck.Dense1Kernel {
		for j, v := range row {
			w1.Set(i, j, v)
		}
	}
	return &Model{w0: w0, b0: ck.DenseBias, w1: w1, b1: ck.Dense1Bias}, nil
}

// Predict runs the forward pass over a batch of feature rows (each
// NumFeatures wide) and returns the class-1 probability per row.
// Batch size is handled by the caller (spec.md stage 16: "Batch size =
// 100. Input smaller than a batch: tile the input, run, slice back to
// original size."); Predict itself has no batching opinion — it
// processes whatever rows it is given.
func (m *Model) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for r, row := range rows {
		if len(row) != NumFeatures {
			return nil, fmt.Errorf("classifier: row %d has %d features, want %d", r, len(row), NumFeatures)
		}
		x := mat.NewDense(1, NumFeatures, row)

		var h mat.Dense
		h.Mul(x, m.w0)
		for j := 0; j < hiddenWidth; j++ {
			v := h.At(0, j) + m.b0[j]
			if v < 0 {
				v = 0
			}
			h.Set(0, j, v)
		}

		var logits mat.Dense
		logits.Mul(&h, m.w1)
		l0 := logits.At(0, 0) + m.b1[0]
		l1 := logits.At(0, 1) + m.b1[1]
		out[r] = softmaxClass1(l0, l1)
	}
	return out, nil
}

// softmaxClass1 returns the softmax probability of the second logit,
// numerically stabilised by subtracting the row max.
func softmaxClass1(l0, l1 float64) float64 {
	m := l0
	if l1 > m {
		m = l1
	}
	e0 := expShifted(l0, m)
	e1 := expShifted(l1, m)
	return e1 / (e0 + e1)
}

func expShifted(l, shift float64) float64 {
	return math.Exp(l - shift)
}
