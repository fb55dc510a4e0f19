package classifier

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeIdentityCheckpoint(t *testing.T, dir string) string {
	t.Helper()
	kernel0 := make([][]float64, NumFeatures)
	for i := range kernel0 {
		row := make([]float64, hiddenWidth)
		if i < hiddenWidth {
			row[i] = 1
		}
		kernel0[i] = row
	}
	bias0 := make([]float64, hiddenWidth)
	kernel1 := make([][]float64, hiddenWidth)
	for i := range kernel1 {
		kernel1[i] = []float64{0, 0}
	}
	// Route hidden unit 0 strongly to the class-1 logit.
	kernel1[0] = []float64{0, 10}
	bias1 := []float64{0, 0}

	ck := checkpoint{DenseKernel: kernel0, DenseBias: bias0, Dense1Kernel: kernel1, Dense1Bias: bias1}
	path := filepath.Join(dir, "ckpt.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, json.NewEncoder(f).Encode(ck))
	return path
}

func TestPredictHighConfidence(t *testing.T) {
	dir := t.TempDir()
	path := writeIdentityCheckpoint(t, dir)
	m, err := Load(path)
	require.NoError(t, err)

	row := make([]float64, NumFeatures)
	row[0] = 5 // drives hidden unit 0 positive through ReLU
	probs, err := m.Predict([][]float64{row})
	require.NoError(t, err)
	require.Len(t, probs, 1)
	require.Greater(t, probs[0], 0.9)
}

func TestPredictRejectsWrongWidth(t *testing.T) {
	dir := t.TempDir()
	path := writeIdentityCheckpoint(t, dir)
	m, err := Load(path)
	require.NoError(t, err)
	_, err = m.Predict([][]float64{{1, 2, 3}})
	require.Error(t, err)
}
