// Package paeio loads AlphaFold predicted-aligned-error matrices in the
// three accepted JSON shapes (spec.md §6), matching the teacher's
// bufio.Scanner-line-style tolerance for malformed data by treating a
// missing cell as legitimately absent rather than substituting zero.
package paeio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dpam-project/dpam/internal/model"
)

type denseForm struct {
	PredictedAlignedError [][]float64 `json:"predicted_aligned_error"`
}

type shortForm struct {
	PAE [][]float64 `json:"pae"`
}

type sparseForm struct {
	Residue1 []int     `json:"residue1"`
	Residue2 []int     `json:"residue2"`
	Distance []float64 `json:"distance"`
}

// Load parses a PAE JSON document, tolerating an optional outer array
// wrapping the object (AlphaFold's legacy `[{...}]` shape).
func Load(r io.Reader) (*model.PAE, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("paeio: %w", err)
	}
	obj, err := unwrapOuterArray(raw)
	if err != nil {
		return nil, fmt.Errorf("paeio: %w", err)
	}

	var dense denseForm
	if err := json.Unmarshal(obj, &dense); err == nil && len(dense.PredictedAlignedError) > 0 {
		return fromDense(dense.PredictedAlignedError), nil
	}

	var short shortForm
	if err := json.Unmarshal(obj, &short); err == nil && len(short.PAE) > 0 {
		return fromDense(short.PAE), nil
	}

	var sparse sparseForm
	if err := json.Unmarshal(obj, &sparse); err == nil && len(sparse.Residue1) > 0 {
		return fromSparse(sparse), nil
	}

	return nil, fmt.Errorf("paeio: unrecognised PAE document shape")
}

func unwrapOuterArray(raw []byte) ([]byte, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) == 0 {
			return nil, fmt.Errorf("empty PAE array")
		}
		return arr[0], nil
	}
	return raw, nil
}

func fromDense(m [][]float64) *model.PAE {
	n := len(m)
	p := &model.PAE{N: n, Value: make([][]float64, n), Has: make([][]bool, n)}
	for i := range m {
		p.Value[i] = make([]float64, n)
		p.Has[i] = make([]bool, n)
		for j := range m[i] {
			if j >= n {
				break
			}
			p.Value[i][j] = m[i][j]
			p.Has[i][j] = true
		}
	}
	return p
}

func fromSparse(s sparseForm) *model.PAE {
	n := 0
	for i := range s.Residue1 {
		if s.Residue1[i] > n {
			n = s.Residue1[i]
		}
		if s.Residue2[i] > n {
			n = s.Residue2[i]
		}
	}
	p := &model.PAE{N: n, Value: make([][]float64, n), Has: make([][]bool, n)}
	for i := range p.Value {
		p.Value[i] = make([]float64, n)
		p.Has[i] = make([]bool, n)
	}
	for k := range s.Residue1 {
		i, j := s.Residue1[k], s.Residue2[k]
		if i < 1 || j < 1 || i > n || j > n || k >= len(s.Distance) {
			continue
		}
		p.Value[i-1][j-1] = s.Distance[k]
		p.Has[i-1][j-1] = true
	}
	return p
}
