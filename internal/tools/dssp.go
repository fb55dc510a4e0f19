// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tools

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/biogo/external"

	"github.com/dpam-project/dpam/internal/model"
)

// Mkdssp builds the argv for a DSSP run over the stage-1 PDB (spec.md
// stage 11).
//
// Usage: mkdssp <in.pdb> <out.dssp>
type Mkdssp struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}mkdssp{{end}}"`

	Input  string `buildarg:"{{.}}"`
	Output string `buildarg:"{{.}}"`
}

func (m Mkdssp) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(m))
	return exec.Command(cl[0], cl[1:]...), nil
}

// dsspAlphabet collapses DSSP's eight-letter code to {H,E,C} per
// spec.md §4.D stage 11.
var dsspAlphabet = map[byte]model.SSEType{
	'H': model.Helix, 'G': model.Helix, 'I': model.Helix,
	'E': model.Strand, 'B': model.Strand,
	'T': model.Coil, 'S': model.Coil, ' ': model.Coil,
}

// RawResidue is one uncollapsed DSSP residue record before segmentation.
type RawResidue struct {
	Resid int
	AA    byte
	Code  byte // raw DSSP secondary structure letter
}

// ParseDSSP parses an mkdssp output file's "  #  RESIDUE AA STRUCTURE"
// data block. Lines before the data block (everything up to and
// including the "  #  RESIDUE" header) are skipped.
func ParseDSSP(r io.Reader) ([]RawResidue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	inBody := false
	var out []RawResidue
	for sc.Scan() {
		line := sc.Text()
		if !inBody {
			if strings.HasPrefix(strings.TrimSpace(line), "#  RESIDUE") {
				inBody = true
			}
			continue
		}
		if len(line) < 17 {
			continue
		}
		residField := strings.TrimSpace(line[5:10])
		if residField == "" {
			continue // chain break marker ("!")
		}
		resid, err := strconv.Atoi(residField)
		if err != nil {
			continue
		}
		aa := line[13]
		code := line[16]
		out = append(out, RawResidue{Resid: resid, AA: aa, Code: code})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tools: read dssp: %w", err)
	}
	return out, nil
}

// Collapse converts raw DSSP residues into the collapsed {H,E,C}
// alphabet (spec.md §4.D stage 11 and §3 "SSE annotation").
func Collapse(raw []RawResidue) []model.SSEResidue {
	out := make([]model.SSEResidue, len(raw))
	for i, r := range raw {
		t, ok := dsspAlphabet[r.Code]
		if !ok {
			t = model.Coil
		}
		out[i] = model.SSEResidue{Resid: r.Resid, AA: r.AA, Type: t}
	}
	return out
}

// Psipred builds the argv for the PSIPRED secondary-structure predictor
// invoked ahead of HHsearch profile annotation (spec.md stage 2).
//
// Usage: psipred <in.fasta>
type Psipred struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}psipred{{end}}"`

	Input string `buildarg:"{{.}}"`
}

func (p Psipred) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(p))
	return exec.Command(cl[0], cl[1:]...), nil
}
