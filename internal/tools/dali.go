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
)

// DaliAlign builds the argv for one DALI pairwise structural alignment
// (spec.md stage 7). DALI's 80-character path limit means callers must
// pass short, locally-copied paths for Query/Template (spec.md §9
// design note).
//
// Usage: dali.pl --pdbfile1 <query> --pdbfile2 <template> --outfmt summary
type DaliAlign struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}dali.pl{{end}}"`

	Query    string `buildarg:"--pdbfile1{{split}}{{.}}"`
	Template string `buildarg:"--pdbfile2{{split}}{{.}}"`
	OutFmt   string `buildarg:"{{if .}}--outfmt{{split}}{{.}}{{end}}"`

	ExtraFlags string
}

func (d DaliAlign) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(d))
	var extra []string
	if d.ExtraFlags != "" {
		extra = strings.Split(d.ExtraFlags, " ")
	}
	return exec.Command(cl[0], append(cl[1:], extra...)...), nil
}

// AlignedPair is one (query residue, template residue) correspondence
// from a DALI alignment, 1-based.
type AlignedPair struct {
	Query, Template int
}

// DaliResult is the parsed outcome of one DaliAlign invocation:
// (z, [(qi,ti)...]) per spec.md stage 7 step (a). Z is reported via HasZ
// since "z missing" is itself meaningful (stage 7 stop condition).
type DaliResult struct {
	HasZ      bool
	Z         float64
	Alignment []AlignedPair
}

// ParseSummary parses DALI's summary alignment output: a header line
// "# Z-score: <f>" (absent if DALI found no significant match) followed
// by "query_resid template_resid" pair lines.
func ParseSummary(r io.Reader) (DaliResult, error) {
	var res DaliResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "# Z-score:") {
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "# Z-score:")), 64)
			if err != nil {
				continue // malformed header: treat as "no z" rather than fatal
			}
			res.Z = v
			res.HasZ = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		qi, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		ti, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		res.Alignment = append(res.Alignment, AlignedPair{Query: qi, Template: ti})
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("tools: read dali summary: %w", err)
	}
	return res, nil
}
