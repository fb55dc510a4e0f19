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

// HHsearch builds the argv for an hhsearch invocation against the ECOD
// profile database (spec.md stage 2).
//
// Usage: hhsearch -i <profile> -d <db> -o <report>
type HHsearch struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}hhsearch{{end}}"`

	Input    string `buildarg:"-i{{split}}{{.}}"`
	Database string `buildarg:"-d{{split}}{{.}}"`
	Output   string `buildarg:"-o{{split}}{{.}}"`
	CPU      int    `buildarg:"{{if .}}-cpu{{split}}{{.}}{{end}}"`

	ExtraFlags string
}

func (h HHsearch) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(h))
	var extra []string
	if h.ExtraFlags != "" {
		extra = strings.Split(h.ExtraFlags, " ")
	}
	return exec.Command(cl[0], append(cl[1:], extra...)...), nil
}

// HHBlits builds the argv for the MSA-construction step that precedes
// hhsearch (spec.md stage 2: "produce a multiple-sequence-alignment
// profile").
//
// Usage: hhblits -i <fasta> -d <db> -oa3m <profile>
type HHBlits struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}hhblits{{end}}"`

	Input    string `buildarg:"-i{{split}}{{.}}"`
	Database string `buildarg:"-d{{split}}{{.}}"`
	OutA3M   string `buildarg:"-oa3m{{split}}{{.}}"`
	CPU      int    `buildarg:"{{if .}}-cpu{{split}}{{.}}{{end}}"`
	Iters    int    `buildarg:"{{if .}}-n{{split}}{{.}}{{end}}"`

	ExtraFlags string
}

func (h HHBlits) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(h))
	var extra []string
	if h.ExtraFlags != "" {
		extra = strings.Split(h.ExtraFlags, " ")
	}
	return exec.Command(cl[0], append(cl[1:], extra...)...), nil
}

// AddSS builds the argv for PSIPRED secondary-structure annotation of an
// MSA (spec.md stage 2: "optionally annotate it with PSIPRED secondary
// structure (skippable)").
//
// Usage: addss.pl <in a3m> <out a3m>
type AddSS struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}addss.pl{{end}}"`

	Input  string `buildarg:"{{.}}"`
	Output string `buildarg:"{{.}}"`
}

func (a AddSS) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(a))
	return exec.Command(cl[0], cl[1:]...), nil
}

// HHRecord is one parsed alignment from an hhsearch report (spec.md
// stage 2/5). Only the fields stage 5's mapping needs are retained; the
// gapped query/template alignment strings carry the full per-column
// correspondence.
type HHRecord struct {
	HitID         string // e.g. a PDB chain identifier usable as ecod_pdbmap key
	Prob          float64
	EValue        float64
	Score         float64
	QueryStart    int // 1-based
	QueryAlign    string
	TemplateStart int // 1-based, PDB numbering
	TemplateAlign string
}

// ParseHHR parses an HHsearch .hhr report. Individual malformed hit
// blocks are skipped with the error swallowed by the caller (spec.md
// §7 "Parsing degradations"); a totally unreadable stream is fatal.
func ParseHHR(r io.Reader) ([]HHRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)

	var recs []HHRecord
	var cur *HHRecord
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, ">"):
			if cur != nil {
				recs = append(recs, *cur)
			}
			cur = &HHRecord{HitID: strings.TrimSpace(strings.TrimPrefix(line, ">"))}
			if i := strings.IndexAny(cur.HitID, " \t"); i >= 0 {
				cur.HitID = cur.HitID[:i]
			}
		case strings.HasPrefix(line, "Probab="):
			if cur == nil {
				continue
			}
			parseHHRSummary(line, cur)
		case strings.HasPrefix(line, "Q "):
			if cur == nil {
				continue
			}
			appendHHRAlignRow(line, true, cur)
		case strings.HasPrefix(line, "T "):
			if cur == nil {
				continue
			}
			appendHHRAlignRow(line, false, cur)
		}
	}
	if cur != nil {
		recs = append(recs, *cur)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tools: read hhr: %w", err)
	}
	return recs, nil
}

// parseHHRSummary parses a line of the form:
// "Probab=99.12  E-value=1.2e-10  Score=123.4  ..."
func parseHHRSummary(line string, cur *HHRecord) {
	for _, field := range strings.Fields(line) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimRight(kv[1], "%"), 64)
		if err != nil {
			continue
		}
		switch kv[0] {
		case "Probab":
			cur.Prob = v
		case "E-value":
			cur.EValue = v
		case "Score":
			cur.Score = v
		}
	}
}

// appendHHRAlignRow accumulates one "Q " or "T " alignment block line
// into the record's running alignment strings and start coordinate.
// HHsearch wraps alignments across multiple blocks; fields are
// "Q<ws>name<ws>start<ws>seq<ws>end<ws>...".
func appendHHRAlignRow(line string, isQuery bool, cur *HHRecord) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return
	}
	start, err := strconv.Atoi(fields[2])
	if err != nil {
		return
	}
	seq := fields[3]
	if isQuery {
		if cur.QueryAlign == "" {
			cur.QueryStart = start
		}
		cur.QueryAlign += seq
	} else {
		if cur.TemplateAlign == "" {
			cur.TemplateStart = start
		}
		cur.TemplateAlign += seq
	}
}
