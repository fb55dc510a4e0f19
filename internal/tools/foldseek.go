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

// EasySearch builds the argv for a single-protein Foldseek search
// (spec.md stage 3): deliberately permissive e-value and very large
// --max-seqs so downstream filtering (stage 4), not Foldseek, decides
// significance.
//
// Usage: foldseek easy-search <query.pdb> <targetDB> <out> <tmp>
type EasySearch struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}foldseek{{end}}"`

	Sub string `buildarg:"easy-search"`

	Query    string `buildarg:"{{.}}"`
	Target   string `buildarg:"{{.}}"`
	Out      string `buildarg:"{{.}}"`
	TmpDir   string `buildarg:"{{.}}"`
	EValue   string `buildarg:"{{if .}}--e-profile{{split}}{{.}}{{end}}"`
	MaxSeqs  int    `buildarg:"{{if .}}--max-seqs{{split}}{{.}}{{end}}"`
	Format   string `buildarg:"{{if .}}--format-output{{split}}{{.}}{{end}}"`
	Threads  int    `buildarg:"{{if .}}--threads{{split}}{{.}}{{end}}"`
}

func (e EasySearch) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(e))
	return exec.Command(cl[0], cl[1:]...), nil
}

// CreateDB, Search and ConvertAlis implement the batch-mode Foldseek
// pipeline (spec.md §4.C "Batch Foldseek"): createdb -> search ->
// convertalis against a single symlinked-query directory.

type CreateDB struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}foldseek{{end}}"`
	Sub string `buildarg:"createdb"`

	In  string `buildarg:"{{.}}"`
	Out string `buildarg:"{{.}}"`
}

func (c CreateDB) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(c))
	return exec.Command(cl[0], cl[1:]...), nil
}

type Search struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}foldseek{{end}}"`
	Sub string `buildarg:"search"`

	QueryDB  string `buildarg:"{{.}}"`
	TargetDB string `buildarg:"{{.}}"`
	Out      string `buildarg:"{{.}}"`
	TmpDir   string `buildarg:"{{.}}"`
	MaxSeqs  int    `buildarg:"{{if .}}--max-seqs{{split}}{{.}}{{end}}"`
	EValue   string `buildarg:"{{if .}}-e{{split}}{{.}}{{end}}"`
	Threads  int    `buildarg:"{{if .}}--threads{{split}}{{.}}{{end}}"`
}

func (s Search) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(s))
	return exec.Command(cl[0], cl[1:]...), nil
}

type ConvertAlis struct {
	Cmd string `buildarg:"{{if .}}{{.}}{{else}}foldseek{{end}}"`
	Sub string `buildarg:"convertalis"`

	QueryDB  string `buildarg:"{{.}}"`
	TargetDB string `buildarg:"{{.}}"`
	AlnDB    string `buildarg:"{{.}}"`
	Out      string `buildarg:"{{.}}"`
	Format   string `buildarg:"{{if .}}--format-output{{split}}{{.}}{{end}}"`
}

func (c ConvertAlis) BuildCommand() (*exec.Cmd, error) {
	cl := external.Must(external.Build(c))
	return exec.Command(cl[0], cl[1:]...), nil
}

// DefaultEValue is the deliberately permissive Foldseek e-value from
// spec.md stage 3.
const DefaultEValue = "1e6"

// DefaultMaxSeqs is the very large --max-seqs used so that stage 4, not
// Foldseek, is the significance filter.
const DefaultMaxSeqs = 1000000

// Hit is one BLAST-tab-style Foldseek result row (query, target, ...).
type Hit struct {
	Query      string
	Target     string // ECOD key or pdb_chain id, adapter-dependent
	PctIdent   float64
	AlnLen     int
	Mismatches int
	GapOpens   int
	QStart     int // 1-based
	QEnd       int
	TStart     int // 1-based
	TEnd       int
	EValue     float64
	BitScore   float64
}

// ParseTabular parses Foldseek's BLAST-tab "--format-output" result
// stream, matching blast.ParseTabular's whitespace-tolerant,
// per-record error-wrapped approach.
func ParseTabular(r io.Reader) ([]Hit, error) {
	const numFields = 12
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<22)
	var hits []Hit
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < numFields {
			return hits, fmt.Errorf("tools: foldseek: unexpected field count: %q", line)
		}
		h := Hit{Query: f[0], Target: f[1]}
		var err error
		h.PctIdent, err = strconv.ParseFloat(f[2], 64)
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.AlnLen, err = strconv.Atoi(f[3])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.Mismatches, err = strconv.Atoi(f[4])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.GapOpens, err = strconv.Atoi(f[5])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.QStart, err = strconv.Atoi(f[6])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.QEnd, err = strconv.Atoi(f[7])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.TStart, err = strconv.Atoi(f[8])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.TEnd, err = strconv.Atoi(f[9])
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.EValue, err = strconv.ParseFloat(f[10], 64)
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		h.BitScore, err = strconv.ParseFloat(f[11], 64)
		if err != nil {
			return hits, fmt.Errorf("tools: foldseek: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, sc.Err()
}

// SplitByQuery partitions a combined batch-mode result stream by its
// first column (query id), mirroring spec.md §4.C's "splits the
// combined BLAST-tab result by the first column (query id) into
// per-protein files".
func SplitByQuery(hits []Hit) map[string][]Hit {
	out := make(map[string][]Hit)
	for _, h := range hits {
		out[h.Query] = append(out[h.Query], h)
	}
	return out
}
