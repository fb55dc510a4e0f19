// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pathresolver maps (root_dir, layout, stage) to an output
// directory (spec.md §4.B).
package pathresolver

import (
	"os"
	"path/filepath"

	"github.com/dpam-project/dpam/internal/model"
)

// Layout is the on-disk arrangement of a DPAM working directory.
type Layout int

const (
	Sharded Layout = iota
	Flat
)

// stageDirs maps a stage to its sharded subdirectory name, "step{NN}_{name}".
var stageDirs = map[model.Stage]string{
	model.PREPARE:               "step01_prepare",
	model.HHSEARCH:              "step02_hhsearch",
	model.FOLDSEEK:              "step03_foldseek",
	model.FOLDSEEK_FILTER:       "step04_foldseek_filter",
	model.MAP_ECOD:              "step05_map_ecod",
	model.DALI_CANDIDATES:       "step06_dali_candidates",
	model.ITERATIVE_DALI:        "step07_iterative_dali",
	model.ANALYSE_DALI:          "step08_analyse_dali",
	model.GET_SUPPORT:           "step09_get_support",
	model.FILTER_GOOD_DOMAINS:   "step10_filter_good_domains",
	model.SSE:                   "step11_sse",
	model.DISORDER:              "step12_disorder",
	model.PARSE_DOMAINS:         "step13_parse_domains",
	model.PREPARE_DOMASS:        "step15_prepare_domass",
	model.RUN_DOMASS:            "step16_run_domass",
	model.CONFIDENT_PREDICTIONS: "step17_confident_predictions",
	model.MAP_CONFIDENT:         "step18_mappings",
	model.MERGE_CANDIDATES:      "step19_merge_candidates",
	model.EXTRACT_DOMAIN_PDBS:   "step20_extract_domains",
	model.CONNECTIVITY:          "step21_comparisons",
	model.MERGE:                 "step22_merged_domains",
	model.CLASSIFY:              "step23_predictions",
	model.INTEGRATE:             "step24_integrate",
}

// Resolver resolves output directories for one working root.
type Resolver struct {
	Root   string
	Layout Layout
}

// New builds a Resolver for root, auto-detecting its layout.
func New(root string) *Resolver {
	return &Resolver{Root: root, Layout: DetectLayout(root)}
}

// DetectLayout implements spec.md §4.B:
// detect_layout(root) = sharded iff step01_prepare/ exists as a directory.
func DetectLayout(root string) Layout {
	fi, err := os.Stat(filepath.Join(root, "step01_prepare"))
	if err == nil && fi.IsDir() {
		return Sharded
	}
	return Flat
}

// StageDir returns the directory stage's primary output lives in.
func (r *Resolver) StageDir(stage model.Stage) string {
	if r.Layout == Flat {
		return r.Root
	}
	name, ok := stageDirs[stage]
	if !ok {
		return r.Root
	}
	return filepath.Join(r.Root, name)
}

// BatchDir returns the shared batch-artefact directory, always under
// "_batch/" regardless of layout granularity beyond sharded-vs-flat
// (batch mode only runs in sharded layout in practice, but the path is
// well defined either way).
func (r *Resolver) BatchDir() string {
	return filepath.Join(r.Root, "_batch")
}

// ResultsDir returns the "results/" directory that final domain files
// are additionally copied into under sharded layout.
func (r *Resolver) ResultsDir() string {
	return filepath.Join(r.Root, "results")
}

// InputPath returns the path of a root-level user input file
// (".cif"/".pdb"/".json"), which always lives at the root regardless of
// layout.
func (r *Resolver) InputPath(prefix, ext string) string {
	return filepath.Join(r.Root, prefix+ext)
}

// StagePath joins StageDir(stage) with a filename.
func (r *Resolver) StagePath(stage model.Stage, name string) string {
	return filepath.Join(r.StageDir(stage), name)
}

// EnsureStageDir creates stage's output directory if the layout is
// sharded; a no-op under flat layout since everything lives at root.
func (r *Resolver) EnsureStageDir(stage model.Stage) error {
	dir := r.StageDir(stage)
	return os.MkdirAll(dir, 0o755)
}

// EnsureResultsDir creates the results/ directory (sharded layout only
// meaningfully; harmless under flat).
func (r *Resolver) EnsureResultsDir() error {
	return os.MkdirAll(r.ResultsDir(), 0o755)
}
