// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ckpt persists PipelineState and BatchState as JSON files with
// write-temp-then-rename semantics (spec.md §4.E). The on-disk format is
// a compatibility contract (spec.md §6 names the exact files), so this
// package deliberately uses plain JSON rather than the binary KV format
// used elsewhere in DPAM for the batch Foldseek cache (internal/batch).
package ckpt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dpam-project/dpam/internal/model"
)

// ProteinPath returns the per-protein checkpoint path at root for prefix,
// per spec.md §6: ".{prefix}.dpam_state.json" at the root.
func ProteinPath(root, prefix string) string {
	return filepath.Join(root, "."+prefix+".dpam_state.json")
}

// BatchPath returns the batch checkpoint path at root, per spec.md §6:
// "_batch_state.json" at the root.
func BatchPath(root string) string {
	return filepath.Join(root, "_batch_state.json")
}

// LoadProtein reads a per-protein checkpoint, returning a fresh empty
// state (not an error) if the file does not yet exist.
func LoadProtein(root, prefix string) (*model.PipelineState, error) {
	path := ProteinPath(root, prefix)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.NewPipelineState(prefix, root), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ckpt: read %s: %w", path, err)
	}
	var st model.PipelineState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("ckpt: decode %s: %w", path, err)
	}
	if st.Completed == nil {
		st.Completed = make(map[model.Stage]bool)
	}
	if st.Failed == nil {
		st.Failed = make(map[model.Stage]string)
	}
	if st.Metadata == nil {
		st.Metadata = make(map[string]interface{})
	}
	return &st, nil
}

// SaveProtein atomically writes a per-protein checkpoint.
func SaveProtein(root string, st *model.PipelineState) error {
	return atomicWriteJSON(ProteinPath(root, st.Prefix), st)
}

// LoadBatch reads the batch checkpoint, returning a fresh empty state if
// the file does not yet exist.
func LoadBatch(root string) (*model.BatchState, error) {
	path := BatchPath(root)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.NewBatchState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ckpt: read %s: %w", path, err)
	}
	var bs model.BatchState
	if err := json.Unmarshal(b, &bs); err != nil {
		return nil, fmt.Errorf("ckpt: decode %s: %w", path, err)
	}
	if bs.Stages == nil {
		bs.Stages = make(map[model.Stage]map[string]model.Status)
	}
	return &bs, nil
}

// SaveBatch atomically writes the batch checkpoint.
func SaveBatch(root string, bs *model.BatchState) error {
	return atomicWriteJSON(BatchPath(root), bs)
}

// atomicWriteJSON marshals v and writes it to path via a temp file in
// the same directory followed by an atomic rename, so a crash mid-write
// never leaves a truncated checkpoint behind.
func atomicWriteJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("ckpt: encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("ckpt: create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("ckpt: write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("ckpt: sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("ckpt: close temp for %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("ckpt: rename temp over %s: %w", path, err)
	}
	return nil
}

// Summarize loads the batch checkpoint at root and returns per-stage
// complete/failed counts with a bounded failure tail, for the
// batch-status CLI subcommand.
func Summarize(root string, tailLen int) ([]model.Summary, error) {
	bs, err := LoadBatch(root)
	if err != nil {
		return nil, err
	}
	return bs.Summarize(tailLen), nil
}
