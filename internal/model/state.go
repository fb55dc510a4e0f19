// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

// PipelineState is the per-protein checkpoint record (spec.md §3).
type PipelineState struct {
	Prefix     string                 `json:"prefix"`
	WorkingDir string                 `json:"working_dir"`
	Completed  map[Stage]bool         `json:"completed"`
	Failed     map[Stage]string       `json:"failed"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// NewPipelineState returns an empty state for prefix rooted at dir.
func NewPipelineState(prefix, dir string) *PipelineState {
	return &PipelineState{
		Prefix:     prefix,
		WorkingDir: dir,
		Completed:  make(map[Stage]bool),
		Failed:     make(map[Stage]string),
		Metadata:   make(map[string]interface{}),
	}
}

// MarkComplete records stage as completed and clears any prior failure.
func (s *PipelineState) MarkComplete(stage Stage) {
	s.Completed[stage] = true
	delete(s.Failed, stage)
}

// MarkFailed records stage as failed with reason.
func (s *PipelineState) MarkFailed(stage Stage, reason string) {
	s.Failed[stage] = reason
}

// Status is a batch-level per-protein-per-stage status (spec.md §3).
type Status string

const StatusComplete Status = "complete"

// StatusFailed formats a "failed: <reason>" status.
func StatusFailed(reason string) Status {
	return Status("failed: " + reason)
}

// IsFailed reports whether a Status denotes a failure.
func (s Status) IsFailed() bool {
	return len(s) >= 7 && s[:7] == "failed:"
}

// BatchState is map<Stage, map<Prefix, Status>> (spec.md §3).
type BatchState struct {
	Stages map[Stage]map[string]Status `json:"stages"`
}

// NewBatchState returns an empty batch state.
func NewBatchState() *BatchState {
	return &BatchState{Stages: make(map[Stage]map[string]Status)}
}

// Set records the status of prefix at stage.
func (b *BatchState) Set(stage Stage, prefix string, status Status) {
	m, ok := b.Stages[stage]
	if !ok {
		m = make(map[string]Status)
		b.Stages[stage] = m
	}
	m[prefix] = status
}

// Get returns the status of prefix at stage, and whether it is present.
func (b *BatchState) Get(stage Stage, prefix string) (Status, bool) {
	m, ok := b.Stages[stage]
	if !ok {
		return "", false
	}
	s, ok := m[prefix]
	return s, ok
}

// SeedFrom copies only the completed set from per-protein states into
// the batch state, never the failed map, per spec.md §4.E: this allows
// re-attempts when a batch is seeded from pre-existing per-protein
// checkpoints.
func (b *BatchState) SeedFrom(prefix string, ps *PipelineState) {
	for stage := range ps.Completed {
		b.Set(stage, prefix, StatusComplete)
	}
}

// Summary holds complete/failed counts for one stage, used by
// batch-status and the summary batch-run prints when it finishes.
type Summary struct {
	Stage    Stage
	Complete int
	Failed   int
	Tail     []string // tail of individual failure descriptions
}

// Summarize computes per-stage complete/failed counts, with a bounded
// tail of failure descriptions per stage.
func (b *BatchState) Summarize(tailLen int) []Summary {
	out := make([]Summary, 0, len(b.Stages))
	for stage, m := range b.Stages {
		s := Summary{Stage: stage}
		for prefix, status := range m {
			if status.IsFailed() {
				s.Failed++
				if len(s.Tail) < tailLen {
					s.Tail = append(s.Tail, prefix+": "+string(status))
				}
			} else {
				s.Complete++
			}
		}
		out = append(out, s)
	}
	return out
}
