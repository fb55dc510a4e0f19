// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iv provides residue-range overlap and coverage-gain queries
// built on github.com/biogo/store/interval's IntTree, generalising a
// containment query ("is this hit contained in a higher scorer") into
// "how many new residues does this range add" and "what fraction of
// this range overlaps that domain".
package iv

import (
	"github.com/biogo/store/interval"
)

// entry adapts a closed residue interval to interval.IntOverlapper.
type entry struct {
	id         uintptr
	start, end int // inclusive
}

func (e entry) Overlap(b interval.IntRange) bool {
	r := e.Range()
	return r.Start < b.End && b.Start < r.End
}
func (e entry) ID() uintptr { return e.id }
func (e entry) Range() interval.IntRange {
	// interval.IntRange is a half-open [Start,End) range; residues are
	// closed intervals, so End is exclusive-adjusted by +1.
	return interval.IntRange{Start: e.start, End: e.end + 1}
}

// Tree indexes a set of closed residue intervals for overlap queries.
type Tree struct {
	t        interval.IntTree
	built    bool
	nextID   uintptr
}

// NewTree builds a Tree from a set of closed [start,end] intervals.
func NewTree(intervals [][2]int) *Tree {
	tr := &Tree{}
	for _, iv := range intervals {
		tr.Insert(iv[0], iv[1])
	}
	tr.Build()
	return tr
}

// Insert adds a closed interval [start,end] to the tree. Build must be
// called after the last Insert and before any Query.
func (t *Tree) Insert(start, end int) {
	e := entry{id: t.nextID, start: start, end: end}
	t.nextID++
	_ = t.t.Insert(e, false)
	t.built = false
}

// Build finalises the tree for querying.
func (t *Tree) Build() {
	t.t.AdjustRanges()
	t.built = true
}

// Overlaps reports whether [start,end] overlaps any interval in the tree.
func (t *Tree) Overlaps(start, end int) bool {
	if !t.built {
		t.Build()
	}
	q := entry{start: start, end: end}
	return len(t.t.Get(q)) > 0
}

// CoverageGain returns the number of residues in [start,end] not
// already covered by any interval previously inserted into cov, given
// as a plain bool slice indexed by residue (1-based, cov[0] unused).
// This mirrors spec.md stage 4's coverage-array bookkeeping without
// needing a tree: a flat bitmap is the natural, cheap structure for a
// single running coverage array scanned once per hit.
func CoverageGain(cov []bool, start, end int) int {
	n := 0
	for r := start; r <= end && r < len(cov); r++ {
		if !cov[r] {
			n++
		}
	}
	return n
}

// MarkCovered marks [start,end] as covered in cov.
func MarkCovered(cov []bool, start, end int) {
	for r := start; r <= end && r < len(cov); r++ {
		cov[r] = true
	}
}

// FractionOverlap returns |a ∩ b| / |a|, or 0 when a is empty.
func FractionOverlap(a, b map[int]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	n := 0
	for r := range a {
		if b[r] {
			n++
		}
	}
	return float64(n) / float64(len(a))
}
