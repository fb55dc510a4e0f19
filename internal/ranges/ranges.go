// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ranges provides parsing and deterministic emission of residue
// range strings of the form "a1-b1,a2-b2,..." used throughout DPAM to
// serialise sorted unions of closed integer intervals.
package ranges

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Interval is a closed residue interval [Start, End], Start <= End.
type Interval struct {
	Start, End int
}

// Parse decodes a range string into the sorted set of residues it denotes.
// Both "n" and "n-n" are accepted for single-residue intervals.
func Parse(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "na" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var a, b int
		if i := strings.IndexByte(part, '-'); i > 0 {
			var err error
			a, err = strconv.Atoi(part[:i])
			if err != nil {
				return nil, fmt.Errorf("ranges: bad interval %q: %w", part, err)
			}
			b, err = strconv.Atoi(part[i+1:])
			if err != nil {
				return nil, fmt.Errorf("ranges: bad interval %q: %w", part, err)
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("ranges: bad interval %q: %w", part, err)
			}
			a, b = n, n
		}
		if b < a {
			return nil, fmt.Errorf("ranges: inverted interval %q", part)
		}
		for r := a; r <= b; r++ {
			out = append(out, r)
		}
	}
	return out, nil
}

// ParseIntervals decodes a range string into its constituent closed
// intervals without expanding them into individual residues.
func ParseIntervals(s string) ([]Interval, error) {
	residues, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return ToIntervals(residues), nil
}

// ToIntervals collapses an arbitrary (not necessarily sorted or unique)
// set of residues into its sorted maximal-run interval representation.
func ToIntervals(residues []int) []Interval {
	if len(residues) == 0 {
		return nil
	}
	uniq := uniqueSorted(residues)
	var out []Interval
	start := uniq[0]
	prev := uniq[0]
	for _, r := range uniq[1:] {
		if r == prev+1 {
			prev = r
			continue
		}
		out = append(out, Interval{start, prev})
		start, prev = r, r
	}
	out = append(out, Interval{start, prev})
	return out
}

// Emit serialises a residue set into its canonical, byte-for-byte
// reproducible "a1-b1,a2-b2,..." form. A single-residue interval is
// emitted as "n-n" for uniformity; callers that require the bare "n"
// form for singletons should use EmitCompact.
func Emit(residues []int) string {
	ivs := ToIntervals(residues)
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		parts[i] = fmt.Sprintf("%d-%d", iv.Start, iv.End)
	}
	return strings.Join(parts, ",")
}

// EmitCompact is like Emit but renders single-residue intervals as a
// bare "n" rather than "n-n".
func EmitCompact(residues []int) string {
	ivs := ToIntervals(residues)
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		if iv.Start == iv.End {
			parts[i] = strconv.Itoa(iv.Start)
		} else {
			parts[i] = fmt.Sprintf("%d-%d", iv.Start, iv.End)
		}
	}
	return strings.Join(parts, ",")
}

// EmitIntervals serialises a slice of intervals directly, assuming the
// caller has already produced the sorted, non-overlapping, maximal-run
// form it wants on the wire (used where intervals carry meaning beyond
// their residue membership, e.g. unmerged stage output).
func EmitIntervals(ivs []Interval) string {
	parts := make([]string, len(ivs))
	for i, iv := range ivs {
		parts[i] = fmt.Sprintf("%d-%d", iv.Start, iv.End)
	}
	return strings.Join(parts, ",")
}

func uniqueSorted(residues []int) []int {
	cp := append([]int(nil), residues...)
	sort.Ints(cp)
	i := 0
	for _, v := range cp {
		if i == 0 || cp[i-1] != v {
			cp[i] = v
			i++
		}
	}
	return cp[:i]
}

// Set returns residues as a lookup set.
func Set(residues []int) map[int]bool {
	m := make(map[int]bool, len(residues))
	for _, r := range residues {
		m[r] = true
	}
	return m
}

// Union returns the sorted union of several residue sets.
func Union(sets ...[]int) []int {
	m := make(map[int]bool)
	for _, s := range sets {
		for _, r := range s {
			m[r] = true
		}
	}
	out := make([]int, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Mean returns the arithmetic mean residue of a set, used to order
// domains by ascending mean residue (spec.md stage 13/24).
func Mean(residues []int) float64 {
	if len(residues) == 0 {
		return 0
	}
	sum := 0
	for _, r := range residues {
		sum += r
	}
	return float64(sum) / float64(len(residues))
}

// Overlap returns the number of residues common to a and b.
func Overlap(a, b []int) int {
	sb := Set(b)
	n := 0
	for _, r := range a {
		if sb[r] {
			n++
		}
	}
	return n
}

// MergeGaps returns the residue set with inter-run gaps filled according
// to predicate keep(gapResidues) -> bool, used by stage 9/10/13.
func MergeGaps(residues []int, keep func(gap []int) bool) []int {
	ivs := ToIntervals(residues)
	if len(ivs) < 2 {
		return append([]int(nil), residues...)
	}
	out := append([]int(nil), residues...)
	for i := 0; i+1 < len(ivs); i++ {
		gapStart := ivs[i].End + 1
		gapEnd := ivs[i+1].Start - 1
		if gapStart > gapEnd {
			continue
		}
		gap := make([]int, 0, gapEnd-gapStart+1)
		for r := gapStart; r <= gapEnd; r++ {
			gap = append(gap, r)
		}
		if keep(gap) {
			out = append(out, gap...)
		}
	}
	return uniqueSorted(out)
}
