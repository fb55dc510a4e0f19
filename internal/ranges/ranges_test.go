// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ranges

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"1-1",
		"1-5",
		"1-5,10-20",
		"3-3,7-9,100-100",
	}
	for _, c := range cases {
		residues, err := Parse(c)
		require.NoError(t, err)
		require.Equal(t, c, Emit(residues))
	}
}

func TestParseBareSingle(t *testing.T) {
	residues, err := Parse("5")
	require.NoError(t, err)
	require.Equal(t, []int{5}, residues)
}

func TestParseNA(t *testing.T) {
	residues, err := Parse("na")
	require.NoError(t, err)
	require.Nil(t, residues)
}

func TestMergeGaps(t *testing.T) {
	residues := []int{1, 2, 3, 10, 11, 12}
	out := MergeGaps(residues, func(gap []int) bool { return len(gap) <= 10 })
	require.Equal(t, "1-12", Emit(out))
}

func TestOverlap(t *testing.T) {
	require.Equal(t, 2, Overlap([]int{1, 2, 3}, []int{2, 3, 4}))
}

func TestMean(t *testing.T) {
	require.InDelta(t, 2.0, Mean([]int{1, 2, 3}), 1e-9)
}
