// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pathresolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDetectLayoutFlat(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, Flat, DetectLayout(dir))
}

func TestDetectLayoutSharded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "step01_prepare"), 0o755))
	require.Equal(t, Sharded, DetectLayout(dir))
}

func TestStageDirFlat(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{Root: dir, Layout: Flat}
	require.Equal(t, dir, r.StageDir(model.PARSE_DOMAINS))
}

func TestStageDirSharded(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{Root: dir, Layout: Sharded}
	require.Equal(t, filepath.Join(dir, "step13_parse_domains"), r.StageDir(model.PARSE_DOMAINS))
}

func TestInputPathAlwaysAtRoot(t *testing.T) {
	dir := t.TempDir()
	r := &Resolver{Root: dir, Layout: Sharded}
	require.Equal(t, filepath.Join(dir, "prot1.cif"), r.InputPath("prot1", ".cif"))
}
