// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tools provides thin, typed wrappers over the external
// bioinformatics tools DPAM invokes as subprocesses (spec.md §4.C):
// HHsearch, Foldseek, DALI and DSSP, plus the optional PSIPRED
// annotation step; the SLURM sbatch builder lives in internal/slurm.
// Each adapter builds
// its argv the way the teacher's blast.MakeDB/blast.Nucleic do, via
// buildarg struct tags consumed by github.com/biogo/external.
package tools

import (
	"bytes"
	"fmt"
	"io"
	"os/exec"
)

// ToolFailure signals that an external tool invocation failed (spec.md
// §4.C): non-zero exit or crash, never silently downgraded.
type ToolFailure struct {
	Tool       string
	Argv       []string
	ExitCode   int
	StderrTail string
}

func (e *ToolFailure) Error() string {
	return fmt.Sprintf("tools: %s failed (exit %d): argv=%v: %s", e.Tool, e.ExitCode, e.Argv, e.StderrTail)
}

// stderrTailBytes bounds how much stderr is retained for a ToolFailure.
const stderrTailBytes = 4096

// Invoke runs cmd to completion, capturing stdout into the returned
// bytes and folding stderr into logger (if non-nil) line by line. On
// failure it returns a *ToolFailure carrying the tool name, argv and a
// bounded stderr tail.
func Invoke(tool string, cmd *exec.Cmd, logger io.Writer) ([]byte, error) {
	var stdout bytes.Buffer
	var stderrTail bytes.Buffer
	cmd.Stdout = &stdout
	if logger != nil {
		cmd.Stderr = io.MultiWriter(logger, &boundedWriter{buf: &stderrTail, max: stderrTailBytes})
	} else {
		cmd.Stderr = &boundedWriter{buf: &stderrTail, max: stderrTailBytes}
	}

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return nil, &ToolFailure{
			Tool:       tool,
			Argv:       cmd.Args,
			ExitCode:   exitCode,
			StderrTail: stderrTail.String(),
		}
	}
	return stdout.Bytes(), nil
}

// boundedWriter retains only the last max bytes written to it, used to
// bound the stderr tail kept in a ToolFailure.
type boundedWriter struct {
	buf *bytes.Buffer
	max int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.buf.Len() > w.max {
		trimmed := w.buf.Bytes()[w.buf.Len()-w.max:]
		w.buf.Reset()
		w.buf.Write(trimmed)
	}
	return len(p), nil
}

// Builder is implemented by every tool's argument struct, mirroring
// blast.MakeDB/blast.Nucleic's BuildCommand method.
type Builder interface {
	BuildCommand() (*exec.Cmd, error)
}
