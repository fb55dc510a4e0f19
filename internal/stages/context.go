// Package stages implements DPAM's 24 per-protein pipeline stages
// (stage 14 reserved, stage 25 a no-op) as pure-ish functions over the
// types in internal/model: one function per transform, bufio.Scanner
// in, formatted Fprintf out.
package stages

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dpam-project/dpam/internal/pathresolver"
	"github.com/dpam-project/dpam/internal/refdata"
)

// Context bundles the read-only collaborators every stage kernel
// needs: reference data (component A), path resolution (component B),
// and a logger. Passed explicitly per spec.md §9 "Global state": never
// hung off a package-level variable.
type Context struct {
	Prefix    string
	Resolver  *pathresolver.Resolver
	Ref       *refdata.Data
	Log       *log.Logger
	LogWriter io.Writer
}

// NewContext builds a stage Context with a default stderr logger.
func NewContext(prefix string, resolver *pathresolver.Resolver, ref *refdata.Data) *Context {
	return &Context{
		Prefix:    prefix,
		Resolver:  resolver,
		Ref:       ref,
		Log:       log.New(os.Stderr, fmt.Sprintf("dpam[%s] ", prefix), log.LstdFlags),
		LogWriter: os.Stderr,
	}
}

// createAtomic opens path for writing via a temp-file-then-rename swap,
// so a crash mid-write never leaves a partial primary output with a
// newer mtime than its inputs.
func createAtomic(path string) (*atomicFile, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("stages: create %s: %w", tmp, err)
	}
	return &atomicFile{f: f, tmp: tmp, final: path}, nil
}

type atomicFile struct {
	f     *os.File
	tmp   string
	final string
}

func (a *atomicFile) Write(p []byte) (int, error) { return a.f.Write(p) }

func (a *atomicFile) Close() error {
	if err := a.f.Sync(); err != nil {
		a.f.Close()
		return err
	}
	if err := a.f.Close(); err != nil {
		return err
	}
	return os.Rename(a.tmp, a.final)
}

func (a *atomicFile) Abort() {
	a.f.Close()
	os.Remove(a.tmp)
}

// writeLines writes a primary output file atomically, one line per
// emit call, in the teacher's "open once, Fprintf repeatedly" style.
func writeLines(path string, fn func(w io.Writer) error) (err error) {
	af, err := createAtomic(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			af.Abort()
		}
	}()
	if err = fn(af); err != nil {
		return err
	}
	return af.Close()
}

// forEachTabLine scans path line by line, skipping blank lines, and
// calls fn with the whitespace-split fields. Malformed individual
// lines are reported through fn's own error return and skipped by the
// caller where the spec calls for degraded parsing (§7).
func forEachTabLine(path string, fn func(fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // empty/absent upstream output: tolerate per spec.md §7
		}
		return fmt.Errorf("stages: open %s: %w", path, err)
	}
	defer f.Close()
	return scanTabLines(f, fn)
}
