package batch

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/kv"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/stages"
	"github.com/dpam-project/dpam/internal/tools"
)

// foldseekOrder is the byte order used by foldseekHitKey for kv key
// encoding.
var foldseekOrder = binary.BigEndian

// foldseekHitKey builds an ordered kv key grouping hits by query then
// by descending bit score, so a plain lexicographic scan of the store
// visits every protein's hits strongest-first.
func foldseekHitKey(h tools.Hit, i int) []byte {
	var buf bytes.Buffer
	var b [8]byte
	foldseekOrder.PutUint64(b[:], uint64(len(h.Query)))
	buf.Write(b[:])
	buf.WriteString(h.Query)
	// Bit score descending: invert so natural byte-order ascending key
	// traversal yields strongest hits first.
	foldseekOrder.PutUint64(b[:], uint64(^int64(h.BitScore*1000)))
	buf.Write(b[:])
	foldseekOrder.PutUint64(b[:], uint64(i))
	buf.Write(b[:])
	return buf.Bytes()
}

func foldseekCompare(x, y []byte) int { return bytes.Compare(x, y) }

// runFoldseekBatch is the stage-3 batch specialisation: one combined
// Foldseek createdb+search+convertalis invocation across every pending
// protein's query PDB, instead of len(pending) independent easy-search
// calls. The combined tabular result is cached in a kv.DB, then split
// back out per protein by query id (tools.SplitByQuery) and written
// through the ordinary stage-3/4 kernels so downstream stages never
// see a difference.
func (o *Orchestrator) runFoldseekBatch(pending []string) {
	batchDir := o.resolver.BatchDir()
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		o.failAll(pending, model.FOLDSEEK, err)
		return
	}
	queryDir := filepath.Join(batchDir, "_foldseek_batch")
	if err := os.MkdirAll(queryDir, 0o755); err != nil {
		o.failAll(pending, model.FOLDSEEK, err)
		return
	}
	defer os.RemoveAll(queryDir)

	for _, prefix := range pending {
		w := o.proteins[prefix]
		link := filepath.Join(queryDir, prefix+".pdb")
		os.Remove(link)
		if err := os.Symlink(w.pdbPath, link); err != nil {
			if copyErr := copyFile(w.pdbPath, link); copyErr != nil {
				o.mark(prefix, model.FOLDSEEK, fmt.Errorf("batch foldseek: stage query: %v / %v", err, copyErr))
				continue
			}
		}
	}

	queryDB := filepath.Join(queryDir, "queryDB")
	alnDB := filepath.Join(queryDir, "alnDB")
	resultTab := filepath.Join(queryDir, "result.tab")
	tmpDir := filepath.Join(queryDir, "tmp")
	if _, err := o.tool.Run(tools.CreateDB{In: queryDir, Out: queryDB}); err != nil {
		o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: createdb: %w", err))
		return
	}
	if _, err := o.tool.Run(tools.Search{
		QueryDB: queryDB, TargetDB: o.opts.FoldseekDB, Out: alnDB, TmpDir: tmpDir,
		MaxSeqs: tools.DefaultMaxSeqs, EValue: tools.DefaultEValue,
	}); err != nil {
		o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: search: %w", err))
		return
	}
	if _, err := o.tool.Run(tools.ConvertAlis{
		QueryDB: queryDB, TargetDB: o.opts.FoldseekDB, AlnDB: alnDB, Out: resultTab,
	}); err != nil {
		o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: convertalis: %w", err))
		return
	}

	f, err := os.Open(resultTab)
	if err != nil {
		o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: %w", err))
		return
	}
	hits, err := tools.ParseTabular(f)
	f.Close()
	if err != nil {
		o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: parse: %w", err))
		return
	}

	cache, err := kv.Create(filepath.Join(batchDir, "foldseek_combined.db"), &kv.Options{Compare: foldseekCompare})
	if err != nil {
		o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: open cache: %w", err))
		return
	}
	defer cache.Close()
	const txnBatch = 200
	for i, h := range hits {
		if i%txnBatch == 0 {
			if err := cache.BeginTransaction(); err != nil {
				o.failAll(pending, model.FOLDSEEK, err)
				return
			}
		}
		value, err := json.Marshal(h)
		if err == nil {
			err = cache.Set(foldseekHitKey(h, i), value)
		}
		if err != nil {
			o.failAll(pending, model.FOLDSEEK, fmt.Errorf("batch foldseek: cache set: %w", err))
			return
		}
		if i%txnBatch == txnBatch-1 || i == len(hits)-1 {
			if err := cache.Commit(); err != nil {
				o.failAll(pending, model.FOLDSEEK, err)
				return
			}
		}
	}

	byQuery := tools.SplitByQuery(hits)
	for _, prefix := range pending {
		w := o.proteins[prefix]
		w.foldseekHits = byQuery[prefix]
		ctx := o.ctxFor(prefix)
		if err := ctx.Resolver.EnsureStageDir(model.FOLDSEEK); err != nil {
			o.mark(prefix, model.FOLDSEEK, err)
			continue
		}
		o.mark(prefix, model.FOLDSEEK, writeFoldseekReport(ctx, w.foldseekHits))
	}
}

func (o *Orchestrator) failAll(pending []string, stage model.Stage, err error) {
	for _, prefix := range pending {
		o.mark(prefix, stage, err)
	}
}

// writeFoldseekReport rewrites one protein's ".foldseek" file from its
// split-out hits, in the same tab-separated column order EasySearch's
// --format-output produces, so stage 4 reads an identical file
// regardless of whether stage 3 ran in single-protein or batch mode.
func writeFoldseekReport(ctx *stages.Context, hits []tools.Hit) error {
	path := ctx.Resolver.StagePath(model.FOLDSEEK, ctx.Prefix+".foldseek")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("batch foldseek: %w", err)
	}
	for _, h := range hits {
		_, err = fmt.Fprintf(f, "%s\t%s\t%g\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%g\t%g\n",
			h.Query, h.Target, h.PctIdent, h.AlnLen, h.Mismatches, h.GapOpens,
			h.QStart, h.QEnd, h.TStart, h.TEnd, h.EValue, h.BitScore)
		if err != nil {
			break
		}
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("batch foldseek: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("batch foldseek: rename %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := out.ReadFrom(in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
