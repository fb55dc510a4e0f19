// Package cleanup classifies a DPAM working directory's files into
// preserve/intermediate sets and removes the intermediates (spec.md
// §6 "Cleanup policy").
package cleanup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// preservePatterns are glob patterns (matched against the base name)
// for files that must never be removed: user inputs, per-stage
// primary outputs, final domains, and checkpoints. Preserve always
// wins on conflict with an intermediate pattern.
var preservePatterns = []string{
	"*.cif", "*.pdb", "*.fa", "*.pae.json",
	"*.hhsearch", "*.foldseek", "*.foldseek.flt.result",
	"*.map2ecod.result", "*_hits4Dali", "*_iterativdDali_hits",
	"*_good_hits", "*.goodDomains", "*.sse", "*.diso",
	"*.step13_domains", "*.finalDPAM.domains",
	"*.domass_features", "*.domass_predictions",
	"*.confident_predictions", "*.mappings", "*.merge_candidates",
	"*.comparisons", "*.merged_domains", "*.predictions",
	"*.dpam_state.json", "_batch_state.json",
	"*.D[0-9]*.pdb",
}

// intermediatePatterns are glob patterns for derived, regenerable
// artefacts: MSAs, profiles, raw tool logs, scratch directories.
var intermediatePatterns = []string{
	"*.a3m", "*.ss.a3m", "*.hhr", "*.log", "*.dssp",
	"*_dali_work", "*_dali.tmp", "*.tmp",
}

// Classification is the outcome of classifying one file.
type Classification int

const (
	Unclassified Classification = iota
	Preserve
	Intermediate
)

// Classify decides whether name (a base filename, no directory
// component) should be preserved or is an intermediate eligible for
// removal. Preserve wins any pattern conflict.
func Classify(name string) Classification {
	for _, pat := range preservePatterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return Preserve
		}
	}
	for _, pat := range intermediatePatterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return Intermediate
		}
	}
	return Unclassified
}

// Report tallies a cleanup run.
type Report struct {
	Removed    []string
	Preserved  []string
	Unmatched  []string
	BytesFreed int64
}

// Run walks root and removes every file classified Intermediate,
// leaving Preserve and Unclassified files untouched. dryRun reports
// what would be removed without deleting anything.
func Run(root string, dryRun bool, log io.Writer) (Report, error) {
	var rep Report
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "_batch" || d.Name() == "results" {
				return nil
			}
			return nil
		}
		name := d.Name()
		switch Classify(name) {
		case Preserve:
			rep.Preserved = append(rep.Preserved, path)
		case Intermediate:
			info, statErr := d.Info()
			if statErr == nil {
				rep.BytesFreed += info.Size()
			}
			if dryRun {
				fmt.Fprintf(log, "would remove %s\n", path)
			} else if rmErr := os.Remove(path); rmErr != nil {
				return rmErr
			} else {
				fmt.Fprintf(log, "removed %s\n", path)
			}
			rep.Removed = append(rep.Removed, path)
		default:
			rep.Unmatched = append(rep.Unmatched, path)
		}
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("cleanup: %w", err)
	}
	if len(rep.Unmatched) > 0 && log != nil {
		fmt.Fprintf(log, "%d file(s) matched neither preserve nor intermediate pattern, left untouched\n", len(rep.Unmatched))
	}
	return rep, nil
}

// IsScratchDir reports whether dirName is an underscore-named scratch
// directory (such as the batch orchestrator's _foldseek_batch and
// _dali_template_cache) other than _batch itself, eligible for
// whole-directory removal.
func IsScratchDir(dirName string) bool {
	return strings.HasPrefix(dirName, "_") && dirName != "_batch"
}
