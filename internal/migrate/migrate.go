// Package migrate moves a flat DPAM working directory into the
// sharded per-stage layout pathresolver expects, grounded on
// original_source/dpam/pipeline/migrate.py's suffix classification
// table (spec.md §4.B, §6).
package migrate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pathresolver"
)

// suffixStage is one (filename suffix, owning stage) rule. Order
// matters: longer, more specific suffixes must be checked before
// shorter ones they contain (".foldseek.flt.result" before
// ".foldseek"), exactly as the original table's comments call out.
type suffixStage struct {
	suffix string
	stage  model.Stage
}

var suffixTable = []suffixStage{
	{".foldseek.flt.result", model.FOLDSEEK_FILTER},
	{".foldseek", model.FOLDSEEK},
	{".map2ecod.result", model.MAP_ECOD},
	{".ss.a3m", model.HHSEARCH},
	{".a3m", model.HHSEARCH},
	{".hhsearch", model.HHSEARCH},
	{"_hits4Dali", model.DALI_CANDIDATES},
	{"_iterativdDali_hits", model.ITERATIVE_DALI},
	{"_good_hits", model.ANALYSE_DALI},
	{".goodDomains", model.FILTER_GOOD_DOMAINS},
	{".sse", model.SSE},
	{".diso", model.DISORDER},
	{".step13_domains", model.PARSE_DOMAINS},
	{".domass_features", model.PREPARE_DOMASS},
	{".domass_predictions", model.RUN_DOMASS},
	{".confident_predictions", model.CONFIDENT_PREDICTIONS},
	{".mappings", model.MAP_CONFIDENT},
	{".merge_candidates", model.MERGE_CANDIDATES},
	{".comparisons", model.CONNECTIVITY},
	{".merged_domains", model.MERGE},
	{".predictions", model.CLASSIFY},
}

// rootOnlySuffixes never move: user inputs, hidden state, batch state.
var rootOnlySuffixes = []string{".cif", ".json", ".dpam_state.json"}

// Counts tallies a migration run's outcome.
type Counts struct {
	Moved, Copied, Renamed, Skipped, Errors int
}

// discoverPrefixes finds protein prefixes from hidden state files and
// root-level .fa files, the same two signals migrate.py uses.
func discoverPrefixes(root string) (map[string]bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	prefixes := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".dpam_state.json"):
			prefixes[strings.TrimSuffix(strings.TrimPrefix(name, "."), ".dpam_state.json")] = true
		case strings.HasSuffix(name, ".fa"):
			prefixes[strings.TrimSuffix(name, ".fa")] = true
		}
	}
	return prefixes, nil
}

// classify maps one root filename to the stage owning it and whether
// it should be moved, copied, or dual-copied (finalDPAM.domains).
// Returns ok=false for files that stay in root untouched.
func classify(name string, prefixes map[string]bool) (stage model.Stage, action string, ok bool) {
	for prefix := range prefixes {
		if name == prefix+".finalDPAM.domains" {
			return model.PARSE_DOMAINS, "dual", true
		}
		if name == prefix+".fa" {
			return model.PREPARE, "move", true
		}
		if name == prefix+".pdb" {
			return model.PREPARE, "copy", true
		}
	}
	for _, s := range rootOnlySuffixes {
		if strings.HasSuffix(name, s) {
			return 0, "", false
		}
	}
	if name == "_batch_state.json" {
		return 0, "", false
	}
	for _, rule := range suffixTable {
		for prefix := range prefixes {
			if name == prefix+rule.suffix {
				return rule.stage, "move", true
			}
		}
	}
	return 0, "", false
}

// Run migrates working_dir from flat to sharded layout in place.
// A directory already detected as sharded is left untouched. dryRun
// logs intended actions via log instead of performing them.
func Run(workingDir string, dryRun bool, log io.Writer) (Counts, error) {
	var counts Counts
	if pathresolver.DetectLayout(workingDir) == pathresolver.Sharded {
		fmt.Fprintln(log, "directory already uses sharded layout, nothing to do")
		return counts, nil
	}

	prefixes, err := discoverPrefixes(workingDir)
	if err != nil {
		return counts, fmt.Errorf("migrate: %w", err)
	}
	if len(prefixes) == 0 {
		fmt.Fprintln(log, "no proteins found (no .dpam_state.json or .fa files)")
		return counts, nil
	}

	names := make([]string, 0, len(prefixes))
	for p := range prefixes {
		names = append(names, p)
	}
	sort.Strings(names)
	fmt.Fprintf(log, "found %d proteins: %s\n", len(names), strings.Join(names, ", "))

	resolver := &pathresolver.Resolver{Root: workingDir, Layout: pathresolver.Sharded}

	entries, err := os.ReadDir(workingDir)
	if err != nil {
		return counts, fmt.Errorf("migrate: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		stage, action, ok := classify(name, prefixes)
		if !ok {
			continue
		}
		src := filepath.Join(workingDir, name)
		switch action {
		case "move":
			if err := moveInto(resolver, stage, src, name, dryRun, log); err != nil {
				counts.Errors++
				continue
			}
			counts.Moved++
		case "copy":
			if err := copyInto(resolver, stage, src, name, dryRun, log); err != nil {
				counts.Errors++
				continue
			}
			counts.Copied++
		case "dual":
			if err := dualCopy(resolver, src, name, dryRun, log); err != nil {
				counts.Errors++
				continue
			}
			counts.Moved++
		}
	}

	fmt.Fprintf(log, "migration summary: moved=%d copied=%d renamed=%d skipped=%d errors=%d\n",
		counts.Moved, counts.Copied, counts.Renamed, counts.Skipped, counts.Errors)
	return counts, nil
}

func moveInto(r *pathresolver.Resolver, stage model.Stage, src, name string, dryRun bool, log io.Writer) error {
	if dryRun {
		fmt.Fprintf(log, "MOVE %s -> %s/\n", name, r.StageDir(stage))
		return nil
	}
	if err := r.EnsureStageDir(stage); err != nil {
		return err
	}
	dest := r.StagePath(stage, name)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	return os.Rename(src, dest)
}

func copyInto(r *pathresolver.Resolver, stage model.Stage, src, name string, dryRun bool, log io.Writer) error {
	if dryRun {
		fmt.Fprintf(log, "COPY %s -> %s/\n", name, r.StageDir(stage))
		return nil
	}
	if err := r.EnsureStageDir(stage); err != nil {
		return err
	}
	dest := r.StagePath(stage, name)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	return copyFile(src, dest)
}

func dualCopy(r *pathresolver.Resolver, src, name string, dryRun bool, log io.Writer) error {
	if dryRun {
		fmt.Fprintf(log, "COPY %s -> %s/ and results/, then remove original\n", name, r.StageDir(model.PARSE_DOMAINS))
		return nil
	}
	if err := r.EnsureStageDir(model.PARSE_DOMAINS); err != nil {
		return err
	}
	if err := r.EnsureResultsDir(); err != nil {
		return err
	}
	stepDest := r.StagePath(model.PARSE_DOMAINS, name)
	resultsDest := filepath.Join(r.ResultsDir(), name)
	if err := copyFile(src, stepDest); err != nil {
		return err
	}
	if err := copyFile(src, resultsDest); err != nil {
		return err
	}
	return os.Remove(src)
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
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
