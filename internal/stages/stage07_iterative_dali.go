package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dpam-project/dpam/internal/pdbio"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/tools"
)

// DaliIteration is one recorded DALI iteration against a single
// candidate template (spec.md stage 7 step c).
type DaliIteration struct {
	HitName string // "{uid}_{alicount}"
	UID     int64
	Result  tools.DaliResult
}

// daliJob is one (uid) unit of work sent to the worker pool, grounded
// on the teacher pack's redCompressPool jobs-channel/WaitGroup idiom
// (other_examples MICA reduced_compression.go), generalised from "one
// sequence per job" to "one candidate template per job".
type daliJob struct {
	uid int64
}

// daliPool runs iterative DALI across candidate uids with bounded
// worker concurrency, exactly the "embarrassingly parallel across
// uids" shape in spec.md stage 7; a worker's own failure is isolated
// and never cancels peers (spec.md §5 "Cancellation").
type daliPool struct {
	jobs    chan daliJob
	wg      sync.WaitGroup
	mu      sync.Mutex
	results map[int64][]DaliIteration
}

// RunIterativeDali implements stage 7: for each candidate uid, run a
// private worker that repeatedly aligns a shrinking copy of the query
// PDB against the candidate template, stopping when DALI reports no z,
// fewer than 20 aligned pairs, or fewer than 20 residues remain
// (spec.md stage 7).
func RunIterativeDali(ctx *Context, runner ToolRunner, ref *refdata.Data, queryPDB string, candidates []int64, workers int) map[int64][]DaliIteration {
	if workers < 1 {
		workers = 1
	}
	pool := &daliPool{
		jobs:    make(chan daliJob, len(candidates)),
		results: make(map[int64][]DaliIteration),
	}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(ctx, runner, ref, queryPDB)
	}
	for _, uid := range candidates {
		pool.jobs <- daliJob{uid: uid}
	}
	close(pool.jobs)
	pool.wg.Wait()
	return pool.results
}

func (p *daliPool) worker(ctx *Context, runner ToolRunner, ref *refdata.Data, queryPDB string) {
	defer p.wg.Done()
	for job := range p.jobs {
		iters := iterateDaliForCandidate(ctx, runner, ref, queryPDB, job.uid)
		if len(iters) == 0 {
			continue
		}
		p.mu.Lock()
		p.results[job.uid] = iters
		p.mu.Unlock()
	}
}

// iterateDaliForCandidate runs the per-candidate shrink-and-realign
// loop in a private scratch directory, cleaned up on both success and
// failure paths (spec.md stage 7, §5 "temporary per-worker scratch
// dirs must be cleaned").
func iterateDaliForCandidate(ctx *Context, runner ToolRunner, ref *refdata.Data, queryPDB string, uid int64) (iters []DaliIteration) {
	defer func() {
		if r := recover(); r != nil {
			ctx.Log.Printf("stage07: uid %d worker panicked, treating as zero hits: %v", uid, r)
			iters = nil
		}
	}()

	meta, ok := ref.Metadata[uid]
	if !ok {
		return nil
	}
	scratch, err := os.MkdirTemp("", "dali")
	if err != nil {
		ctx.Log.Printf("stage07: uid %d: %v", uid, err)
		return nil
	}
	defer os.RemoveAll(scratch)

	// DALI's 80-character path limit is honoured by copying the
	// template locally under a short name (spec.md stage 7, §9).
	localTemplate := filepath.Join(scratch, "t.pdb")
	if err := copyFile(ref.TemplatePath(meta.Key), localTemplate); err != nil {
		ctx.Log.Printf("stage07: uid %d: copy template: %v", uid, err)
		return nil
	}

	atoms, err := pdbio.ParseFile(queryPDB)
	if err != nil {
		ctx.Log.Printf("stage07: uid %d: %v", uid, err)
		return nil
	}
	remaining := atoms
	alicount := 0
	for {
		localQuery := filepath.Join(scratch, fmt.Sprintf("q%d.pdb", alicount))
		qf, err := os.Create(localQuery)
		if err != nil {
			return iters
		}
		err = pdbio.WritePDB(qf, remaining)
		qf.Close()
		if err != nil {
			return iters
		}

		out, err := runner.Run(tools.DaliAlign{Query: localQuery, Template: localTemplate, OutFmt: "summary"})
		if err != nil {
			return iters // tool failure for this template: zero hits, not fatal
		}
		res, err := tools.ParseSummary(bytesReader(out))
		if err != nil || !res.HasZ || len(res.Alignment) < 20 {
			return iters
		}

		iters = append(iters, DaliIteration{
			HitName: fmt.Sprintf("%d_%d", uid, alicount),
			UID:     uid,
			Result:  res,
		})
		alicount++

		remainingResidues := distinctResidues(remaining)
		removed := removalRange(res.Alignment, len(remainingResidues))
		next := remaining[:0:0]
		for _, a := range remaining {
			if !removed[a.ResSeq] {
				next = append(next, a)
			}
		}
		if len(distinctResidues(next)) < 20 {
			return iters
		}
		remaining = next
	}
}

func distinctResidues(atoms []pdbio.AtomRecord) []int {
	seen := make(map[int]bool)
	var out []int
	for _, a := range atoms {
		if !seen[a.ResSeq] {
			seen[a.ResSeq] = true
			out = append(out, a.ResSeq)
		}
	}
	return out
}

// removalRange implements the segmentation rule of spec.md stage 7
// step (d): residues closer in sequence than
// cutoff = max(5, 0.05*|query_residues|) belong to the same segment;
// each segment expands to its closed hull and those residue ids are
// marked for removal.
func removalRange(alignment []tools.AlignedPair, queryResidueCount int) map[int]bool {
	if len(alignment) == 0 {
		return nil
	}
	cutoff := int(0.05 * float64(queryResidueCount))
	if cutoff < 5 {
		cutoff = 5
	}
	positions := make([]int, len(alignment))
	for i, a := range alignment {
		positions[i] = a.Query
	}
	sortedPos := append([]int(nil), positions...)
	sortIntsAsc(sortedPos)

	var segments [][2]int
	segStart, segEnd := sortedPos[0], sortedPos[0]
	for _, p := range sortedPos[1:] {
		if p-segEnd < cutoff {
			segEnd = p
		} else {
			segments = append(segments, [2]int{segStart, segEnd})
			segStart, segEnd = p, p
		}
	}
	segments = append(segments, [2]int{segStart, segEnd})

	removed := make(map[int]bool)
	for _, seg := range segments {
		for idx := seg[0]; idx <= seg[1]; idx++ {
			removed[idx] = true
		}
	}
	return removed
}

func sortIntsAsc(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
