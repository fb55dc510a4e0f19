package runner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dpam-project/dpam/internal/ckpt"
	"github.com/dpam-project/dpam/internal/model"
	"github.com/dpam-project/dpam/internal/pathresolver"
	"github.com/dpam-project/dpam/internal/refdata"
	"github.com/dpam-project/dpam/internal/stages"
	"github.com/dpam-project/dpam/internal/tools"
)

type failRunner struct{}

func (failRunner) Run(builder tools.Builder) ([]byte, error) {
	panic("no stage should invoke a tool once every ordered stage is already complete")
}

func TestRunIsNoOpWhenEveryStageAlreadyComplete(t *testing.T) {
	dir := t.TempDir()
	st := model.NewPipelineState("prot1", dir)
	for _, s := range model.Ordered {
		st.MarkComplete(s)
	}
	require.NoError(t, ckpt.SaveProtein(dir, st))

	resolver := &pathresolver.Resolver{Root: dir, Layout: pathresolver.Sharded}
	ctx := stages.NewContext("prot1", resolver, &refdata.Data{})
	r := New(ctx, failRunner{}, Options{})

	err := r.Run("/inputs/prot1.pdb")
	require.NoError(t, err)
}

func TestHaltErrorUnwrapsToUnderlyingError(t *testing.T) {
	inner := assertErr{"tool crashed"}
	h := &haltError{stage: model.FOLDSEEK, err: inner}
	require.ErrorIs(t, h, inner)
	require.Contains(t, h.Error(), "FOLDSEEK")
	require.Contains(t, h.Error(), "tool crashed")
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
