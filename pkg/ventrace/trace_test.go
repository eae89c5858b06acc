package ventrace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/ventrace/pkg/psp"
	"github.com/gitrdm/ventrace/pkg/ventrace"
)

func newBoundTrace(seed int64) *ventrace.Trace {
	tr := ventrace.NewTrace(ventrace.WithSeed(seed))
	psp.BindAll(tr)
	return tr
}

func TestAssumeObserveMakeConsistent(t *testing.T) {
	tr := newBoundTrace(1)

	priorExp := ventrace.NewArray([]*ventrace.Value{
		ventrace.NewSymbol("beta"), ventrace.NewNumber(1), ventrace.NewNumber(1),
	})
	weightDir, err := tr.Assume("weight", priorExp)
	require.NoError(t, err)

	flipExp := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("flip"), ventrace.NewSymbol("weight")})
	for i := 0; i < 5; i++ {
		_, err := tr.Observe(flipExp, ventrace.NewBool(true))
		require.NoError(t, err)
	}

	require.NoError(t, tr.MakeConsistent())

	v, err := tr.Report(weightDir.ID)
	require.NoError(t, err)
	w, err := v.AsDouble()
	require.NoError(t, err)
	assert.True(t, w > 0 && w < 1)
}

func TestForgetRemovesDirective(t *testing.T) {
	tr := newBoundTrace(3)
	d, err := tr.Assume("coin", ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("flip")}))
	require.NoError(t, err)

	require.NoError(t, tr.Forget(d.ID))

	_, err = tr.Report(d.ID)
	require.Error(t, err)
}

func TestFreezeKeepsValueAndDropsBlock(t *testing.T) {
	tr := newBoundTrace(4)
	d, err := tr.Assume("coin", ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("flip")}))
	require.NoError(t, err)

	before, err := tr.Report(d.ID)
	require.NoError(t, err)

	require.NoError(t, tr.Freeze(d.ID))

	after, err := tr.Report(d.ID)
	require.NoError(t, err)
	assert.True(t, before.Equal(after))

	// A frozen directive's block is gone: freeze tore the original
	// family down, so it no longer participates as an unconstrained
	// choice (default-scope block count must have dropped to zero).
	assert.Equal(t, 0, tr.Blocks(nil))
}

// TestSampleBlockRoundTrip guards against a regression where blockKey's
// symbol-value encoding disagreed with the raw strings
// registerUnconstrainedChoice stores blocks under, which silently broke
// every single-site proposal's GetNodesInBlock lookup in the default
// scope.
func TestSampleBlockRoundTrip(t *testing.T) {
	tr := newBoundTrace(5)

	var dirs []*ventrace.Directive
	for i := 0; i < 6; i++ {
		d, err := tr.Assume("c", ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("flip")}))
		require.NoError(t, err)
		dirs = append(dirs, d)
	}
	require.Equal(t, len(dirs), tr.Blocks(nil))

	for i := 0; i < 50; i++ {
		block, err := tr.SampleBlock(nil)
		require.NoError(t, err)
		nodes := tr.GetNodesInBlock(nil, block)
		require.Len(t, nodes, 1, "each default-scope block must resolve to exactly its one registered node")
	}
}

// TestDetachRestoreRegenWeightSymmetry exercises the paired detach/regen
// discipline directly: detaching a scaffold and regenerating it with
// shouldRestore=true touches nothing random, so the restore's weight
// must equal the detach's weight exactly, and every node must end up
// back in its pre-detach state.
func TestDetachRestoreRegenWeightSymmetry(t *testing.T) {
	tr := newBoundTrace(6)

	xDir, err := tr.Assume("x", ventrace.NewArray([]*ventrace.Value{
		ventrace.NewSymbol("beta"), ventrace.NewNumber(2), ventrace.NewNumber(2),
	}))
	require.NoError(t, err)
	yDir, err := tr.Assume("y", ventrace.NewArray([]*ventrace.Value{
		ventrace.NewSymbol("flip"), ventrace.NewSymbol("x"),
	}))
	require.NoError(t, err)

	xBefore, err := tr.Report(xDir.ID)
	require.NoError(t, err)
	yBefore, err := tr.Report(yDir.ID)
	require.NoError(t, err)

	xNode, err := tr.GlobalEnv().FindSymbol("x")
	require.NoError(t, err)

	scaffold, err := tr.BuildScaffold([]map[*ventrace.Node]bool{{xNode: true}}, false)
	require.NoError(t, err)

	rho, db, err := tr.Detach(scaffold)
	require.NoError(t, err)

	xi, err := tr.Regen(scaffold, true, db)
	require.NoError(t, err)

	assert.InDelta(t, rho, xi, 1e-9)

	xAfter, err := tr.Report(xDir.ID)
	require.NoError(t, err)
	yAfter, err := tr.Report(yDir.ID)
	require.NoError(t, err)
	assert.True(t, xBefore.Equal(xAfter))
	assert.True(t, yBefore.Equal(yAfter))
}
