package psp_test

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

func lambdaExp(params []string, body *ventrace.Value) *ventrace.Value {
	paramVals := make([]*ventrace.Value, len(params))
	for i, p := range params {
		paramVals[i] = ventrace.NewSymbol(p)
	}
	return ventrace.NewArray([]*ventrace.Value{
		ventrace.NewSymbol("lambda"),
		ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("quote"), ventrace.NewArray(paramVals)}),
		ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("quote"), body}),
	})
}

// TestMemSharesCallsWithEqualArguments exercises the quote-and-substitute
// ESR technique's content-addressing: two calls of a mem-wrapped
// procedure with the same argument must resolve to the same underlying
// ESR family, so two independent draws from a continuous distribution
// come back bit-identical.
func TestMemSharesCallsWithEqualArguments(t *testing.T) {
	tr := newBoundTrace(10)

	body := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("normal"), ventrace.NewNumber(0), ventrace.NewNumber(1)})
	memExp := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("mem"), lambdaExp([]string{"n"}, body)})
	_, err := tr.Assume("f", memExp)
	require.NoError(t, err)

	callExp := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("f"), ventrace.NewNumber(1)})
	a, err := tr.Predict(callExp)
	require.NoError(t, err)
	b, err := tr.Predict(callExp)
	require.NoError(t, err)

	av, err := tr.Report(a.ID)
	require.NoError(t, err)
	bv, err := tr.Report(b.ID)
	require.NoError(t, err)
	assert.True(t, av.Equal(bv), "two mem calls with equal arguments must share their draw")
}

// TestMemDoesNotShareCallsWithDifferentArguments is the complement of the
// sharing test: distinct arguments must build distinct ESR families.
func TestMemDoesNotShareCallsWithDifferentArguments(t *testing.T) {
	tr := newBoundTrace(11)

	body := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("normal"), ventrace.NewSymbol("n"), ventrace.NewNumber(1)})
	memExp := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("mem"), lambdaExp([]string{"n"}, body)})
	_, err := tr.Assume("f", memExp)
	require.NoError(t, err)

	a, err := tr.Predict(ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("f"), ventrace.NewNumber(0)}))
	require.NoError(t, err)
	b, err := tr.Predict(ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("f"), ventrace.NewNumber(1000)}))
	require.NoError(t, err)

	av, err := tr.Report(a.ID)
	require.NoError(t, err)
	bv, err := tr.Report(b.ID)
	require.NoError(t, err)
	assert.False(t, av.Equal(bv), "calls centered on very different means should not coincide")
}

// TestPlainCompoundCallsAreNotShared is mem's control: an ordinary
// (non-mem) lambda gets a fresh ESR family per call site, so two calls
// with equal arguments draw independently.
func TestPlainCompoundCallsAreNotShared(t *testing.T) {
	tr := newBoundTrace(12)

	body := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("normal"), ventrace.NewNumber(0), ventrace.NewNumber(1)})
	_, err := tr.Assume("g", lambdaExp([]string{"n"}, body))
	require.NoError(t, err)

	callExp := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("g"), ventrace.NewNumber(1)})
	a, err := tr.Predict(callExp)
	require.NoError(t, err)
	b, err := tr.Predict(callExp)
	require.NoError(t, err)

	av, err := tr.Report(a.ID)
	require.NoError(t, err)
	bv, err := tr.Report(b.ID)
	require.NoError(t, err)
	assert.False(t, av.Equal(bv), "two unmemoized calls must draw independently")
}
