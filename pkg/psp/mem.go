package psp

import (
	"fmt"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// MakeMemOutputPSP wraps an existing procedure value (compound or
// primitive) in a memoizing procedure: applications with structurally
// equal argument lists share a single ESR family instead of each
// building their own (§8 scenario c — "(define memf (mem f))" followed
// by repeated "(memf 1)" calls all resolving to the same sub-trace,
// while "(memf 2)" gets its own). Bound as "mem".
//
// Sharing is keyed by hashValues of the call's operand values, the
// content-addressing scheme defined in psp.go.
// Ordinary (non-mem) compound calls deliberately use a per-call-site id
// instead (compound.go) so they are never accidentally shared.
type MakeMemOutputPSP struct{}

func (MakeMemOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("mem", args, 1); err != nil {
		return nil, err
	}
	wrapped := args.OperandValues[0]
	if _, err := wrapped.AsSPRef(); err != nil {
		return nil, fmt.Errorf("mem: operand is not a procedure: %w", err)
	}
	env := args.Node.Env()
	sp := &ventrace.SP{
		RequestPSP: &memRequestPSP{wrapped: wrapped, env: env},
		OutputPSP:  esrReferenceOutputPSP{},
	}
	return ventrace.NewSPRecordValue(ventrace.NewSPRecord(sp, nil)), nil
}
func (MakeMemOutputPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, fmt.Errorf("mem: not absorbing")
}
func (MakeMemOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (MakeMemOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (MakeMemOutputPSP) IsRandom() bool                                { return false }
func (MakeMemOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (MakeMemOutputPSP) ChildrenCanAAA() bool { return false }
func (MakeMemOutputPSP) IsESRReference() bool { return false }
func (MakeMemOutputPSP) IsNullRequest() bool  { return true }

// memRequestPSP issues one ESR per distinct argument list, applying the
// wrapped procedure value to the (quoted) operands directly: the ESR
// expression is a literal application of already-evaluated data, so the
// core's ordinary evalFamily/apply dispatch resolves it without this
// package ever calling into Trace internals (§5 resource discipline).
type memRequestPSP struct {
	wrapped *ventrace.Value
	env     *ventrace.Environment
}

func (p *memRequestPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	quotedOperands := make([]*ventrace.Value, len(args.OperandValues)+1)
	quotedOperands[0] = ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("quote"), p.wrapped})
	for i, v := range args.OperandValues {
		quotedOperands[i+1] = ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("quote"), v})
	}
	exp := ventrace.NewArray(quotedOperands)
	id := hashValues(args.OperandValues)
	return ventrace.NewRequestValue(&ventrace.Request{
		ESRs: []ventrace.ESR{{ID: id, Exp: exp, Env: p.env}},
	}), nil
}
func (p *memRequestPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) { return 0, nil }
func (p *memRequestPSP) Incorporate(*ventrace.Value, *ventrace.Args)                 {}
func (p *memRequestPSP) Unincorporate(*ventrace.Value, *ventrace.Args)               {}
func (p *memRequestPSP) IsRandom() bool                                              { return false }
func (p *memRequestPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (p *memRequestPSP) ChildrenCanAAA() bool { return false }
func (p *memRequestPSP) IsESRReference() bool { return false }
func (p *memRequestPSP) IsNullRequest() bool  { return false }
