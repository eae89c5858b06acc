package psp

import (
	"fmt"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// MakeCompoundOutputPSP builds a user-defined ("compound") procedure
// value from a parameter-symbol array and a body expression, both passed
// as ordinary (already-evaluated) operands — callers wrap them in
// (quote ...) so they arrive as data rather than being evaluated eagerly,
// the grammar's only special form (§6). Bound as "lambda".
//
// A compound procedure is higher-order: applying it does not simulate a
// value directly, it issues a single ESR evaluating the body with the
// call's argument values substituted in for the parameter symbols, and
// its output forwards that ESR's value (§4.D "ESR-reference outputs").
// Binding by substitution rather than by an extended Environment keeps
// this package free of any need to reach into ventrace.Trace internals:
// Environment and Node are exported, but evalFamily/apply are not, and a
// PSP must not call them directly (§5 resource discipline — Simulate
// takes no Trace).
type MakeCompoundOutputPSP struct{}

func (MakeCompoundOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("lambda", args, 2); err != nil {
		return nil, err
	}
	paramVals, err := args.OperandValues[0].AsArray()
	if err != nil {
		return nil, err
	}
	params := make([]string, len(paramVals))
	for i, p := range paramVals {
		sym, err := p.AsSymbol()
		if err != nil {
			return nil, err
		}
		params[i] = sym
	}
	body := args.OperandValues[1]
	env := args.Node.Env()
	sp := &ventrace.SP{
		RequestPSP: &compoundRequestPSP{params: params, body: body, env: env},
		OutputPSP:  esrReferenceOutputPSP{},
	}
	return ventrace.NewSPRecordValue(ventrace.NewSPRecord(sp, nil)), nil
}
func (MakeCompoundOutputPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, fmt.Errorf("lambda: not absorbing")
}
func (MakeCompoundOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (MakeCompoundOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (MakeCompoundOutputPSP) IsRandom() bool                                { return false }
func (MakeCompoundOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (MakeCompoundOutputPSP) ChildrenCanAAA() bool { return false }
func (MakeCompoundOutputPSP) IsESRReference() bool { return false }
func (MakeCompoundOutputPSP) IsNullRequest() bool  { return true }

// compoundRequestPSP is the request side of one compound procedure's
// applications: one ESR per call, substituting the call's argument
// values for the closure's parameter symbols in the captured body, and
// content-addressed by a fresh id per call site (non-memoized calls are
// never shared — mem.go wraps this to make them shared instead).
type compoundRequestPSP struct {
	params []string
	body   *ventrace.Value
	env    *ventrace.Environment
}

func (p *compoundRequestPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("compound application", args, len(p.params)); err != nil {
		return nil, err
	}
	exp := substitute(p.body, p.params, args.OperandValues)
	id := ventrace.FamilyID(uint64(args.Node.ID()))
	return ventrace.NewRequestValue(&ventrace.Request{
		ESRs: []ventrace.ESR{{ID: id, Exp: exp, Env: p.env}},
	}), nil
}
func (p *compoundRequestPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, nil
}
func (p *compoundRequestPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (p *compoundRequestPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (p *compoundRequestPSP) IsRandom() bool                                { return false }
func (p *compoundRequestPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (p *compoundRequestPSP) ChildrenCanAAA() bool { return false }
func (p *compoundRequestPSP) IsESRReference() bool { return false }
func (p *compoundRequestPSP) IsNullRequest() bool  { return false }

// esrReferenceOutputPSP is the output side shared by every compound
// application (and mem's re-exported applications): the core's applyPSP
// handles IsESRReference specially and never calls Simulate/LogDensity on
// it (§4.D "ESR-reference outputs").
type esrReferenceOutputPSP struct{}

func (esrReferenceOutputPSP) Simulate(*ventrace.Args, ventrace.RNG) (*ventrace.Value, error) {
	return nil, fmt.Errorf("esr-reference output: simulate should never be called")
}
func (esrReferenceOutputPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, fmt.Errorf("esr-reference output: logDensity should never be called")
}
func (esrReferenceOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (esrReferenceOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (esrReferenceOutputPSP) IsRandom() bool                                { return false }
func (esrReferenceOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (esrReferenceOutputPSP) ChildrenCanAAA() bool { return false }
func (esrReferenceOutputPSP) IsESRReference() bool { return true }
func (esrReferenceOutputPSP) IsNullRequest() bool  { return false }

// substitute walks exp, replacing every symbol in params with a (quote
// val) wrapping the corresponding argument value, and leaving everything
// else (including free symbols, resolved later against the closure's
// captured environment) untouched.
func substitute(exp *ventrace.Value, params []string, vals []*ventrace.Value) *ventrace.Value {
	switch exp.Kind() {
	case ventrace.KindSymbol:
		sym, _ := exp.AsSymbol()
		for i, p := range params {
			if p == sym {
				return ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("quote"), vals[i]})
			}
		}
		return exp
	case ventrace.KindArray:
		elems, _ := exp.AsArray()
		if len(elems) == 2 {
			if sym, err := elems[0].AsSymbol(); err == nil && sym == "quote" {
				return exp
			}
		}
		out := make([]*ventrace.Value, len(elems))
		for i, e := range elems {
			out[i] = substitute(e, params, vals)
		}
		return ventrace.NewArray(out)
	case ventrace.KindPair:
		car, _ := exp.Car()
		cdr, _ := exp.Cdr()
		return ventrace.NewPair(substitute(car, params, vals), substitute(cdr, params, vals))
	default:
		return exp
	}
}
