package psp

import "github.com/gitrdm/ventrace/pkg/ventrace"

// IfOutputPSP is a plain deterministic ternary: given (cond, thenVal,
// elseVal) it returns thenVal or elseVal verbatim. Both branches are
// ordinary operands under this grammar (§6 "Expression grammar" defines
// no special forms beyond quote), so callers that want only the taken
// branch's side effects to run — e.g. §8 scenario e's `(if (flip 0.5)
// (lambda () 1) (lambda () 2))`, where each branch is itself a lambda
// expression rather than its evaluated body — get that for free: a
// lambda expression's operand evaluation just builds a cheap closure
// value (pkg/psp's MakeCompoundOutputPSP), never touching the body. The
// body only runs once the chosen branch is actually called, which is
// exactly where the unused branch's would-be sub-trace never gets built
// at all, and where a changed condition tears down the previously-built
// call's ESR family as ordinary brush (§4.E, §8 scenario e).
type IfOutputPSP struct{ deterministicPSP }

func (IfOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("if", args, 3); err != nil {
		return nil, err
	}
	cond, err := args.OperandValues[0].AsBool()
	if err != nil {
		return nil, err
	}
	if cond {
		return args.OperandValues[1], nil
	}
	return args.OperandValues[2], nil
}
