package psp

import "github.com/gitrdm/ventrace/pkg/ventrace"

// deterministicPSP is embedded by every pure-function primitive in this
// file: none of them are random, none can be partially absorbed (a
// changed operand always forces recomputation, §4.E step 2), and none
// issue requests.
type deterministicPSP struct{}

func (deterministicPSP) IsRandom() bool { return false }
func (deterministicPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (deterministicPSP) ChildrenCanAAA() bool                                { return false }
func (deterministicPSP) IsESRReference() bool                                { return false }
func (deterministicPSP) IsNullRequest() bool                                 { return true }
func (deterministicPSP) Incorporate(*ventrace.Value, *ventrace.Args)         {}
func (deterministicPSP) Unincorporate(*ventrace.Value, *ventrace.Args)       {}
func (deterministicPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, nil
}

func operandDoubles(args *ventrace.Args) ([]float64, error) {
	out := make([]float64, len(args.OperandValues))
	for i, v := range args.OperandValues {
		d, err := v.AsDouble()
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// PlusOutputPSP sums its operands.
type PlusOutputPSP struct{ deterministicPSP }

func (PlusOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	xs, err := operandDoubles(args)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return ventrace.NewNumber(sum), nil
}

// MinusOutputPSP subtracts its second operand from its first.
type MinusOutputPSP struct{ deterministicPSP }

func (MinusOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("-", args, 2); err != nil {
		return nil, err
	}
	xs, err := operandDoubles(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewNumber(xs[0] - xs[1]), nil
}

// TimesOutputPSP multiplies its operands.
type TimesOutputPSP struct{ deterministicPSP }

func (TimesOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	xs, err := operandDoubles(args)
	if err != nil {
		return nil, err
	}
	prod := 1.0
	for _, x := range xs {
		prod *= x
	}
	return ventrace.NewNumber(prod), nil
}

// DivOutputPSP divides its first operand by its second.
type DivOutputPSP struct{ deterministicPSP }

func (DivOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("/", args, 2); err != nil {
		return nil, err
	}
	xs, err := operandDoubles(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewNumber(xs[0] / xs[1]), nil
}

// LtOutputPSP reports whether its first operand is less than its second.
type LtOutputPSP struct{ deterministicPSP }

func (LtOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("<", args, 2); err != nil {
		return nil, err
	}
	xs, err := operandDoubles(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewBool(xs[0] < xs[1]), nil
}

// GtOutputPSP reports whether its first operand is greater than its
// second.
type GtOutputPSP struct{ deterministicPSP }

func (GtOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity(">", args, 2); err != nil {
		return nil, err
	}
	xs, err := operandDoubles(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewBool(xs[0] > xs[1]), nil
}

// EqOutputPSP reports structural equality of its two operands (§4.A
// "equals").
type EqOutputPSP struct{ deterministicPSP }

func (EqOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("=", args, 2); err != nil {
		return nil, err
	}
	return ventrace.NewBool(args.OperandValues[0].Equal(args.OperandValues[1])), nil
}

// NotOutputPSP negates its single boolean operand.
type NotOutputPSP struct{ deterministicPSP }

func (NotOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	if err := requireArity("not", args, 1); err != nil {
		return nil, err
	}
	b, err := args.OperandValues[0].AsBool()
	if err != nil {
		return nil, err
	}
	return ventrace.NewBool(!b), nil
}
