package psp

import (
	"math"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// NormalOutputPSP is a Gaussian(mu, sigma) random choice, bound directly
// as "normal" (§8 scenario a). It draws through the trace's own RNG
// (§5 "RNG") rather than the process-global generator.
type NormalOutputPSP struct{}

func normalParams(args *ventrace.Args) (mu, sigma float64, err error) {
	if err := requireArity("normal", args, 2); err != nil {
		return 0, 0, err
	}
	mu, err = args.OperandValues[0].AsDouble()
	if err != nil {
		return 0, 0, err
	}
	sigma, err = args.OperandValues[1].AsDouble()
	if err != nil {
		return 0, 0, err
	}
	return mu, sigma, nil
}

func (NormalOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	mu, sigma, err := normalParams(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewNumber(mu + sigma*rng.NormFloat64()), nil
}

func (NormalOutputPSP) LogDensity(value *ventrace.Value, args *ventrace.Args) (float64, error) {
	mu, sigma, err := normalParams(args)
	if err != nil {
		return 0, err
	}
	x, err := value.AsDouble()
	if err != nil {
		return 0, err
	}
	z := (x - mu) / sigma
	return -0.5*z*z - math.Log(sigma) - 0.5*math.Log(2*math.Pi), nil
}

func (NormalOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (NormalOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (NormalOutputPSP) IsRandom() bool                                { return true }
func (NormalOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (NormalOutputPSP) ChildrenCanAAA() bool { return false }
func (NormalOutputPSP) IsESRReference() bool { return false }
func (NormalOutputPSP) IsNullRequest() bool  { return true }
