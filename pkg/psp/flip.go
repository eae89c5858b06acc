package psp

import (
	"fmt"
	"math"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// MakeFlipOutputPSP is the output PSP for the "make_flip" maker: given a
// weight p (defaulting to 0.5 when no operand is supplied by the caller,
// mirroring Venture's `(flip)` with no args), it returns a fresh SP whose
// applications are Bernoulli(p) draws with no sufficient statistics of
// their own (grounded on original_source's MakeBetaBernoulliOutputPSP
// shape, but without the aux: flip's weight is fixed at maker time, not
// updated by incorporate).
type MakeFlipOutputPSP struct{}

func (MakeFlipOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	p := 0.5
	if len(args.OperandValues) == 1 {
		v, err := args.OperandValues[0].AsDouble()
		if err != nil {
			return nil, err
		}
		p = v
	} else if len(args.OperandValues) != 0 {
		return nil, &ventrace.ArityError{PSP: "make_flip", Got: len(args.OperandValues), Want: 1}
	}
	sp := &ventrace.SP{
		RequestPSP: NullRequestPSP{},
		OutputPSP:  &FlipOutputPSP{P: p},
	}
	return ventrace.NewSPRecordValue(ventrace.NewSPRecord(sp, nil)), nil
}
func (MakeFlipOutputPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, fmt.Errorf("make_flip: not absorbing")
}
func (MakeFlipOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (MakeFlipOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (MakeFlipOutputPSP) IsRandom() bool                                { return false }
func (MakeFlipOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (MakeFlipOutputPSP) ChildrenCanAAA() bool { return false }
func (MakeFlipOutputPSP) IsESRReference() bool { return false }
func (MakeFlipOutputPSP) IsNullRequest() bool  { return false }

// FlipOutputPSP is a Bernoulli(P) random choice, directly callable
// without a maker step (bound into the global env as "flip" for the
// common one-shot case, §8 scenario b).
type FlipOutputPSP struct {
	P float64
}

func (p *FlipOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	weight := p.P
	if len(args.OperandValues) == 1 {
		v, err := args.OperandValues[0].AsDouble()
		if err != nil {
			return nil, err
		}
		weight = v
	}
	return ventrace.NewBool(rng.Float64() < weight), nil
}

func (p *FlipOutputPSP) LogDensity(value *ventrace.Value, args *ventrace.Args) (float64, error) {
	weight := p.P
	if len(args.OperandValues) == 1 {
		v, err := args.OperandValues[0].AsDouble()
		if err != nil {
			return 0, err
		}
		weight = v
	}
	b, err := value.AsBool()
	if err != nil {
		return 0, err
	}
	if b {
		return math.Log(weight), nil
	}
	return math.Log(1 - weight), nil
}

func (p *FlipOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (p *FlipOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (p *FlipOutputPSP) IsRandom() bool                                { return true }
func (p *FlipOutputPSP) CanAbsorb(tr *ventrace.Trace, appNode, parentNode *ventrace.Node) bool {
	return true
}
func (p *FlipOutputPSP) ChildrenCanAAA() bool { return false }
func (p *FlipOutputPSP) IsESRReference() bool { return false }
func (p *FlipOutputPSP) IsNullRequest() bool  { return true }
