package psp

import (
	"fmt"
	"math"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// UBetaBernoulliAux holds the uncollapsed beta-Bernoulli instance's
// latent weight and sufficient statistics (original_source's
// UBetaBernoulliSPAux / UBetaBernoulliAux, betabernoulli.cxx).
type UBetaBernoulliAux struct {
	P     float64
	Heads int
	Tails int
}

// Clone deep-copies the aux for detach's copy-on-write snapshot (§4.F,
// §9).
func (a *UBetaBernoulliAux) Clone() ventrace.SPAux {
	cp := *a
	return &cp
}

// MakeUBetaBernoulliOutputPSP is the maker for the uncollapsed
// beta-Bernoulli pair: it draws a latent weight p ~ Beta(alpha, beta)
// once, then returns an SP whose applications are Bernoulli(p) draws
// that accumulate heads/tails in the aux (original_source
// betabernoulli.cxx's MakeUBetaBernoulliOutputPSP, §8 scenario d).
type MakeUBetaBernoulliOutputPSP struct{}

func (MakeUBetaBernoulliOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	alpha, beta, err := betaParams(args)
	if err != nil {
		return nil, err
	}
	p := sampleBeta(alpha, beta, rng)
	aux := &UBetaBernoulliAux{P: p}
	sp := &ventrace.SP{
		RequestPSP:  NullRequestPSP{},
		OutputPSP:   &UBetaBernoulliOutputPSP{},
		HasAEKernel: true,
		HasAux:      true,
		NewAux:      func() ventrace.SPAux { return &UBetaBernoulliAux{} },
		AEInfer:     aeInferUBetaBernoulli(alpha, beta),
	}
	rec := ventrace.NewSPRecord(sp, aux)
	return ventrace.NewSPRecordValue(rec), nil
}

// aeInferUBetaBernoulli closes over the Beta prior's hyperparameters
// (fixed at maker time) and returns an AEInfer that resamples the
// latent weight from its conjugate posterior given the current
// heads/tails counts — the analytic transition original_source's
// UBetaBernoulliSP::AEInfer left as assert(false) (spec.md §9 only flags
// the collapsed PSP's logDensityOfCounts as unsupported, not this method,
// so it is implemented rather than stubbed).
func aeInferUBetaBernoulli(alpha, beta float64) func(ventrace.SPAux, ventrace.RNG) error {
	return func(spAux ventrace.SPAux, rng ventrace.RNG) error {
		aux, ok := spAux.(*UBetaBernoulliAux)
		if !ok {
			return nil
		}
		aux.P = sampleBeta(alpha+float64(aux.Heads), beta+float64(aux.Tails), rng)
		return nil
	}
}

// LogDensity is unreachable through detach/regen in practice (CanAbsorb
// below is false, so scaffold construction never classifies this maker's
// application as absorbing); kept only so the PSP interface is total.
func (MakeUBetaBernoulliOutputPSP) LogDensity(value *ventrace.Value, args *ventrace.Args) (float64, error) {
	alpha, beta, err := betaParams(args)
	if err != nil {
		return 0, err
	}
	rec, err := value.AsSPRecord()
	if err != nil {
		return 0, fmt.Errorf("make_uBetaBernoulli: %w", err)
	}
	aux, ok := rec.Aux.(*UBetaBernoulliAux)
	if !ok {
		return 0, fmt.Errorf("make_uBetaBernoulli: value has no UBetaBernoulliAux")
	}
	return BetaBernoulliLogLikelihood(float64(aux.Heads), float64(aux.Tails), alpha, beta), nil
}

func (MakeUBetaBernoulliOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (MakeUBetaBernoulliOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (MakeUBetaBernoulliOutputPSP) IsRandom() bool                                { return true }
func (MakeUBetaBernoulliOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (MakeUBetaBernoulliOutputPSP) ChildrenCanAAA() bool { return false }
func (MakeUBetaBernoulliOutputPSP) IsESRReference() bool { return false }
func (MakeUBetaBernoulliOutputPSP) IsNullRequest() bool  { return false }

// UBetaBernoulliOutputPSP is the output PSP of applications of the made
// SP (the "coin" itself): Bernoulli(aux.P), with incorporate/unincorporate
// exact inverses of each other — fixing the bug spec.md §9 calls out in
// the source, where unincorporate also increments instead of
// decrementing.
type UBetaBernoulliOutputPSP struct{}

func (UBetaBernoulliOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	aux, ok := args.Aux.(*UBetaBernoulliAux)
	if !ok {
		return nil, fmt.Errorf("uBetaBernoulli: missing aux")
	}
	return ventrace.NewBool(rng.Float64() < aux.P), nil
}

func (UBetaBernoulliOutputPSP) LogDensity(value *ventrace.Value, args *ventrace.Args) (float64, error) {
	aux, ok := args.Aux.(*UBetaBernoulliAux)
	if !ok {
		return 0, fmt.Errorf("uBetaBernoulli: missing aux")
	}
	b, err := value.AsBool()
	if err != nil {
		return 0, err
	}
	if b {
		return math.Log(aux.P), nil
	}
	return math.Log(1 - aux.P), nil
}

func (UBetaBernoulliOutputPSP) Incorporate(value *ventrace.Value, args *ventrace.Args) {
	aux, ok := args.Aux.(*UBetaBernoulliAux)
	if !ok {
		return
	}
	if b, _ := value.AsBool(); b {
		aux.Heads++
	} else {
		aux.Tails++
	}
}

// Unincorporate is the exact inverse of Incorporate (spec.md §9 bullet 2:
// the source increments both paths, which this implementation does not
// reproduce).
func (UBetaBernoulliOutputPSP) Unincorporate(value *ventrace.Value, args *ventrace.Args) {
	aux, ok := args.Aux.(*UBetaBernoulliAux)
	if !ok {
		return
	}
	if b, _ := value.AsBool(); b {
		aux.Heads--
	} else {
		aux.Tails--
	}
}

func (UBetaBernoulliOutputPSP) IsRandom() bool { return true }
func (UBetaBernoulliOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (UBetaBernoulliOutputPSP) ChildrenCanAAA() bool { return true }
func (UBetaBernoulliOutputPSP) IsESRReference() bool { return false }
func (UBetaBernoulliOutputPSP) IsNullRequest() bool  { return true }

// LogDensityOfCounts summarizes every absorbing Bernoulli(aux.P)
// application in one call, the contract AAA detach/regen needs instead of
// re-visiting each application node individually (§4.D, §4.E step 3).
func (UBetaBernoulliOutputPSP) LogDensityOfCounts(spAux ventrace.SPAux) (float64, error) {
	aux, ok := spAux.(*UBetaBernoulliAux)
	if !ok {
		return 0, fmt.Errorf("uBetaBernoulli: missing aux")
	}
	return float64(aux.Heads)*math.Log(aux.P) + float64(aux.Tails)*math.Log(1-aux.P), nil
}

// MakeBetaBernoulliOutputPSP is the fully-collapsed maker: the Bernoulli
// weight is marginalized out analytically, so applications carry no
// latent parameter at all, only heads/tails counts
// (original_source betabernoulli.cxx's MakeBetaBernoulliOutputPSP).
type MakeBetaBernoulliOutputPSP struct{}

// BetaBernoulliAux holds only the sufficient statistics; the collapsed
// weight itself is never materialized.
type BetaBernoulliAux struct {
	Heads, Tails int
}

func (a *BetaBernoulliAux) Clone() ventrace.SPAux {
	cp := *a
	return &cp
}

func (MakeBetaBernoulliOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	alpha, beta, err := betaParams(args)
	if err != nil {
		return nil, err
	}
	sp := &ventrace.SP{
		RequestPSP: NullRequestPSP{},
		OutputPSP:  &BetaBernoulliOutputPSP{Alpha: alpha, Beta: beta},
		HasAux:     true,
		NewAux:     func() ventrace.SPAux { return &BetaBernoulliAux{} },
	}
	return ventrace.NewSPRecordValue(ventrace.NewSPRecord(sp, &BetaBernoulliAux{})), nil
}
func (MakeBetaBernoulliOutputPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) {
	return 0, fmt.Errorf("make_beta_bernoulli: not absorbing")
}
func (MakeBetaBernoulliOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (MakeBetaBernoulliOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (MakeBetaBernoulliOutputPSP) IsRandom() bool                                { return false }
func (MakeBetaBernoulliOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return false
}
func (MakeBetaBernoulliOutputPSP) ChildrenCanAAA() bool { return false }
func (MakeBetaBernoulliOutputPSP) IsESRReference() bool { return false }
func (MakeBetaBernoulliOutputPSP) IsNullRequest() bool  { return false }

// BetaBernoulliOutputPSP is the collapsed coin: Bernoulli(a/(a+b)) where
// a, b are the prior hyperparameters shifted by the running counts.
type BetaBernoulliOutputPSP struct {
	Alpha, Beta float64
}

func (p *BetaBernoulliOutputPSP) weight(args *ventrace.Args) (float64, error) {
	aux, ok := args.Aux.(*BetaBernoulliAux)
	if !ok {
		return 0, fmt.Errorf("beta_bernoulli: missing aux")
	}
	a := p.Alpha + float64(aux.Heads)
	b := p.Beta + float64(aux.Tails)
	return a / (a + b), nil
}

func (p *BetaBernoulliOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	w, err := p.weight(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewBool(rng.Float64() < w), nil
}

func (p *BetaBernoulliOutputPSP) LogDensity(value *ventrace.Value, args *ventrace.Args) (float64, error) {
	w, err := p.weight(args)
	if err != nil {
		return 0, err
	}
	b, err := value.AsBool()
	if err != nil {
		return 0, err
	}
	if b {
		return math.Log(w), nil
	}
	return math.Log(1 - w), nil
}

func (p *BetaBernoulliOutputPSP) Incorporate(value *ventrace.Value, args *ventrace.Args) {
	aux, ok := args.Aux.(*BetaBernoulliAux)
	if !ok {
		return
	}
	if b, _ := value.AsBool(); b {
		aux.Heads++
	} else {
		aux.Tails++
	}
}

func (p *BetaBernoulliOutputPSP) Unincorporate(value *ventrace.Value, args *ventrace.Args) {
	aux, ok := args.Aux.(*BetaBernoulliAux)
	if !ok {
		return
	}
	if b, _ := value.AsBool(); b {
		aux.Heads--
	} else {
		aux.Tails--
	}
}

func (p *BetaBernoulliOutputPSP) IsRandom() bool { return true }
func (p *BetaBernoulliOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (p *BetaBernoulliOutputPSP) ChildrenCanAAA() bool { return true }
func (p *BetaBernoulliOutputPSP) IsESRReference() bool { return false }
func (p *BetaBernoulliOutputPSP) IsNullRequest() bool  { return true }

// LogDensityOfCounts reports ErrUnsupportedAAA: original_source's
// BetaBernoulliOutputPSP::logDensityOfCounts is `assert(false) // TODO`
// (spec.md §9 bullet 3); this is the reportable replacement
// SPEC_FULL.md's SUPPLEMENTED FEATURES calls for.
func (p *BetaBernoulliOutputPSP) LogDensityOfCounts(ventrace.SPAux) (float64, error) {
	return 0, ventrace.ErrUnsupportedAAA
}
