package psp

import (
	"math"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// BetaOutputPSP is a Beta(alpha, beta) random choice, bound as "beta"
// (§8 scenario d). Sampling draws two Marsaglia-Tsang Gamma variates
// (sampleBeta) and the density normalizes through math.Lgamma, since the
// pack carries no GSL-equivalent statistics library (SPEC_FULL.md DOMAIN
// STACK).
type BetaOutputPSP struct{}

func betaParams(args *ventrace.Args) (alpha, beta float64, err error) {
	if err := requireArity("beta", args, 2); err != nil {
		return 0, 0, err
	}
	alpha, err = args.OperandValues[0].AsDouble()
	if err != nil {
		return 0, 0, err
	}
	beta, err = args.OperandValues[1].AsDouble()
	return alpha, beta, err
}

func (BetaOutputPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	alpha, beta, err := betaParams(args)
	if err != nil {
		return nil, err
	}
	return ventrace.NewNumber(sampleBeta(alpha, beta, rng)), nil
}

func (BetaOutputPSP) LogDensity(value *ventrace.Value, args *ventrace.Args) (float64, error) {
	alpha, beta, err := betaParams(args)
	if err != nil {
		return 0, err
	}
	x, err := value.AsDouble()
	if err != nil {
		return 0, err
	}
	if x <= 0 || x >= 1 {
		return math.Inf(-1), nil
	}
	return (alpha-1)*math.Log(x) + (beta-1)*math.Log(1-x) - logBetaFunc(alpha, beta), nil
}

func (BetaOutputPSP) Incorporate(*ventrace.Value, *ventrace.Args)   {}
func (BetaOutputPSP) Unincorporate(*ventrace.Value, *ventrace.Args) {}
func (BetaOutputPSP) IsRandom() bool                                { return true }
func (BetaOutputPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (BetaOutputPSP) ChildrenCanAAA() bool { return false }
func (BetaOutputPSP) IsESRReference() bool { return false }
func (BetaOutputPSP) IsNullRequest() bool  { return true }

// logBetaFunc is the log Beta function, log B(a,b) = lgamma(a) +
// lgamma(b) - lgamma(a+b): the normalizing constant of the Beta density
// and the building block of BetaBernoulliLogLikelihood below.
func logBetaFunc(a, b float64) float64 {
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	lab, _ := math.Lgamma(a + b)
	return la + lb - lab
}

// BetaBernoulliLogLikelihood is the collapsed beta-Bernoulli marginal
// likelihood: the log probability of observing `heads` successes and
// `tails` failures under a Beta(alpha, beta) prior on the Bernoulli
// weight, integrating the weight out analytically.
func BetaBernoulliLogLikelihood(heads, tails, alpha, beta float64) float64 {
	return logBetaFunc(alpha+heads, beta+tails) - logBetaFunc(alpha, beta)
}

// sampleGamma draws from Gamma(shape, 1) via the Marsaglia-Tsang method,
// the standard rejection sampler used when no native Gamma generator is
// available (math/rand carries none).
func sampleGamma(shape float64, rng ventrace.RNG) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(shape+1, rng) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// sampleBeta draws from Beta(alpha, beta) as the ratio of two
// independent Gamma draws, the standard construction in the absence of a
// dedicated Beta sampler.
func sampleBeta(alpha, beta float64, rng ventrace.RNG) float64 {
	x := sampleGamma(alpha, rng)
	y := sampleGamma(beta, rng)
	return x / (x + y)
}
