// Package psp implements the concrete primitive stochastic procedures
// (SPs) needed to exercise ventrace's trace core end-to-end: Bernoulli,
// Gaussian and Beta primitives, an uncollapsed beta-Bernoulli pair with an
// arbitrary-ergodic kernel, a memoizing combinator, and the small set of
// deterministic primitives (if/arithmetic/comparison) the grammar needs
// to build real models.
//
// None of this is part of the trace core (ventrace §1 places concrete
// distributions out of scope); it is the minimal "external collaborator"
// layer the core's interfaces were designed to support.
package psp

import (
	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// NullRequestPSP is the request PSP shared by every primitive SP in this
// package: none of them are higher-order, so their request side never
// produces ESRs or HSRs (§4.D "isNullRequest").
type NullRequestPSP struct{}

func (NullRequestPSP) Simulate(args *ventrace.Args, rng ventrace.RNG) (*ventrace.Value, error) {
	return ventrace.NewRequestValue(&ventrace.Request{}), nil
}
func (NullRequestPSP) LogDensity(*ventrace.Value, *ventrace.Args) (float64, error) { return 0, nil }
func (NullRequestPSP) Incorporate(*ventrace.Value, *ventrace.Args)                 {}
func (NullRequestPSP) Unincorporate(*ventrace.Value, *ventrace.Args)               {}
func (NullRequestPSP) IsRandom() bool                                              { return false }
func (NullRequestPSP) CanAbsorb(*ventrace.Trace, *ventrace.Node, *ventrace.Node) bool {
	return true
}
func (NullRequestPSP) ChildrenCanAAA() bool { return false }
func (NullRequestPSP) IsESRReference() bool { return false }
func (NullRequestPSP) IsNullRequest() bool  { return true }

// requireArity fails with an ArityError unless args carries exactly want
// operands.
func requireArity(name string, args *ventrace.Args, want int) error {
	if len(args.OperandValues) != want {
		return &ventrace.ArityError{PSP: name, Got: len(args.OperandValues), Want: want}
	}
	return nil
}

// hashValues combines the structural hashes of a value list into a single
// FamilyID, the content-addressing scheme pkg/psp's mem combinator uses to
// decide whether two calls share an ESR family (§3 "FamilyID").
func hashValues(vals []*ventrace.Value) ventrace.FamilyID {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, v := range vals {
		h ^= v.Hash()
		h *= prime64
	}
	return ventrace.FamilyID(h)
}
