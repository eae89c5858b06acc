package psp

import "github.com/gitrdm/ventrace/pkg/ventrace"

// simpleSP pairs a deterministic or directly-bindable output PSP with the
// null request PSP shared by every non-higher-order SP in this package.
func simpleSP(out ventrace.PSP) *ventrace.SP {
	return &ventrace.SP{RequestPSP: NullRequestPSP{}, OutputPSP: out}
}

// BindAll registers every concrete SP this package defines into tr's
// global environment, the way original_source's ConcreteTrace
// constructor wires its builtin table (concrete_trace.cxx). Called once
// when a fresh Trace is built (pkg/directive, cmd/ventrace).
func BindAll(tr *ventrace.Trace) {
	tr.BindBuiltin("flip", simpleSP(&FlipOutputPSP{P: 0.5}))
	tr.BindBuiltin("make_flip", simpleSP(MakeFlipOutputPSP{}))
	tr.BindBuiltin("normal", simpleSP(NormalOutputPSP{}))
	tr.BindBuiltin("beta", simpleSP(BetaOutputPSP{}))
	tr.BindBuiltin("make_beta_bernoulli", simpleSP(MakeBetaBernoulliOutputPSP{}))
	tr.BindBuiltin("make_uBetaBernoulli", simpleSP(MakeUBetaBernoulliOutputPSP{}))

	tr.BindBuiltin("lambda", simpleSP(MakeCompoundOutputPSP{}))
	tr.BindBuiltin("mem", simpleSP(MakeMemOutputPSP{}))

	tr.BindBuiltin("if", simpleSP(IfOutputPSP{}))
	tr.BindBuiltin("+", simpleSP(PlusOutputPSP{}))
	tr.BindBuiltin("-", simpleSP(MinusOutputPSP{}))
	tr.BindBuiltin("*", simpleSP(TimesOutputPSP{}))
	tr.BindBuiltin("/", simpleSP(DivOutputPSP{}))
	tr.BindBuiltin("<", simpleSP(LtOutputPSP{}))
	tr.BindBuiltin(">", simpleSP(GtOutputPSP{}))
	tr.BindBuiltin("=", simpleSP(EqOutputPSP{}))
	tr.BindBuiltin("not", simpleSP(NotOutputPSP{}))
}
