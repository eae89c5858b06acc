// Package mcmc drives single-site Metropolis-Hastings inference over a
// ventrace.Trace: picking a block of principal nodes, building a
// scaffold around it, and accepting or rejecting the resulting proposal
// by the detach/regen weights the core computes (original_source's
// infer.cxx mh-related transition operators, spec.md §4.I).
package mcmc

import (
	"math"

	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// Kernel performs single-site MH transitions against one scope of a
// Trace. The zero Kernel targets the default scope (every unconstrained
// random choice is its own block, §3 "Scope/Block").
type Kernel struct {
	Scope *ventrace.Value
}

// New builds a kernel targeting scope. Pass nil for the default scope.
func New(scope *ventrace.Value) *Kernel { return &Kernel{Scope: scope} }

// Step performs one MH transition: sample a block, detach it, propose a
// fresh regen, and accept with probability min(1, exp(xi-rho)) (§4.I).
// A rejected proposal is undone by a second detach/regen pair that
// restores the pre-proposal state from the first detach's DB — the
// paired-call discipline detach/regen's documented weight-symmetry
// property relies on (spec.md §8.1, §9).
//
// On acceptance, every registered arbitrary-ergodic kernel also takes one
// conjugate-resampling step (Trace.AEInfer): this is a separate
// transition with no accept/reject test of its own, not part of the
// accept/reject ratio computed here (§4.D "AAA contract").
func (k *Kernel) Step(tr *ventrace.Trace) (bool, error) {
	if tr.Blocks(k.Scope) == 0 {
		return false, nil
	}
	block, err := tr.SampleBlock(k.Scope)
	if err != nil {
		return false, err
	}
	pNodes := tr.GetNodesInBlock(k.Scope, block)
	if len(pNodes) == 0 {
		return false, nil
	}

	scaffold, err := tr.BuildScaffold([]map[*ventrace.Node]bool{pNodes}, false)
	if err != nil {
		return false, err
	}

	rho, db, err := tr.Detach(scaffold)
	if err != nil {
		return false, err
	}
	xi, err := tr.Regen(scaffold, false, db)
	if err != nil {
		return false, err
	}

	alpha := xi - rho
	if alpha >= 0 || math.Log(tr.RNG().Float64()) < alpha {
		tr.Logger().Debug("mh accept", map[string]interface{}{"rho": rho, "xi": xi, "alpha": alpha})
		if err := tr.AEInfer(); err != nil {
			return false, err
		}
		return true, nil
	}
	tr.Logger().Debug("mh reject", map[string]interface{}{"rho": rho, "xi": xi, "alpha": alpha})

	if _, _, err := tr.Detach(scaffold); err != nil {
		return false, err
	}
	if _, err := tr.Regen(scaffold, true, db); err != nil {
		return false, err
	}
	return false, nil
}

// Run performs n successive Step calls, stopping early on the first
// error, and reports how many proposals were accepted.
func (k *Kernel) Run(tr *ventrace.Trace, n int) (int, error) {
	accepted := 0
	for i := 0; i < n; i++ {
		ok, err := k.Step(tr)
		if err != nil {
			return accepted, err
		}
		if ok {
			accepted++
		}
	}
	return accepted, nil
}
