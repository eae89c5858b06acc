package chainrunner

import (
	"context"
	"fmt"

	"github.com/gitrdm/ventrace/pkg/directive"
	"github.com/gitrdm/ventrace/pkg/mcmc"
	"github.com/gitrdm/ventrace/pkg/ventrace"
)

// ChainSpec describes one independent chain: a model-building callback
// that assumes/observes against a fresh Program, the scope to run MH
// over (nil for the default scope), the number of transitions to run,
// and a seed so each chain's RNG stream is reproducible and distinct
// from its siblings.
type ChainSpec struct {
	Seed       int64
	Build      func(p *directive.Program) error
	Scope      *ventrace.Value
	Iterations int
}

// ChainResult is one chain's outcome: its final Program (so callers can
// Report any directive) plus how many of its MH proposals were accepted,
// or an error if the chain's Build callback or inference failed.
type ChainResult struct {
	Index    int
	Program  *directive.Program
	Accepted int
	Err      error
}

// Run drives every spec in specs on a Pool of workers concurrently, each
// owning its own Trace end to end, and returns one ChainResult per spec
// in input order. Per spec.md §5, no state is shared between chains
// beyond the results slice each worker writes its own index of.
func Run(ctx context.Context, workers int, specs []ChainSpec) ([]ChainResult, error) {
	pool := NewPool(workers)
	defer pool.Shutdown()

	results := make([]ChainResult, len(specs))
	done := make(chan int, len(specs))

	for i, spec := range specs {
		i, spec := i, spec
		task := func() {
			results[i] = runChain(i, spec)
			done <- i
		}
		if err := pool.Submit(ctx, task); err != nil {
			return nil, err
		}
	}

	for range specs {
		select {
		case <-done:
		case <-ctx.Done():
			return results, ctx.Err()
		}
	}
	return results, nil
}

func runChain(index int, spec ChainSpec) (result ChainResult) {
	result.Index = index
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("chain %d panicked: %v", index, r)
		}
	}()

	prog := directive.New(ventrace.WithSeed(spec.Seed))
	result.Program = prog

	if err := spec.Build(prog); err != nil {
		result.Err = fmt.Errorf("chain %d: build model: %w", index, err)
		return result
	}
	if err := prog.MakeConsistent(); err != nil {
		result.Err = fmt.Errorf("chain %d: make consistent: %w", index, err)
		return result
	}

	kernel := mcmc.New(spec.Scope)
	accepted, err := kernel.Run(prog.Trace, spec.Iterations)
	result.Accepted = accepted
	if err != nil {
		result.Err = fmt.Errorf("chain %d: infer: %w", index, err)
	}
	return result
}
