package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gitrdm/ventrace/pkg/directive"
	"github.com/gitrdm/ventrace/pkg/mcmc"
	"github.com/gitrdm/ventrace/pkg/ventrace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Build a beta-Bernoulli coin model and run MH inference over it",
	Long: `Builds (assume weight (beta alpha beta)) plus one (flip weight)
observation per --observe value, runs the requested number of single-site
Metropolis-Hastings steps over the resulting trace, and reports the
posterior mean of weight (the running average of its sampled value,
which is exact in the large-sample limit for an ergodic chain).`,
	RunE: runModel,
}

func init() {
	runCmd.Flags().Float64("alpha", 1, "beta prior alpha hyperparameter")
	runCmd.Flags().Float64("beta", 1, "beta prior beta hyperparameter")
	runCmd.Flags().String("observe", "T,T,T,F,T,F,T,T", "comma-separated T/F coin flips to observe")
	runCmd.Flags().Int("iterations", 2000, "number of MH transitions to run")
}

func runModel(cmd *cobra.Command, args []string) error {
	alpha, _ := cmd.Flags().GetFloat64("alpha")
	beta, _ := cmd.Flags().GetFloat64("beta")
	observeStr, _ := cmd.Flags().GetString("observe")
	iterations, _ := cmd.Flags().GetInt("iterations")

	obs, err := parseObservations(observeStr)
	if err != nil {
		return fmt.Errorf("--observe: %w", err)
	}

	level := zerolog.InfoLevel
	if cfgVerbose {
		level = zerolog.DebugLevel
	}
	logger := ventrace.NewLogger(ventrace.LoggerConfig{Level: level})

	opts := []ventrace.TraceOption{ventrace.WithLogger(logger)}
	if cfgSeed != 0 {
		opts = append(opts, ventrace.WithSeed(cfgSeed))
	}
	prog := directive.New(opts...)

	priorExp := ventrace.NewArray([]*ventrace.Value{
		ventrace.NewSymbol("beta"),
		ventrace.NewNumber(alpha),
		ventrace.NewNumber(beta),
	})
	if _, err := prog.Assume("weight", priorExp); err != nil {
		return fmt.Errorf("assume weight: %w", err)
	}

	flipExp := ventrace.NewArray([]*ventrace.Value{ventrace.NewSymbol("flip"), ventrace.NewSymbol("weight")})
	for _, b := range obs {
		if _, err := prog.Observe(flipExp, ventrace.NewBool(b)); err != nil {
			return fmt.Errorf("observe: %w", err)
		}
	}
	if err := prog.MakeConsistent(); err != nil {
		return fmt.Errorf("make consistent: %w", err)
	}

	kernel := mcmc.New(nil)
	var sum float64
	accepted := 0
	for i := 0; i < iterations; i++ {
		ok, err := kernel.Step(prog.Trace)
		if err != nil {
			return fmt.Errorf("mh step %d: %w", i, err)
		}
		if ok {
			accepted++
		}
		v, err := prog.ReportByName("weight")
		if err != nil {
			return err
		}
		w, err := v.AsDouble()
		if err != nil {
			return err
		}
		sum += w
	}

	fmt.Printf("observations: %d (heads=%d)\n", len(obs), countHeads(obs))
	fmt.Printf("iterations: %d, accepted: %d (%.1f%%)\n", iterations, accepted, 100*float64(accepted)/float64(iterations))
	if iterations > 0 {
		fmt.Printf("posterior mean estimate of weight: %.4f\n", sum/float64(iterations))
	}
	return nil
}

func parseObservations(s string) ([]bool, error) {
	parts := strings.Split(s, ",")
	out := make([]bool, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		switch strings.ToUpper(p) {
		case "T", "TRUE", "1":
			out = append(out, true)
		case "F", "FALSE", "0":
			out = append(out, false)
		default:
			if n, err := strconv.Atoi(p); err == nil {
				out = append(out, n != 0)
				continue
			}
			return nil, fmt.Errorf("unrecognized observation %q", p)
		}
	}
	return out, nil
}

func countHeads(obs []bool) int {
	n := 0
	for _, b := range obs {
		if b {
			n++
		}
	}
	return n
}
