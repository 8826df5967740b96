package main

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldcanon/internal/analysis"
	"github.com/san-kum/fieldcanon/internal/experiment"
	"github.com/san-kum/fieldcanon/internal/optim"
	"github.com/san-kum/fieldcanon/internal/sim"
)

func analyzeCmd() *cobra.Command {
	var (
		fields  []string
		perturb float64
		horizon int
		xField  string
		yField  string
	)
	cmd := &cobra.Command{
		Use:   "analyze [input]",
		Short: "spectrum, sensitivity and phase portrait of a compile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := coefficients()
			e, err := sim.New(fc, sim.WithLogger(logger), sim.WithTrace(1))
			if err != nil {
				return err
			}
			result, err := e.CompileInput(cmd.Context(), args[0], cfg.FieldProfile())
			if err != nil {
				return err
			}
			fmt.Printf("%s after %d steps\n\n", result.Status, result.StepsTaken)

			for _, f := range fields {
				s, err := analysis.Summarize(result.Trace, f)
				if err != nil {
					return err
				}
				fmt.Println(s)
			}

			lambda, err := analysis.Sensitivity(cmd.Context(), args[0], cfg.FieldProfile(), fc, perturb, horizon)
			if err != nil {
				return err
			}
			verdict := "contracting"
			if lambda > 0 {
				verdict = "diverging"
			}
			fmt.Printf("\nsensitivity: %.6f per unit time (%s)\n", lambda, verdict)

			crossings := analysis.SectorCrossings(result.Trace)
			fmt.Printf("sector crossings: %d\n\n", len(crossings))

			p, err := analysis.NewPortrait(result.Trace, xField, yField)
			if err != nil {
				return err
			}
			fmt.Printf("%s vs %s\n", yField, xField)
			fmt.Print(analysis.PortraitToASCII(p, 60, 16))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&fields, "field", []string{"phase", "coherence"}, "trace fields to analyze")
	cmd.Flags().Float64Var(&perturb, "perturb", 1e-6, "initial semantic tension offset")
	cmd.Flags().IntVar(&horizon, "horizon", 500, "steps for the sensitivity estimate")
	cmd.Flags().StringVar(&xField, "x", "tension", "portrait x field")
	cmd.Flags().StringVar(&yField, "y", "coherence", "portrait y field")
	return cmd
}

func bifurcateCmd() *cobra.Command {
	var (
		param  string
		lo, hi float64
		points int
		fld    string
		tail   int
	)
	cmd := &cobra.Command{
		Use:   "bifurcate [input]",
		Short: "settled values of a field across a coefficient range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := analysis.BifurcationDiagram(cmd.Context(), analysis.Bifurcation{
				Input:     args[0],
				Profile:   cfg.FieldProfile(),
				Base:      coefficients(),
				ParamName: param,
				ParamMin:  lo,
				ParamMax:  hi,
				Points:    points,
				Field:     fld,
				Tail:      tail,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s over %s in [%g, %g]\n", fld, param, lo, hi)
			fmt.Print(analysis.BifurcationToASCII(data, 60, 16))
			return nil
		},
	}
	cmd.Flags().StringVar(&param, "coef", "k_coupling", "coefficient to vary")
	cmd.Flags().Float64Var(&lo, "min", 0.05, "lower bound")
	cmd.Flags().Float64Var(&hi, "max", 0.5, "upper bound")
	cmd.Flags().IntVar(&points, "points", 30, "number of values")
	cmd.Flags().StringVar(&fld, "field", "coherence", "trace field to record")
	cmd.Flags().IntVar(&tail, "tail", 100, "final states treated as settled")
	return cmd
}

func optimizeCmd() *cobra.Command {
	var (
		grid      []string
		objective string
	)
	cmd := &cobra.Command{
		Use:   "optimize [input]",
		Short: "grid-search coefficients for the fastest compile or lowest metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(grid) == 0 {
				return fmt.Errorf("at least one --grid name=min:max:n is required")
			}
			names := make([]string, 0, len(grid))
			ranges := make([][]float64, 0, len(grid))
			for _, g := range grid {
				name, rng, ok := strings.Cut(g, "=")
				if !ok {
					return fmt.Errorf("grid %q: expected name=min:max:n", g)
				}
				r, err := optim.ParseRange(rng)
				if err != nil {
					return err
				}
				names = append(names, strings.TrimSpace(name))
				ranges = append(ranges, r)
			}

			search, err := optim.NewGridSearch(names, ranges)
			if err != nil {
				return err
			}
			obj := optim.StepsObjective
			if objective != "steps" {
				obj = optim.MetricObjective(objective)
			}

			base := experiment.Config{Input: args[0], Profile: cfg.FieldProfile(), Field: coefficients()}
			best, err := search.Search(cmd.Context(), optim.Builder(base, experiment.NewRegistry()), obj)
			if err != nil {
				return err
			}
			if best.Params == nil || math.IsInf(best.Score, 1) {
				return fmt.Errorf("no grid point produced a score (%d evaluated, %d failed)", best.Evaluated, best.Failed)
			}

			keys := make([]string, 0, len(best.Params))
			for k := range best.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COEFFICIENT\tBEST")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%g\n", k, best.Params[k])
			}
			w.Flush()
			fmt.Printf("\n%s: %g (%d evaluated, %d failed)\n", objective, best.Score, best.Evaluated, best.Failed)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&grid, "grid", nil, "coefficient grid name=min:max:n (repeatable)")
	cmd.Flags().StringVar(&objective, "objective", "steps", "steps or a metric name")
	return cmd
}
