package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/fieldcanon/internal/automation"
	"github.com/san-kum/fieldcanon/internal/config"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/experiment"
	"github.com/san-kum/fieldcanon/internal/export"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/projection"
	"github.com/san-kum/fieldcanon/internal/sim"
	"github.com/san-kum/fieldcanon/internal/storage"
	"github.com/san-kum/fieldcanon/internal/viz"
)

func compileCmd() *cobra.Command {
	var (
		noSave     bool
		exportPath string
	)
	cmd := &cobra.Command{
		Use:   "compile [input]",
		Short: "compile input to a canonical state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, fc := args[0], coefficients()
			exp := experiment.New(experiment.Config{
				Input:      input,
				Profile:    cfg.FieldProfile(),
				Field:      fc,
				TraceEvery: cfg.TraceEvery,
			})
			if err := exp.Setup(experiment.NewRegistry(), logger); err != nil {
				return err
			}

			result, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			id := exp.Engine().Identifier()

			fmt.Print(sim.Render(result.Final, id))
			fmt.Printf("energy: %.3f (%s)\n\n", result.Final.Energy, sim.EnergyLevel(result.Final.Energy))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PHASE\tSTEPS\tCONVERGED")
			for _, ph := range result.Phases {
				fmt.Fprintf(w, "%s\t%d\t%v\n", ph.Name, ph.Steps, ph.Converged)
			}
			w.Flush()

			run := storage.Run{
				Input:      input,
				Identifier: id,
				Profile:    string(cfg.FieldProfile()),
				Config:     fc,
				Result:     result,
			}
			if exportPath != "" {
				if err := storage.ExportJSON(exportPath, storage.NewExportData(run, sim.Render(result.Final, id))); err != nil {
					return err
				}
				fmt.Printf("\nexported to %s\n", exportPath)
			}
			if noSave {
				return nil
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			runID, err := st.Save(run)
			if err != nil {
				return err
			}
			fmt.Printf("\nrun id: %s\n", runID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not write a run directory")
	cmd.Flags().StringVarP(&exportPath, "export", "o", "", "also write a single JSON document")
	return cmd
}

func stepCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "step [input]",
		Short: "reinitialize from input and advance n steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := sim.New(coefficients(), sim.WithLogger(logger))
			if err != nil {
				return err
			}
			if _, err := e.Reinitialize(args[0], cfg.FieldProfile()); err != nil {
				return err
			}
			for i := 0; i < n; i++ {
				if _, err := e.Step(); err != nil {
					return err
				}
			}
			x, err := e.State()
			if err != nil {
				return err
			}
			fmt.Println(viz.RenderState(viz.Themes[0], e.Identifier(), x))
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "steps", "n", 1, "number of steps")
	return cmd
}

func liveCmd() *cobra.Command {
	var perFrame int
	cmd := &cobra.Command{
		Use:   "live [input]",
		Short: "compile with a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := sim.New(coefficients())
			if err != nil {
				return err
			}
			m, err := viz.NewLiveModel(e, args[0], cfg.FieldProfile(), perFrame)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().IntVar(&perFrame, "per-frame", 20, "steps per frame")
	return cmd
}

func sweepCmd() *cobra.Command {
	var (
		param    string
		lo, hi   float64
		points   int
		profiles bool
	)
	cmd := &cobra.Command{
		Use:   "sweep [input]",
		Short: "compile across a coefficient range, or across every profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			if profiles {
				out, err := experiment.SweepProfiles(cmd.Context(), experiment.NewRegistry(),
					experiment.Config{Input: args[0], Field: coefficients()}, logger)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "PROFILE\tSTATUS\tSTEPS\tCOHERENCE\tCURVATURE")
				for _, o := range out {
					fmt.Fprintf(w, "%s\t%s\t%d\t%.5f\t%.3f\n", o.Profile, o.Result.Status, o.Result.StepsTaken,
						o.Result.Final.Coherence, o.Result.Final.Curvature)
				}
				return nil
			}

			results, err := automation.RunSweep(cmd.Context(), &automation.ParameterSweep{
				Input:     args[0],
				Profile:   cfg.FieldProfile(),
				Base:      coefficients(),
				ParamName: param,
				ParamMin:  lo,
				ParamMax:  hi,
				NumSteps:  points,
			}, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\tSTATUS\tSTEPS\tCOHERENCE\tPHASE\n", strings.ToUpper(param))
			for _, r := range results {
				fmt.Fprintf(w, "%.4f\t%s\t%d\t%.5f\t%.4f\n", r.ParamValue, r.Status, r.Steps, r.FinalCoherence, r.FinalPhase)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&param, "coef", "k_coupling", "coefficient to sweep")
	cmd.Flags().Float64Var(&lo, "min", 0.05, "lower bound")
	cmd.Flags().Float64Var(&hi, "max", 0.5, "upper bound")
	cmd.Flags().IntVar(&points, "points", 10, "number of values")
	cmd.Flags().BoolVar(&profiles, "profiles", false, "sweep profiles instead of a coefficient")
	return cmd
}

func monteCarloCmd() *cobra.Command {
	var (
		trials int
		spread float64
		seed   int64
		names  []string
	)
	cmd := &cobra.Command{
		Use:   "montecarlo [input]",
		Short: "compile under randomly perturbed coefficients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
				Input:        args[0],
				Profile:      cfg.FieldProfile(),
				Base:         coefficients(),
				Params:       names,
				Perturbation: spread,
				NumTrials:    trials,
				Seed:         seed,
			}, logger)
			if err != nil {
				return err
			}
			stable, unstable := automation.MonteCarloStats(results)
			fmt.Printf("trials: %d  stable: %d  unstable: %d\n", len(results), stable, unstable)
			return nil
		},
	}
	cmd.Flags().IntVar(&trials, "trials", 50, "number of trials")
	cmd.Flags().Float64Var(&spread, "spread", 0.1, "relative perturbation")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed (0 = time based)")
	cmd.Flags().StringSliceVar(&names, "vary", nil, "coefficients to perturb")
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "runs", Short: "inspect stored runs"}

	list := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(cfg.DataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROFILE\tTIME\tSTATUS\tSTEPS\tCOHERENCE\tTRAIL")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.5f\t%s\n",
					run.ID,
					run.Profile,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Status,
					run.Steps,
					run.Final.Coherence,
					run.TrailID,
				)
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show [run_id]",
		Short: "print the rendered state of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := storage.New(cfg.DataDir).Load(args[0])
			if err != nil {
				return err
			}
			fmt.Print(sim.Render(meta.Final, meta.Identifier))
			fmt.Println(viz.RenderState(viz.Themes[0], meta.Identifier, meta.Final))
			return nil
		},
	}

	var svgOut string
	svg := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "write the run trace as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, err := storage.New(cfg.DataDir).LoadTrace(args[0])
			if err != nil {
				return err
			}
			doc := export.TraceSVG(trace, 800, 300)
			if doc == "" {
				return fmt.Errorf("run %s has fewer than two traced states", args[0])
			}
			if svgOut == "" {
				svgOut = args[0] + ".svg"
			}
			return os.WriteFile(svgOut, []byte(doc), 0o644)
		},
	}
	svg.Flags().StringVarP(&svgOut, "out", "o", "", "output path")

	cmd.AddCommand(list, show, svg)
	return cmd
}

func plotCmd() *cobra.Command {
	var series string
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a traced quantity of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(cfg.DataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			trace, err := st.LoadTrace(args[0])
			if err != nil {
				return err
			}
			if len(trace) == 0 {
				return fmt.Errorf("no data to plot")
			}

			values := make([]float64, len(trace))
			for i, x := range trace {
				v, ok := x.Fields()[series]
				if !ok {
					return fmt.Errorf("unknown series %q", series)
				}
				values[i] = v
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("profile: %s  status: %s  steps: %d\n\n", meta.Profile, meta.Status, meta.Steps)
			fmt.Println(viz.Chart(values, series, 15, 70))
			return nil
		},
	}
	cmd.Flags().StringVar(&series, "series", "coherence", "state field to plot")
	return cmd
}

func projectCmd() *cobra.Command {
	var (
		snapshotPath string
		out          string
		radius       float64
	)
	cmd := &cobra.Command{
		Use:   "project [input]",
		Short: "project the sector ring of a compiled input (or a snapshot file) to SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap projection.Snapshot
			switch {
			case snapshotPath != "":
				f, err := os.Open(snapshotPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if snap, err = projection.ReadSnapshot(f); err != nil {
					return err
				}
			case len(args) == 1:
				e, err := sim.New(coefficients())
				if err != nil {
					return err
				}
				result, err := e.CompileInput(cmd.Context(), args[0], cfg.FieldProfile())
				if err != nil {
					return err
				}
				snap = projection.FromState(result.Final)
			default:
				return fmt.Errorf("need an input or --snapshot")
			}

			doc := export.ProjectionSVG(projection.Project(snap, radius), radius/2)
			if out == "" {
				fmt.Println(doc)
				return nil
			}
			return os.WriteFile(out, []byte(doc), 0o644)
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot JSON to project")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default stdout)")
	cmd.Flags().Float64Var(&radius, "radius", 60, "hex radius")
	return cmd
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "list input profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROFILE\tBASE\tSYNTAX\tSEMANTIC\tCURVATURE")
			for _, p := range field.ListProfiles() {
				pp := p.Params()
				fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\n", p, pp.BaseTension, pp.SyntaxWeight, pp.SemanticFraction, pp.Curvature)
			}
			return w.Flush()
		},
	}
}

func sectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sectors",
		Short: "list the preset sectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SECTOR\tPHASE\tCURVATURE\tCOHERENCE\tENERGY\tTENSION")
			for i, s := range field.Sectors() {
				fmt.Fprintf(w, "%d\t%.4f\t%g\t%g\t%g\t%g\n", i, s.Phase, s.Curvature, s.Coherence, s.Energy, s.Tension)
			}
			return w.Flush()
		},
	}
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list coefficient presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("%s: %s\n", name, dynamo.DefaultConfig().Merge(config.GetPreset(name)))
			}
			return nil
		},
	}
}
