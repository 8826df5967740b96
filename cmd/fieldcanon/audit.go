package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/automation"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/ledger"
	"github.com/san-kum/fieldcanon/internal/logging"
	"github.com/san-kum/fieldcanon/internal/replay"
	"github.com/san-kum/fieldcanon/internal/storage"
	"github.com/san-kum/fieldcanon/internal/viz"
)

func actCmd() *cobra.Command {
	var noLedger bool
	cmd := &cobra.Command{
		Use:   "act [script.yaml]",
		Short: "run a scripted governed session and record its audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := automation.LoadScript(args[0])
			if err != nil {
				return err
			}

			actions := logging.OpenActionLog(cfg.DataDir, cfg.LogLevel)
			defer actions.Close()

			session, runErr := automation.RunScript(cmd.Context(), script, automation.Options{
				Logger:    logger,
				ActionLog: actions,
				Trail:     audit.New(audit.WithLogger(logger)),
			})
			if session == nil {
				return runErr
			}

			trail := session.Controller.Trail()
			fmt.Println(viz.AuditTable(viz.Themes[0], trail.Records()))
			exp := trail.Export()

			runID := ""
			if session.Compile != nil {
				st, err := openStore()
				if err != nil {
					return err
				}
				if runID, err = st.Save(storage.Run{
					Input:      script.Input,
					Identifier: session.Controller.Identifier(),
					Profile:    string(field.ParseProfile(script.Profile)),
					Config:     session.Controller.Config(),
					Result:     session.Compile,
					Audit:      &exp,
				}); err != nil {
					return err
				}
				fmt.Printf("run id: %s\n", runID)
			}

			if !noLedger {
				l, err := openLedger()
				if err != nil {
					return err
				}
				defer l.Close()
				if err := l.SaveSession(exp, runID, session.Controller.Config()); err != nil {
					return err
				}
			}
			fmt.Printf("trail id: %s (%d records, sealed %v)\n", exp.ID, exp.Count, exp.Sealed)
			return runErr
		},
	}
	cmd.Flags().BoolVar(&noLedger, "no-ledger", false, "do not store the trail in the ledger")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [trail_id | run_id | file]",
		Short: "replay a recorded trail on a fresh engine and compare final states",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := loadExport(args[0])
			if err != nil {
				return err
			}

			fc, err := sessionConfig(args[0])
			if err != nil {
				return err
			}
			v := replay.Verifier{Config: fc, Logger: logger}
			rep, err := v.VerifyExport(cmd.Context(), exp)

			fmt.Printf("trail: %s\n", rep.TrailID)
			fmt.Printf("replayed: %d/%d\n", rep.Replayed, rep.Total)
			if rep.FirstDivergence >= 0 {
				fmt.Printf("first divergence: record %d\n", rep.FirstDivergence)
			}
			if len(rep.Diverged) > 0 {
				fmt.Printf("diverged fields: %v\n", rep.Diverged)
			}
			if err != nil {
				return err
			}
			fmt.Println("replay ok")
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "inspect and verify audit trails"}

	verify := &cobra.Command{
		Use:   "verify [trail_id | run_id | file]",
		Short: "check the hash chain and compliance flags of a trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := loadExport(args[0])
			if err != nil {
				return err
			}
			res := audit.Verify(exp.Records)
			if res.Valid {
				fmt.Printf("trail %s: valid (%d records checked)\n", exp.ID, res.EntriesChecked)
				return nil
			}
			fmt.Printf("trail %s: broken at record %d: %s\n", exp.ID, res.BrokenAt, res.Reason)
			return res.Err()
		},
	}

	var out string
	exportCmd := &cobra.Command{
		Use:   "export [trail_id | run_id | file]",
		Short: "write a trail as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := loadExport(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return exp.WriteJSON(os.Stdout)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return exp.WriteJSON(f)
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output path (default stdout)")

	show := &cobra.Command{
		Use:   "show [trail_id | run_id | file]",
		Short: "print the records and statistics of a trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := loadExport(args[0])
			if err != nil {
				return err
			}
			trail, err := audit.FromExport(exp)
			if err != nil {
				return err
			}
			fmt.Println(viz.AuditTable(viz.Themes[0], trail.Records()))

			stats := trail.Stats()
			fmt.Printf("total: %d  sealed: %v\n", stats.Total, stats.Sealed)
			for _, a := range stats.Actions() {
				fmt.Printf("  %-14s %d\n", a, stats.ByAction[a])
			}
			sectors := make([]int, 0, len(stats.BySector))
			for s := range stats.BySector {
				sectors = append(sectors, s)
			}
			sort.Ints(sectors)
			for _, s := range sectors {
				fmt.Printf("  sector %d       %d\n", s, stats.BySector[s])
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "list trails in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger()
			if err != nil {
				return err
			}
			defer l.Close()
			trails, err := l.List()
			if err != nil {
				return err
			}
			if len(trails) == 0 {
				fmt.Println("no trails found")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRAIL\tRUN\tRECORDS\tSEALED\tUPDATED\tHEAD")
			for _, t := range trails {
				fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%s\t%.12s\n",
					t.ID, t.RunID, t.Count, t.Sealed, t.UpdatedAt.Format("2006-01-02 15:04:05"), t.HeadHash)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(verify, exportCmd, show, list)
	return cmd
}

// sessionConfig returns the coefficients ref was recorded under: from the
// run directory, then from the ledger, falling back to the command line.
func sessionConfig(ref string) (dynamo.Config, error) {
	if meta, err := storage.New(cfg.DataDir).Load(ref); err == nil {
		return meta.Config, nil
	}
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		return coefficients(), nil
	}

	l, err := openLedger()
	if err != nil {
		return dynamo.Config{}, err
	}
	defer l.Close()
	fc, ok, err := l.Coefficients(ref)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return dynamo.Config{}, err
	}
	if !ok {
		logger.Warn("no stored coefficients for trail, using command line", "trail", ref)
		return coefficients(), nil
	}
	return fc, nil
}

// loadExport resolves ref as a file path, then a run id, then a ledger
// trail id.
func loadExport(ref string) (audit.Export, error) {
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		f, err := os.Open(ref)
		if err != nil {
			return audit.Export{}, err
		}
		defer f.Close()
		return audit.ReadExport(f)
	}

	st := storage.New(cfg.DataDir)
	if _, err := st.Load(ref); err == nil {
		return st.LoadAudit(ref)
	}

	l, err := openLedger()
	if err != nil {
		return audit.Export{}, err
	}
	defer l.Close()
	exp, err := l.LoadExport(ref)
	if errors.Is(err, ledger.ErrNotFound) {
		return audit.Export{}, fmt.Errorf("%s: not a file, run or trail", ref)
	}
	return exp, err
}
