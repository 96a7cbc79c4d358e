package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evpolicy/app"
	"github.com/kilianp07/evpolicy/config"
	"github.com/kilianp07/evpolicy/core/events"
	"github.com/kilianp07/evpolicy/core/report"
	"github.com/kilianp07/evpolicy/core/simulation"
	"github.com/kilianp07/evpolicy/internal/eventbus"
)

var runFlags struct {
	policy string
	level  float64
	cap    float64
	seed   uint64
	output string
	pace   time.Duration
	quiet  bool
	events bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation and print a line per period",
	RunE:  runSimulation,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.policy, "policy", "p", "", "policy kind: none, tax, pd_cashback or emissions_cap")
	f.Float64VarP(&runFlags.level, "level", "l", 0, "policy level in [0,1]")
	f.Float64Var(&runFlags.cap, "cap", 0, "absolute emissions cap (emissions_cap only)")
	f.Uint64VarP(&runFlags.seed, "seed", "s", 0, "random seed")
	f.StringVarP(&runFlags.output, "output", "o", "", "export the report to a .csv or .json file")
	f.DurationVar(&runFlags.pace, "pace", 0, "pause between periods")
	f.BoolVarP(&runFlags.quiet, "quiet", "q", false, "do not print periods")
	f.BoolVar(&runFlags.events, "events", false, "print bankruptcies, entries, adoptions and innovations")
	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	adjust := func(cfg *config.Config) {
		fl := cmd.Flags()
		if fl.Changed("policy") {
			cfg.Run.Policy = runFlags.policy
		}
		if fl.Changed("level") {
			cfg.Run.Level = runFlags.level
		}
		if fl.Changed("cap") {
			cfg.Run.Cap = runFlags.cap
		}
		if fl.Changed("seed") {
			cfg.Run.Seed = runFlags.seed
		}
		if fl.Changed("output") {
			cfg.Run.Output = runFlags.output
		}
	}
	return withService(cmd, adjust, func(ctx context.Context, svc *app.Service) error {
		out := cmd.OutOrStdout()
		printer := simulation.ObserverFunc(func(ctx context.Context, rec report.Record) error {
			if !runFlags.quiet {
				if _, err := fmt.Fprintln(out, periodLine(rec)); err != nil {
					return err
				}
			}
			if runFlags.pace > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(runFlags.pace):
				}
			}
			return nil
		})
		opts := []simulation.Option{simulation.WithObserver(printer)}
		if runFlags.events {
			bus := eventbus.NewTyped[events.MarketEvent](eventbus.DefaultBuffer)
			done := printEvents(cmd.ErrOrStderr(), bus.Subscribe())
			defer func() {
				bus.Close()
				<-done
			}()
			opts = append(opts, simulation.WithEvents(bus))
		}
		res, err := svc.Run(ctx, opts...)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "run %s (%s, seed %d): %d periods\n", res.ID, res.Policy, res.Seed, len(res.Records))
		return err
	})
}

func printEvents(w io.Writer, ch <-chan events.MarketEvent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			if _, err := fmt.Fprintln(w, e); err != nil {
				return
			}
		}
	}()
	return done
}

func periodLine(rec report.Record) string {
	return fmt.Sprintf("t=%-3d green=%.3f hybrid=%.3f units=%-5d emissions=%.1f index=%.3f spending=%.0f revenue=%.0f firms=%d bankrupt=%d",
		rec.Period, rec.GreenMarketShare, rec.HybridMarketShare, rec.TotalUnits(), rec.Emissions,
		rec.EmissionsIndex, rec.PublicExpenditure, rec.GovernmentRevenue, rec.Firms, rec.Bankruptcies)
}
