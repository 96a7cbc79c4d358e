package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evpolicy/config"
	"github.com/kilianp07/evpolicy/core/model"
	"github.com/kilianp07/evpolicy/infra/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Stored run related commands",
}

var runsLsFlags struct {
	policy string
	since  time.Duration
}

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List runs saved in the configured store",
	RunE:  runRunsLs,
}

func init() {
	runsLsCmd.Flags().StringVarP(&runsLsFlags.policy, "policy", "p", "", "only runs of this policy kind")
	runsLsCmd.Flags().DurationVar(&runsLsFlags.since, "since", 0, "only runs saved within this duration")
	runsCmd.AddCommand(runsLsCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsLs(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if st == nil {
		return fmt.Errorf("no store configured (store.backend is %q)", cfg.Store.Backend)
	}
	defer func() {
		if err := st.Close(); err != nil {
			if _, ferr := fmt.Fprintf(cmd.ErrOrStderr(), "error while closing store: %v\n", err); ferr != nil {
				fmt.Println("failed to write to stderr:", ferr)
			}
		}
	}()

	var q store.RunQuery
	if runsLsFlags.policy != "" {
		if q.Policy, err = model.ParsePolicyKind(runsLsFlags.policy); err != nil {
			return err
		}
	}
	if runsLsFlags.since > 0 {
		q.Since = time.Now().Add(-runsLsFlags.since)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	runs, err := st.Query(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range runs {
		last, _ := r.Records.Last()
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tseed=%d\t%s\tperiods=%d\tgreen=%.3f\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Seed, r.Policy, len(r.Records), last.GreenMarketShare)
	}
	return nil
}
