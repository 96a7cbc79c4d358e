package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/evpolicy/app"
	"github.com/kilianp07/evpolicy/config"
	coremon "github.com/kilianp07/evpolicy/core/monitoring"
	"github.com/kilianp07/evpolicy/infra/logger"
	"github.com/kilianp07/evpolicy/infra/metrics"
	"github.com/kilianp07/evpolicy/infra/monitoring"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "evpolicy",
	Short:         "Agent-based simulation of vehicle technology policies",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withService loads the configuration, starts the metrics endpoint when
// configured and hands a ready Service to fn. The context is cancelled on
// SIGINT or SIGTERM.
func withService(cmd *cobra.Command, adjust func(*config.Config), fn func(context.Context, *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if adjust != nil {
		adjust(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return err
	}
	log := logger.New("main")

	mon, err := monitoring.NewSentryMonitor(cfg.Monitoring)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	defer coremon.Flush(2 * time.Second)

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()

	if addr := cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, logger.New("prometheus")); err != nil {
				log.Errorf("prom server: %v", err)
			}
		}()
	}
	return fn(ctx, svc)
}
