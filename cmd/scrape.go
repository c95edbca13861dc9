package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/handyman-tn/leadsync/internal/dedup"
	"github.com/handyman-tn/leadsync/internal/export"
	"github.com/handyman-tn/leadsync/internal/extract"
	"github.com/handyman-tn/leadsync/internal/monitoring"
	"github.com/handyman-tn/leadsync/internal/runner"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape listings for all configured targets",
	Long: `Scrape business listings for every configured (city, service) target.

Targets are processed strictly one at a time, in configuration order, with a
per-target time budget and an inter-target delay. Each scope's raw and
normalized artifacts are written under the export directory. This command
never mutates the remote store; use "leadsync sync" for that.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "scrape"))

		services := cfg.Services
		if servicesFlag, _ := cmd.Flags().GetString("services"); servicesFlag != "" {
			services = splitAndTrim(servicesFlag)
		}
		if len(services) == 0 {
			return eris.New("scrape: no services configured")
		}

		locCfg, err := cfg.LoadLocations()
		if err != nil {
			return err
		}
		locations := runnerLocations(locCfg)
		if len(locations) == 0 {
			return eris.New("scrape: no locations configured")
		}

		policy, err := promotionPolicy(cfg)
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		stats := monitoring.NewCollector(runID)
		exporter := export.NewWriter(cfg.Export.Dir)

		ex := extract.NewMaps(extract.MapsOptions{
			Headless:     cfg.Scrape.Headless,
			ExecPath:     cfg.Scrape.BrowserPath,
			UserAgent:    cfg.Scrape.UserAgent,
			ScrollPasses: cfg.Scrape.ScrollPasses,
			MaxRetries:   cfg.Scrape.MaxRetries,
		})
		defer ex.Close()

		engine := runner.NewEngine(ex, policy, exporter, stats, runner.Options{
			State:            cfg.State,
			Budget:           time.Duration(cfg.Scrape.BudgetSecs) * time.Second,
			Delay:            time.Duration(cfg.Scrape.DelaySecs) * time.Second,
			PrivilegedDomain: cfg.Dedup.PrivilegedDomain,
		})

		log.Info("starting scrape",
			zap.String("run_id", runID),
			zap.Strings("services", services),
			zap.Int("locations", len(locations)),
		)

		results, err := engine.Run(ctx, services, locations, dedup.NewRunContext())
		stats.LogSummary()
		if err != nil {
			return eris.Wrap(err, "scrape")
		}

		log.Info("scrape complete", zap.Int("scopes", len(results)))
		return nil
	},
}

func init() {
	scrapeCmd.Flags().String("services", "", "comma-separated service override (e.g., handyman,plumber)")
	rootCmd.AddCommand(scrapeCmd)
}
