package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/handyman-tn/leadsync/internal/store"
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Fast store connectivity and config preflight",
	Long: `Check that the pipeline can reach the remote store before a run:
credential presence and role, connectivity, and whether the businesses table
carries the generated fingerprint column. No secrets are printed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "smoke"))

		log.Info("auth config",
			zap.Bool("database_url_present", cfg.Store.DatabaseURL != ""),
			zap.String("role", cfg.Store.Role),
		)
		if err := cfg.ValidateStore(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return eris.Wrap(err, "smoke: connect")
		}
		defer st.Close()

		g, gctx := errgroup.WithContext(ctx)
		var hasFingerprint bool

		g.Go(func() error {
			return st.Ping(gctx)
		})
		g.Go(func() error {
			var probeErr error
			hasFingerprint, probeErr = st.HasFingerprintColumn(gctx)
			return probeErr
		})
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "smoke: probe")
		}

		log.Info("store reachable", zap.Bool("fingerprint_column", hasFingerprint))
		if !hasFingerprint {
			log.Warn("fingerprint column missing; run sync --migrate to create the schema")
		}

		log.Info("smoke ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(smokeCmd)
}
