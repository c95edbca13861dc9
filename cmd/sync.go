package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/handyman-tn/leadsync/internal/dedup"
	"github.com/handyman-tn/leadsync/internal/export"
	"github.com/handyman-tn/leadsync/internal/snapshot"
	"github.com/handyman-tn/leadsync/internal/store"
	"github.com/handyman-tn/leadsync/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize one scope's normalized records into the store",
	Long: `Synchronize one scope's normalized artifact into the remote businesses table.

This is a destructive operation: it requires an explicit --city and --service
(there is no apply-to-all mode) and store.role=service. By default the fast
upsert path is used, falling back to the full snapshot/delete/upload/restore
sequence on a uniqueness conflict the store cannot merge. --replace forces
the full sequence.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		scope, err := scopeFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := cfg.ValidateDestructive(); err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "sync"), zap.String("scope", scope.String()))

		records, err := export.ReadNormalized(cfg.Export.Dir, scope)
		if err != nil {
			return eris.Wrap(err, "sync: load normalized artifact (run scrape first)")
		}
		// Final safety net before persistence.
		records = dedup.BatchWide(records)

		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return err
		}
		defer st.Close()

		if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		opts := []syncer.Option{syncer.WithChunkSize(cfg.Store.ChunkSize)}
		if cfg.Snapshot.Path != "" {
			archive, archErr := snapshot.Open(cfg.Snapshot.Path)
			if archErr != nil {
				log.Warn("snapshot archive unavailable", zap.Error(archErr))
			} else {
				defer archive.Close()
				opts = append(opts, syncer.WithArchive(archive))
			}
		}
		orch := syncer.New(st, opts...)

		runID := uuid.New().String()
		log.Info("starting sync", zap.String("run_id", runID), zap.Int("records", len(records)))

		replace, _ := cmd.Flags().GetBool("replace")
		if replace {
			err = orch.Replace(ctx, runID, scope, records)
		} else {
			err = orch.Sync(ctx, runID, scope, records)
		}

		var unrestorable *syncer.UnrestorableError
		if errors.As(err, &unrestorable) {
			log.Error("scope left unrestored, manual intervention required",
				zap.Error(unrestorable.UploadErr),
				zap.NamedError("restore_error", unrestorable.RestoreErr),
			)
			return err
		}
		if err != nil {
			return err
		}

		log.Info("sync complete")
		return nil
	},
}

func init() {
	syncCmd.Flags().String("city", "", "scope city (required)")
	syncCmd.Flags().String("service", "", "scope service (required)")
	syncCmd.Flags().Bool("replace", false, "force the full delete/upload/restore sequence")
	syncCmd.Flags().Bool("migrate", false, "run store migration before syncing")
	rootCmd.AddCommand(syncCmd)
}
