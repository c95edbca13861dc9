package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/handyman-tn/leadsync/internal/snapshot"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List archived snapshots for a scope",
	Long:  "List the pre-delete snapshots archived for one scope, newest first. These are the forensic record of what the scope held before each sync.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		scope, err := scopeFromFlags(cmd)
		if err != nil {
			return err
		}
		if cfg.Snapshot.Path == "" {
			return eris.New("snapshots: snapshot.path is not configured")
		}

		archive, err := snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return err
		}
		defer archive.Close()

		entries, err := archive.ListByScope(cmd.Context(), scope)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			cmd.Printf("no snapshots for %s\n", scope)
			return nil
		}

		for _, e := range entries {
			cmd.Printf("%s  run=%s  records=%d  id=%s\n",
				e.TakenAt.Format("2006-01-02 15:04:05"), e.RunID, e.Count, e.ID)
		}
		return nil
	},
}

func init() {
	snapshotsCmd.Flags().String("city", "", "scope city (required)")
	snapshotsCmd.Flags().String("service", "", "scope service (required)")
	rootCmd.AddCommand(snapshotsCmd)
}
