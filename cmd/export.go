package main

import (
	"errors"
	"io/fs"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/handyman-tn/leadsync/internal/export"
	"github.com/handyman-tn/leadsync/internal/runner"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the normalized artifacts into an audit workbook",
	Long: `Render the normalized artifact of every configured target into one XLSX
workbook, a sheet per scope. Scopes without an artifact are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		log := zap.L().With(zap.String("command", "export"))

		locCfg, err := cfg.LoadLocations()
		if err != nil {
			return err
		}
		scopes := runner.ExpandScopes(cfg.Services, runnerLocations(locCfg))
		if len(scopes) == 0 {
			return eris.New("export: no targets configured")
		}

		var sheets []export.ScopeRecords
		for _, scope := range scopes {
			records, err := export.ReadNormalized(cfg.Export.Dir, scope)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					log.Debug("no artifact for scope, skipping", zap.String("scope", scope.String()))
					continue
				}
				return err
			}
			sheets = append(sheets, export.ScopeRecords{Scope: scope, Records: records})
		}

		if len(sheets) == 0 {
			return eris.New("export: no artifacts found (run scrape first)")
		}

		out, _ := cmd.Flags().GetString("out")
		if err := export.WriteWorkbook(out, sheets); err != nil {
			return err
		}

		log.Info("workbook written", zap.String("path", out), zap.Int("sheets", len(sheets)))
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "leadsync_report.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
