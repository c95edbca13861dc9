package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/handyman-tn/leadsync/internal/runner"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Print the expanded target list",
	Long:  "Print every (city, service) scope the scrape command would process, in processing order. A dry run of the target iterator.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		locCfg, err := cfg.LoadLocations()
		if err != nil {
			return err
		}

		scopes := runner.ExpandScopes(cfg.Services, runnerLocations(locCfg))
		if len(scopes) == 0 {
			return eris.New("targets: no targets configured")
		}

		for i, scope := range scopes {
			cmd.Printf("%3d  %s\n", i+1, scope)
		}
		cmd.Printf("\n%d targets\n", len(scopes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}
