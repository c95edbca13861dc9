package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/handyman-tn/leadsync/internal/config"
	"github.com/handyman-tn/leadsync/internal/model"
	"github.com/handyman-tn/leadsync/internal/promote"
	"github.com/handyman-tn/leadsync/internal/runner"
)

// runnerLocations converts configured locations to the runner's shape.
func runnerLocations(locs []config.LocationConfig) []runner.Location {
	out := make([]runner.Location, len(locs))
	for i, l := range locs {
		out[i] = runner.Location{City: l.City, County: l.County, Secondary: l.Secondary}
	}
	return out
}

// promotionPolicy builds the promote.Policy from config, parsing the
// eligible-scope strings.
func promotionPolicy(cfg *config.Config) (*promote.Policy, error) {
	scopes := make([]model.Scope, 0, len(cfg.Promotion.EligibleScopes))
	for _, s := range cfg.Promotion.EligibleScopes {
		scope, err := model.ParseScope(s)
		if err != nil {
			return nil, eris.Wrap(err, "promotion: eligible scope")
		}
		scopes = append(scopes, scope)
	}
	return promote.New(promote.Config{
		Enabled:        cfg.Promotion.Enabled,
		Domain:         cfg.Promotion.Domain,
		EligibleScopes: scopes,
		Fallback: promote.Fallback{
			Name:    cfg.Promotion.Fallback.Name,
			Website: cfg.Promotion.Fallback.Website,
			Phone:   cfg.Promotion.Fallback.Phone,
			Address: cfg.Promotion.Fallback.Address,
		},
	}), nil
}

// scopeFromFlags reads the mandatory --city and --service flags. Destructive
// commands refuse to run without an explicit single scope.
func scopeFromFlags(cmd *cobra.Command) (model.Scope, error) {
	city, _ := cmd.Flags().GetString("city")
	service, _ := cmd.Flags().GetString("service")
	city, service = strings.TrimSpace(city), strings.TrimSpace(service)
	if city == "" || service == "" {
		return model.Scope{}, eris.New("an explicit scope is required: pass both --city and --service")
	}
	return model.Scope{City: city, Service: service}, nil
}

// splitAndTrim splits a comma-separated flag value into trimmed parts.
func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
