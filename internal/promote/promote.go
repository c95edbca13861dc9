// Package promote implements the optional promotion policy: for eligible
// scopes, the configured domain's listing is guaranteed to lead the scope's
// output, injected from a fallback template when extraction never found it.
package promote

import (
	"github.com/handyman-tn/leadsync/internal/fingerprint"
	"github.com/handyman-tn/leadsync/internal/model"
)

// Fallback holds the placeholder record injected when no matching record
// exists in an eligible scope.
type Fallback struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Website string `yaml:"website" mapstructure:"website"`
	Phone   string `yaml:"phone" mapstructure:"phone"`
	Address string `yaml:"address" mapstructure:"address"`
}

// Config configures the promotion policy.
type Config struct {
	Enabled        bool
	Domain         string
	EligibleScopes []model.Scope
	Fallback       Fallback
}

// Policy applies the promotion rules to a scope's extracted candidates.
type Policy struct {
	cfg      Config
	eligible map[string]struct{}
}

// New builds a Policy from config.
func New(cfg Config) *Policy {
	eligible := make(map[string]struct{}, len(cfg.EligibleScopes))
	for _, s := range cfg.EligibleScopes {
		eligible[s.Key()] = struct{}{}
	}
	return &Policy{cfg: cfg, eligible: eligible}
}

// Eligible reports whether the policy applies to the scope.
func (p *Policy) Eligible(scope model.Scope) bool {
	if p == nil || !p.cfg.Enabled {
		return false
	}
	_, ok := p.eligible[scope.Key()]
	return ok
}

// Apply returns records with the promoted record first. For non-eligible
// scopes (or a disabled policy) the input is returned unchanged. If a record
// matching the target domain exists, the first such record moves to index 0
// and the rest keep their relative order; otherwise the fallback record is
// synthesized for the scope and prepended.
func (p *Policy) Apply(records []model.Business, scope model.Scope, state string) []model.Business {
	if !p.Eligible(scope) {
		return records
	}

	for i, b := range records {
		if fingerprint.MatchesDomain(b.Website, p.cfg.Domain) {
			if i == 0 {
				return records
			}
			out := make([]model.Business, 0, len(records))
			out = append(out, b)
			out = append(out, records[:i]...)
			out = append(out, records[i+1:]...)
			return out
		}
	}

	injected := model.Business{
		Name:    p.cfg.Fallback.Name,
		Website: p.cfg.Fallback.Website,
		Phone:   p.cfg.Fallback.Phone,
		Address: p.cfg.Fallback.Address,
		City:    scope.City,
		Service: scope.Service,
		State:   state,
	}
	return append([]model.Business{injected}, records...)
}
