// Package runner drives the per-target pipeline: it enumerates (city,
// service) scopes in configuration order, wraps each target in a watchdog
// budget, and feeds extracted candidates through dedup and promotion.
// Targets run strictly one at a time; the run context's seen set is shared,
// unguarded state that is only safe under sequential access.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/handyman-tn/leadsync/internal/dedup"
	"github.com/handyman-tn/leadsync/internal/export"
	"github.com/handyman-tn/leadsync/internal/extract"
	"github.com/handyman-tn/leadsync/internal/model"
	"github.com/handyman-tn/leadsync/internal/monitoring"
	"github.com/handyman-tn/leadsync/internal/promote"
)

// DefaultBudget is the per-target wall-clock budget.
const DefaultBudget = 180 * time.Second

// Location is one configured location: a primary city plus optional
// secondary target cities that expand into their own scopes.
type Location struct {
	City      string   `yaml:"city" mapstructure:"city"`
	County    string   `yaml:"county" mapstructure:"county"`
	Secondary []string `yaml:"secondary" mapstructure:"secondary"`
}

// Options configures the engine.
type Options struct {
	State            string
	Budget           time.Duration // per-target watchdog budget
	Delay            time.Duration // minimum delay between targets
	PrivilegedDomain string
}

// ScopeResult holds one scope's outputs: the raw extraction and the
// deduplicated, promotion-ordered record set.
type ScopeResult struct {
	Scope   model.Scope
	Raw     []model.Business
	Records []model.Business
}

// Engine iterates targets and runs the per-target pipeline.
type Engine struct {
	extractor extract.Extractor
	policy    *promote.Policy
	exporter  *export.Writer        // optional
	stats     *monitoring.Collector // optional
	limiter   *rate.Limiter
	opts      Options
}

// NewEngine creates an engine. exporter and stats may be nil.
func NewEngine(ex extract.Extractor, policy *promote.Policy, exporter *export.Writer, stats *monitoring.Collector, opts Options) *Engine {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Delay), 1)
	}
	return &Engine{
		extractor: ex,
		policy:    policy,
		exporter:  exporter,
		stats:     stats,
		limiter:   limiter,
		opts:      opts,
	}
}

// ExpandScopes enumerates the deterministic target order: services outer,
// locations inner, each location contributing its primary city and then its
// secondary targets in configuration order.
func ExpandScopes(services []string, locations []Location) []model.Scope {
	var scopes []model.Scope
	for _, service := range services {
		for _, loc := range locations {
			scopes = append(scopes, model.Scope{City: loc.City, Service: service})
			for _, city := range loc.Secondary {
				scopes = append(scopes, model.Scope{City: city, Service: service})
			}
		}
	}
	return scopes
}

// Run processes every target sequentially and returns the collected scope
// results. Per-target failures (timeout, no results, extraction errors) are
// logged and never propagate; only run-level cancellation aborts the loop.
func (e *Engine) Run(ctx context.Context, services []string, locations []Location, rc *dedup.RunContext) ([]ScopeResult, error) {
	log := zap.L().With(zap.String("component", "runner"))

	var results []ScopeResult
	for _, service := range services {
		// One service's run must not suppress another's records.
		rc.ResetServiceGroup()

		for _, scope := range ExpandScopes([]string{service}, locations) {
			if err := e.limiter.Wait(ctx); err != nil {
				return results, err
			}

			tLog := log.With(zap.String("scope", scope.String()))
			start := time.Now()

			raw, final, err := e.processTarget(ctx, scope, rc)
			elapsed := time.Since(start)

			if ctx.Err() != nil {
				return results, ctx.Err()
			}

			switch {
			case errors.Is(err, context.DeadlineExceeded):
				tLog.Warn("target exceeded budget, yielding empty result",
					zap.Duration("budget", e.opts.Budget),
					zap.Duration("elapsed", elapsed),
				)
				if e.stats != nil {
					e.stats.TargetTimeout()
				}
				continue
			case errors.Is(err, extract.ErrNoResults):
				tLog.Info("no results for target", zap.Duration("elapsed", elapsed))
				if e.stats != nil {
					e.stats.TargetNoResults()
				}
				continue
			case err != nil:
				tLog.Error("target failed, continuing", zap.Error(err), zap.Duration("elapsed", elapsed))
				if e.stats != nil {
					e.stats.TargetNoResults()
				}
				continue
			}

			// The scope's survivors become visible to later targets only
			// after the scope finishes.
			rc.Commit(final)

			if e.stats != nil {
				e.stats.TargetProcessed(len(raw), len(final))
			}

			tLog.Info("target complete",
				zap.Int("raw", len(raw)),
				zap.Int("kept", len(final)),
				zap.Duration("elapsed", elapsed),
			)
			results = append(results, ScopeResult{Scope: scope, Raw: raw, Records: final})
		}
	}

	results = batchDedup(results)

	if e.exporter != nil {
		for _, r := range results {
			if expErr := e.exporter.WriteScope(ctx, r.Scope, r.Raw, r.Records); expErr != nil {
				log.Warn("artifact export failed",
					zap.String("scope", r.Scope.String()),
					zap.Error(expErr),
				)
			}
		}
	}

	return results, nil
}

// batchDedup applies the batch-wide pass across every collected scope and
// regroups the survivors back into their scopes, preserving order.
func batchDedup(results []ScopeResult) []ScopeResult {
	var flat []model.Business
	for _, r := range results {
		flat = append(flat, r.Records...)
	}

	byScope := make(map[string][]model.Business, len(results))
	for _, b := range dedup.BatchWide(flat) {
		key := b.Scope().Key()
		byScope[key] = append(byScope[key], b)
	}

	out := make([]ScopeResult, len(results))
	for i, r := range results {
		out[i] = ScopeResult{Scope: r.Scope, Raw: r.Raw, Records: byScope[r.Scope.Key()]}
	}
	return out
}

// processTarget runs the watchdog-wrapped sequence for a single scope:
// search (with one fallback query) → detail fetches → local dedup →
// promotion → run-global dedup. A blown budget converts the whole target to
// context.DeadlineExceeded regardless of how far it got.
func (e *Engine) processTarget(ctx context.Context, scope model.Scope, rc *dedup.RunContext) (raw, final []model.Business, err error) {
	tctx, cancel := context.WithTimeout(ctx, e.opts.Budget)
	defer cancel()

	log := zap.L().With(zap.String("component", "runner"), zap.String("scope", scope.String()))

	locators, err := e.search(tctx, scope)
	if err != nil {
		if tctx.Err() == context.DeadlineExceeded {
			return nil, nil, context.DeadlineExceeded
		}
		return nil, nil, err
	}

	for _, locator := range locators {
		if tctx.Err() != nil {
			break
		}

		dr := e.extractor.FetchDetail(tctx, locator)
		if dr.Skipped() {
			log.Debug("detail skipped",
				zap.String("locator", locator),
				zap.String("reason", string(dr.Skip)),
				zap.Error(dr.Err),
			)
			if e.stats != nil {
				e.stats.DetailSkipped()
			}
			continue
		}

		b := dr.Business
		b.City = scope.City
		b.Service = scope.Service
		b.State = e.opts.State
		raw = append(raw, b)
	}

	// Timeout yields an empty result, never a partial scope.
	if tctx.Err() == context.DeadlineExceeded {
		return nil, nil, context.DeadlineExceeded
	}

	local := dedup.Local(raw, e.opts.PrivilegedDomain)
	promoted := e.policy.Apply(local, scope, e.opts.State)
	final = dedup.RunGlobal(promoted, rc, e.opts.PrivilegedDomain)

	return raw, final, nil
}

// search tries the primary query and one fallback formulation before giving
// up on a target.
func (e *Engine) search(ctx context.Context, scope model.Scope) ([]string, error) {
	primary := fmt.Sprintf("%s in %s, %s", scope.Service, scope.City, e.opts.State)
	res, err := e.extractor.Search(ctx, primary)
	if err == nil {
		return res.Locators, nil
	}
	if !errors.Is(err, extract.ErrNoResults) {
		return nil, err
	}

	fallback := fmt.Sprintf("%s near %s %s", scope.Service, scope.City, e.opts.State)
	res, err = e.extractor.Search(ctx, fallback)
	if err != nil {
		return nil, err
	}
	return res.Locators, nil
}
