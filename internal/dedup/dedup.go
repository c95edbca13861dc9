// Package dedup implements the three deduplication passes of the pipeline:
// per-scope local, cross-scope run-global, and batch-wide right before
// persistence. All passes preserve first-seen order and key off the
// fingerprint package so identity stays consistent end to end.
package dedup

import (
	"github.com/handyman-tn/leadsync/internal/fingerprint"
	"github.com/handyman-tn/leadsync/internal/model"
)

// Local removes duplicates within one scope, keyed on the record fingerprint.
// First occurrence wins. Records whose website matches privilegedDomain are
// never suppressed: the owner's own listing always survives.
func Local(records []model.Business, privilegedDomain string) []model.Business {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.Business, 0, len(records))
	for _, b := range records {
		if fingerprint.MatchesDomain(b.Website, privilegedDomain) {
			out = append(out, b)
			continue
		}
		key := fingerprint.Compute(b)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

// RunGlobal removes records already committed to the run context by earlier
// scopes, keyed on (normalized name, normalized website). Privileged-domain
// records bypass the check so cross-city dedup never hides the owner's site.
// Survivors are NOT committed here; the runner calls rc.Commit once the
// scope finishes.
func RunGlobal(records []model.Business, rc *RunContext, privilegedDomain string) []model.Business {
	out := make([]model.Business, 0, len(records))
	for _, b := range records {
		if fingerprint.MatchesDomain(b.Website, privilegedDomain) {
			out = append(out, b)
			continue
		}
		if rc.Seen(b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// BatchWide is the final safety net before persistence, applied across every
// scope collected in the run. The key includes the scope, so it only catches
// duplicates introduced within a scope by retries or repeated extraction
// attempts; it never collapses records across scopes.
func BatchWide(records []model.Business) []model.Business {
	type scopedKey struct {
		city    string
		service string
		fp      string
	}
	seen := make(map[scopedKey]struct{}, len(records))
	out := make([]model.Business, 0, len(records))
	for _, b := range records {
		key := scopedKey{
			city:    b.City,
			service: fingerprint.NormalizeName(b.Service),
			fp:      fingerprint.Compute(b),
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}
