package dedup

import (
	"github.com/handyman-tn/leadsync/internal/fingerprint"
	"github.com/handyman-tn/leadsync/internal/model"
)

type nameSiteKey struct {
	name string
	site string
}

// RunContext holds the cross-target seen set for one top-level run. It is
// owned by the runner and threaded by pointer through the dedup passes;
// access is single-flow only, there is no internal locking.
type RunContext struct {
	seen map[nameSiteKey]struct{}
}

// NewRunContext creates an empty run context.
func NewRunContext() *RunContext {
	return &RunContext{seen: make(map[nameSiteKey]struct{})}
}

// ResetServiceGroup clears the seen set. Called at the start of each service
// group so one service's run never suppresses another's.
func (rc *RunContext) ResetServiceGroup() {
	rc.seen = make(map[nameSiteKey]struct{})
}

// Commit adds every record's (name, website) key to the seen set. Called by
// the runner after a scope finishes processing, never mid-scope, so
// intra-scope collisions stay the local pass's responsibility.
func (rc *RunContext) Commit(records []model.Business) {
	for _, b := range records {
		rc.seen[keyOf(b)] = struct{}{}
	}
}

// Seen reports whether an equivalent record was committed earlier in the run.
func (rc *RunContext) Seen(b model.Business) bool {
	_, ok := rc.seen[keyOf(b)]
	return ok
}

// Len returns the number of committed keys, for run statistics.
func (rc *RunContext) Len() int {
	return len(rc.seen)
}

func keyOf(b model.Business) nameSiteKey {
	return nameSiteKey{
		name: fingerprint.NormalizeName(b.Name),
		site: fingerprint.NormalizeWebsite(b.Website),
	}
}
