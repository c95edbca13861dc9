// Package store is the client for the remote businesses table. All
// destructive operations are scoped to one (city, service) pair, and every
// call reports a typed outcome derived from driver error codes, never from
// response text.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/handyman-tn/leadsync/internal/model"
	"github.com/handyman-tn/leadsync/internal/resilience"
)

// Outcome classifies the result of a store mutation.
type Outcome int

const (
	// Success means the operation completed.
	Success Outcome = iota + 1
	// Conflict means the store refused to merge a uniqueness collision it
	// cannot resolve automatically; callers fall back to delete+insert.
	Conflict
	// TransientFailure is safe to retry.
	TransientFailure
	// PermanentFailure is not retryable.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Conflict:
		return "conflict"
	case TransientFailure:
		return "transient_failure"
	case PermanentFailure:
		return "permanent_failure"
	default:
		return "unknown"
	}
}

// Store is the persistence contract consumed by the sync orchestrator.
type Store interface {
	// List returns all persisted records for a scope, in stable id order.
	List(ctx context.Context, scope model.Scope) ([]model.Business, error)
	// Delete removes every persisted record for a scope.
	Delete(ctx context.Context, scope model.Scope) error
	// Insert writes one chunk of records for a scope.
	Insert(ctx context.Context, scope model.Scope, records []model.Business) error
	// Upsert merges records keyed on conflictKeys and reports the outcome.
	Upsert(ctx context.Context, scope model.Scope, records []model.Business, conflictKeys []string) (Outcome, error)
	// Migrate brings the businesses table up to date.
	Migrate(ctx context.Context) error
	Close()
}

// Classify maps an error to an Outcome using pgconn error codes first and
// network-level transience second.
func Classify(err error) Outcome {
	if err == nil {
		return Success
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505", // unique_violation
			pgErr.Code == "21000": // ON CONFLICT affected a row twice
			return Conflict
		case pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01", // deadlock_detected
			pgErr.Code == "57014": // query_canceled
			return TransientFailure
		}
		// Connection exceptions (08xxx) and resource exhaustion (53xxx).
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53") {
			return TransientFailure
		}
		return PermanentFailure
	}

	if resilience.IsTransient(err) {
		return TransientFailure
	}
	return PermanentFailure
}
