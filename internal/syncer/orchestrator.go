// Package syncer reconciles one scope's final record set against the remote
// store. The replace path is snapshot → delete → chunked upload →
// restore-on-failure: the scope ends either fully replaced or fully restored,
// never a partial mix.
package syncer

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/handyman-tn/leadsync/internal/model"
	"github.com/handyman-tn/leadsync/internal/resilience"
	"github.com/handyman-tn/leadsync/internal/store"
)

// DefaultChunkSize bounds the number of records per upload request.
const DefaultChunkSize = 500

// Archiver persists a pre-delete snapshot to durable storage for forensic
// recovery. Archive failures are logged, never fatal.
type Archiver interface {
	Save(ctx context.Context, runID string, scope model.Scope, records []model.Business) error
}

// UnrestorableError is the one operator-visible fatal condition: upload
// failed after delete and the snapshot could not be re-inserted. The scope's
// remote state needs manual intervention.
type UnrestorableError struct {
	Scope      model.Scope
	UploadErr  error
	RestoreErr error
}

func (e *UnrestorableError) Error() string {
	return fmt.Sprintf("syncer: scope %s left unrestored (upload: %v; restore: %v); manual intervention required",
		e.Scope, e.UploadErr, e.RestoreErr)
}

func (e *UnrestorableError) Unwrap() error {
	return e.UploadErr
}

// Orchestrator drives per-scope synchronization against the store.
type Orchestrator struct {
	store     store.Store
	archive   Archiver
	chunkSize int
	retry     resilience.RetryConfig
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithArchive attaches a durable snapshot archive.
func WithArchive(a Archiver) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithChunkSize overrides the upload chunk size.
func WithChunkSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithRetryConfig overrides the retry policy for read/upsert calls.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(o *Orchestrator) { o.retry = cfg }
}

// New creates an Orchestrator.
func New(st store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     st,
		chunkSize: DefaultChunkSize,
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Sync is the fast path: an upsert-with-merge keyed on the scope uniqueness
// tuple, retried while transient. A Conflict outcome the store cannot
// resolve falls back to the full Replace sequence.
func (o *Orchestrator) Sync(ctx context.Context, runID string, scope model.Scope, records []model.Business) error {
	log := zap.L().With(zap.String("component", "syncer"), zap.String("scope", scope.String()))

	retry := o.retry
	retry.ShouldRetry = func(err error) bool {
		return store.Classify(err) == store.TransientFailure
	}
	retry.OnRetry = resilience.RetryLogger("store", "upsert")

	var outcome store.Outcome
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		var upsertErr error
		outcome, upsertErr = o.store.Upsert(ctx, scope, records, store.DefaultConflictKeys)
		return upsertErr
	})
	if err == nil {
		log.Info("upsert complete", zap.Int("records", len(records)))
		return nil
	}

	if outcome == store.Conflict {
		log.Warn("upsert conflict, falling back to replace", zap.Error(err))
		return o.Replace(ctx, runID, scope, records)
	}
	return eris.Wrapf(err, "syncer: upsert %s", scope)
}

// Replace runs the transactional-style scope replacement. Cancellation is
// honored only before the delete begins; from delete through restore the
// sequence runs on a detached context so it always reaches either upload
// success or restore completion.
func (o *Orchestrator) Replace(ctx context.Context, runID string, scope model.Scope, records []model.Business) error {
	log := zap.L().With(zap.String("component", "syncer"), zap.String("scope", scope.String()))

	// Step 1: snapshot. A read failure aborts with no side effects.
	retry := o.retry
	retry.OnRetry = resilience.RetryLogger("store", "list")
	snapshot, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]model.Business, error) {
		return o.store.List(ctx, scope)
	})
	if err != nil {
		return eris.Wrapf(err, "syncer: snapshot %s", scope)
	}
	log.Info("snapshot taken", zap.Int("records", len(snapshot)))

	if o.archive != nil {
		if archErr := o.archive.Save(ctx, runID, scope, snapshot); archErr != nil {
			log.Warn("snapshot archive failed", zap.Error(archErr))
		}
	}

	// Last cancellation point before the critical section.
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "syncer: canceled before delete %s", scope)
	}

	// From here to restore completion, external cancellation must not
	// interrupt the state machine.
	critical := context.WithoutCancel(ctx)

	// Step 2: delete. Failure leaves the scope exactly as before.
	if err := o.store.Delete(critical, scope); err != nil {
		return eris.Wrapf(err, "syncer: delete %s", scope)
	}

	// Step 3: chunked upload, each chunk checked independently.
	for i, part := range chunk(records, o.chunkSize) {
		if err := o.store.Insert(critical, scope, part); err != nil {
			log.Error("chunk upload failed, restoring snapshot",
				zap.Int("chunk", i),
				zap.Error(err),
			)
			return o.restore(critical, scope, snapshot, err)
		}
	}

	log.Info("scope replaced",
		zap.Int("records", len(records)),
		zap.Int("previous", len(snapshot)),
	)
	return nil
}

// restore clears any partial upload and re-inserts the snapshot. The
// original upload error is surfaced after restoration; a restore failure
// escalates to UnrestorableError.
func (o *Orchestrator) restore(ctx context.Context, scope model.Scope, snapshot []model.Business, uploadErr error) error {
	log := zap.L().With(zap.String("component", "syncer"), zap.String("scope", scope.String()))

	if err := o.store.Delete(ctx, scope); err != nil {
		return &UnrestorableError{Scope: scope, UploadErr: uploadErr, RestoreErr: err}
	}
	for _, part := range chunk(snapshot, o.chunkSize) {
		if err := o.store.Insert(ctx, scope, part); err != nil {
			return &UnrestorableError{Scope: scope, UploadErr: uploadErr, RestoreErr: err}
		}
	}

	log.Info("snapshot restored", zap.Int("records", len(snapshot)))
	return eris.Wrapf(uploadErr, "syncer: upload failed for %s, previous state restored", scope)
}

func chunk(records []model.Business, size int) [][]model.Business {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var parts [][]model.Business
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		parts = append(parts, records[start:end])
	}
	return parts
}
