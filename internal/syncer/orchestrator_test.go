package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handyman-tn/leadsync/internal/model"
	"github.com/handyman-tn/leadsync/internal/resilience"
	"github.com/handyman-tn/leadsync/internal/store"
)

var testScope = model.Scope{City: "Nashville", Service: "handyman"}

// fakeStore is an in-memory store with scriptable failures.
type fakeStore struct {
	data  map[string][]model.Business
	calls []string

	listErr   error
	deleteErr error
	upsertErr error
	upsertOut store.Outcome

	// insertFailures maps the 1-based Insert call number to an error.
	insertFailures map[int]error
	insertCalls    int
}

func newFakeStore(existing []model.Business) *fakeStore {
	return &fakeStore{
		data:           map[string][]model.Business{testScope.Key(): existing},
		insertFailures: map[int]error{},
		upsertOut:      store.Success,
	}
}

func (f *fakeStore) List(_ context.Context, scope model.Scope) ([]model.Business, error) {
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.Business(nil), f.data[scope.Key()]...), nil
}

func (f *fakeStore) Delete(_ context.Context, scope model.Scope) error {
	f.calls = append(f.calls, "delete")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.data, scope.Key())
	return nil
}

func (f *fakeStore) Insert(_ context.Context, scope model.Scope, records []model.Business) error {
	f.insertCalls++
	f.calls = append(f.calls, "insert")
	if err := f.insertFailures[f.insertCalls]; err != nil {
		return err
	}
	f.data[scope.Key()] = append(f.data[scope.Key()], records...)
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, scope model.Scope, records []model.Business, _ []string) (store.Outcome, error) {
	f.calls = append(f.calls, "upsert")
	if f.upsertErr != nil {
		return f.upsertOut, f.upsertErr
	}
	f.data[scope.Key()] = records
	return store.Success, nil
}

func (f *fakeStore) Migrate(context.Context) error { return nil }
func (f *fakeStore) Close()                        {}

type fakeArchiver struct {
	runID   string
	scope   model.Scope
	records []model.Business
	err     error
	called  bool
}

func (a *fakeArchiver) Save(_ context.Context, runID string, scope model.Scope, records []model.Business) error {
	a.called = true
	a.runID, a.scope, a.records = runID, scope, records
	return a.err
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1.0,
		JitterFraction: 0,
	}
}

func records(names ...string) []model.Business {
	out := make([]model.Business, 0, len(names))
	for _, n := range names {
		out = append(out, model.Business{
			Name: n, City: testScope.City, Service: testScope.Service, State: "TN",
		})
	}
	return out
}

func TestReplace_HappyPath(t *testing.T) {
	st := newFakeStore(records("Old A", "Old B"))
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Replace(context.Background(), "run-1", testScope, records("New A", "New B", "New C"))
	require.NoError(t, err)

	assert.Equal(t, []string{"list", "delete", "insert"}, st.calls)
	assert.Equal(t, records("New A", "New B", "New C"), st.data[testScope.Key()])
}

func TestReplace_Chunking(t *testing.T) {
	st := newFakeStore(nil)
	o := New(st, WithRetryConfig(fastRetry()), WithChunkSize(2))

	err := o.Replace(context.Background(), "run-1", testScope, records("A", "B", "C", "D", "E"))
	require.NoError(t, err)

	assert.Equal(t, 3, st.insertCalls)
	assert.Len(t, st.data[testScope.Key()], 5)
}

func TestReplace_UploadFailureRestoresSnapshot(t *testing.T) {
	st := newFakeStore(records("A", "B"))
	st.insertFailures[2] = errors.New("write refused")
	o := New(st, WithRetryConfig(fastRetry()), WithChunkSize(1))

	uploadErr := o.Replace(context.Background(), "run-1", testScope, records("A", "C"))
	require.Error(t, uploadErr)
	assert.Contains(t, uploadErr.Error(), "previous state restored")

	// First chunk landed, second failed, restore wiped the partial upload
	// and re-inserted the snapshot.
	assert.Equal(t, records("A", "B"), st.data[testScope.Key()])
	assert.Equal(t, []string{"list", "delete", "insert", "insert", "delete", "insert", "insert"}, st.calls)
}

func TestReplace_UnrestorableEscalates(t *testing.T) {
	st := newFakeStore(records("A", "B"))
	uploadFail := errors.New("write refused")
	restoreFail := errors.New("connection lost")
	st.insertFailures[1] = uploadFail
	st.insertFailures[2] = restoreFail
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Replace(context.Background(), "run-1", testScope, records("A", "C"))
	require.Error(t, err)

	var unrest *UnrestorableError
	require.ErrorAs(t, err, &unrest)
	assert.Equal(t, testScope, unrest.Scope)
	assert.Equal(t, uploadFail, unrest.UploadErr)
	assert.Equal(t, restoreFail, unrest.RestoreErr)
	assert.ErrorIs(t, err, uploadFail)
	assert.Contains(t, err.Error(), "manual intervention")
}

func TestReplace_SnapshotFailureAbortsCleanly(t *testing.T) {
	st := newFakeStore(records("A"))
	st.listErr = errors.New("permission denied")
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Replace(context.Background(), "run-1", testScope, records("B"))
	require.Error(t, err)

	// No destructive call was made.
	assert.Equal(t, []string{"list"}, st.calls)
	assert.Equal(t, records("A"), st.data[testScope.Key()])
}

func TestReplace_DeleteFailureLeavesStateIntact(t *testing.T) {
	st := newFakeStore(records("A"))
	st.deleteErr = errors.New("permission denied")
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Replace(context.Background(), "run-1", testScope, records("B"))
	require.Error(t, err)
	assert.Equal(t, records("A"), st.data[testScope.Key()])
	assert.Equal(t, 0, st.insertCalls)
}

func TestReplace_CanceledBeforeDelete(t *testing.T) {
	st := newFakeStore(records("A"))
	o := New(st, WithRetryConfig(fastRetry()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := o.Replace(ctx, "run-1", testScope, records("B"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, st.calls, "delete")
	assert.Equal(t, records("A"), st.data[testScope.Key()])
}

func TestReplace_ArchiveReceivesSnapshot(t *testing.T) {
	st := newFakeStore(records("Old A"))
	arch := &fakeArchiver{}
	o := New(st, WithRetryConfig(fastRetry()), WithArchive(arch))

	err := o.Replace(context.Background(), "run-9", testScope, records("New A"))
	require.NoError(t, err)

	assert.True(t, arch.called)
	assert.Equal(t, "run-9", arch.runID)
	assert.Equal(t, testScope, arch.scope)
	assert.Equal(t, records("Old A"), arch.records)
}

func TestReplace_ArchiveFailureNotFatal(t *testing.T) {
	st := newFakeStore(records("Old A"))
	arch := &fakeArchiver{err: errors.New("disk full")}
	o := New(st, WithRetryConfig(fastRetry()), WithArchive(arch))

	err := o.Replace(context.Background(), "run-1", testScope, records("New A"))
	require.NoError(t, err)
	assert.Equal(t, records("New A"), st.data[testScope.Key()])
}

func TestSync_UpsertFastPath(t *testing.T) {
	st := newFakeStore(records("Old A"))
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Sync(context.Background(), "run-1", testScope, records("New A"))
	require.NoError(t, err)
	assert.Equal(t, []string{"upsert"}, st.calls)
	assert.Equal(t, records("New A"), st.data[testScope.Key()])
}

func TestSync_ConflictFallsBackToReplace(t *testing.T) {
	st := newFakeStore(records("Old A"))
	st.upsertErr = &pgconn.PgError{Code: "21000"}
	st.upsertOut = store.Conflict
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Sync(context.Background(), "run-1", testScope, records("New A"))
	require.NoError(t, err)
	assert.Equal(t, []string{"upsert", "list", "delete", "insert"}, st.calls)
	assert.Equal(t, records("New A"), st.data[testScope.Key()])
}

func TestSync_PermanentFailureNoFallback(t *testing.T) {
	st := newFakeStore(nil)
	st.upsertErr = &pgconn.PgError{Code: "42501"} // insufficient_privilege
	st.upsertOut = store.PermanentFailure
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Sync(context.Background(), "run-1", testScope, records("A"))
	require.Error(t, err)
	assert.Equal(t, []string{"upsert"}, st.calls)
}

func TestSync_RetriesTransient(t *testing.T) {
	st := newFakeStore(nil)
	st.upsertErr = &pgconn.PgError{Code: "40001"} // serialization_failure
	st.upsertOut = store.TransientFailure
	o := New(st, WithRetryConfig(fastRetry()))

	err := o.Sync(context.Background(), "run-1", testScope, records("A"))
	require.Error(t, err)
	// Both attempts of the fast retry config were spent on the upsert.
	assert.Equal(t, []string{"upsert", "upsert"}, st.calls)
}

func TestChunk(t *testing.T) {
	recs := records("A", "B", "C", "D", "E")

	parts := chunk(recs, 2)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 2)
	assert.Len(t, parts[1], 2)
	assert.Len(t, parts[2], 1)

	assert.Len(t, chunk(recs, 10), 1)
	assert.Nil(t, chunk(nil, 2))

	// Non-positive size falls back to the default.
	assert.Len(t, chunk(recs, 0), 1)
}
