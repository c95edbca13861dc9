package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/handyman-tn/leadsync/internal/db"
	"github.com/handyman-tn/leadsync/internal/model"
)

const businessesTable = "businesses"

// businessColumns is the column order used for COPY and upsert. It must
// match the row layout produced by businessRow.
var businessColumns = []string{
	"name", "address", "phone", "website",
	"city", "service", "state", "source_url",
	"review_count", "avg_rating",
}

// DefaultConflictKeys is the uniqueness tuple backing the scope constraint.
var DefaultConflictKeys = []string{"city", "service", "fingerprint"}

// Postgres implements Store against the remote businesses table.
type Postgres struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a Postgres store with its own connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests and the smoke
// command, which manage the pool themselves.
func NewPostgresFromPool(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// Ping verifies connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// The fingerprint generated column mirrors fingerprint.Compute exactly:
// source_url wins when present; otherwise normalized name + "|" + normalized
// website with the "no-site" sentinel. Keep the two in lockstep.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL,
	service      TEXT NOT NULL,
	state        TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	review_count INTEGER,
	avg_rating   DOUBLE PRECISION,
	fingerprint  TEXT GENERATED ALWAYS AS (
		CASE
			WHEN btrim(source_url) <> '' THEN lower(btrim(source_url))
			ELSE lower(btrim(regexp_replace(name, '\s+', ' ', 'g'))) || '|' ||
				coalesce(
					nullif(rtrim(regexp_replace(lower(btrim(website)), '^(https?://)?(www\.)?', ''), '/'), ''),
					'no-site'
				)
		END
	) STORED,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_businesses_scope_fingerprint
	ON businesses (city, service, fingerprint);
CREATE INDEX IF NOT EXISTS idx_businesses_scope ON businesses (city, service);
`

// Migrate creates the businesses table and its scope uniqueness index.
func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// List returns all persisted records for a scope in insertion order.
func (s *Postgres) List(ctx context.Context, scope model.Scope) ([]model.Business, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, address, phone, website, city, service, state, source_url, review_count, avg_rating
		 FROM businesses WHERE city = $1 AND service = $2 ORDER BY id`,
		scope.City, scope.Service,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", scope)
	}
	defer rows.Close()

	var records []model.Business
	for rows.Next() {
		var b model.Business
		if err := rows.Scan(
			&b.Name, &b.Address, &b.Phone, &b.Website,
			&b.City, &b.Service, &b.State, &b.SourceURL,
			&b.ReviewCount, &b.AvgRating,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate %s", scope)
	}
	return records, nil
}

// Delete removes every persisted record for a scope.
func (s *Postgres) Delete(ctx context.Context, scope model.Scope) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM businesses WHERE city = $1 AND service = $2`,
		scope.City, scope.Service,
	)
	return eris.Wrapf(err, "postgres: delete %s", scope)
}

// Insert writes one chunk of records via COPY.
func (s *Postgres) Insert(ctx context.Context, scope model.Scope, records []model.Business) error {
	rows := make([][]any, 0, len(records))
	for _, b := range records {
		rows = append(rows, businessRow(b))
	}
	if _, err := db.CopyFrom(ctx, s.pool, businessesTable, businessColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert %s", scope)
	}
	return nil
}

// Upsert merges records on the scope uniqueness tuple and classifies the
// result. A Conflict outcome tells the caller to fall back to the
// delete/insert/restore path.
func (s *Postgres) Upsert(ctx context.Context, scope model.Scope, records []model.Business, conflictKeys []string) (Outcome, error) {
	if len(conflictKeys) == 0 {
		conflictKeys = DefaultConflictKeys
	}

	rows := make([][]any, 0, len(records))
	for _, b := range records {
		rows = append(rows, businessRow(b))
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        businessesTable,
		Columns:      businessColumns,
		ConflictKeys: conflictKeys,
	}, rows)
	if err != nil {
		return Classify(err), eris.Wrapf(err, "postgres: upsert %s", scope)
	}
	return Success, nil
}

func businessRow(b model.Business) []any {
	return []any{
		b.Name, b.Address, b.Phone, b.Website,
		b.City, b.Service, b.State, b.SourceURL,
		b.ReviewCount, b.AvgRating,
	}
}

// HasFingerprintColumn probes whether the remote table carries the generated
// fingerprint column, used by the smoke preflight.
func (s *Postgres) HasFingerprintColumn(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'businesses' AND column_name = 'fingerprint'
		)`,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: probe fingerprint column")
	}
	return exists, nil
}
