package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-dedupe/internal/db"
	"github.com/sells-group/listing-dedupe/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS dedupe_runs (
	id                  TEXT PRIMARY KEY,
	owner_id            TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	eligible_properties INTEGER NOT NULL DEFAULT 0,
	pairs_enumerated    INTEGER NOT NULL DEFAULT 0,
	pairs_passed_funnel INTEGER NOT NULL DEFAULT 0,
	oracle_used         BOOLEAN NOT NULL DEFAULT false,
	oracle_calls        INTEGER NOT NULL DEFAULT 0,
	fallback_count      INTEGER NOT NULL DEFAULT 0,
	match_count         INTEGER NOT NULL DEFAULT 0,
	started_at          TIMESTAMPTZ NOT NULL,
	duration_ns         BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dedupe_matches (
	run_id         TEXT NOT NULL REFERENCES dedupe_runs(id) ON DELETE CASCADE,
	pair_key       TEXT NOT NULL,
	rank           INTEGER NOT NULL,
	property_a_id  TEXT NOT NULL,
	property_b_id  TEXT NOT NULL,
	basic_score    DOUBLE PRECISION NOT NULL,
	similarity     DOUBLE PRECISION NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	recommendation TEXT NOT NULL,
	used_fallback  BOOLEAN NOT NULL DEFAULT false,
	explanation    TEXT NOT NULL DEFAULT '',
	reasons        JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, pair_key)
);

CREATE INDEX IF NOT EXISTS idx_dedupe_runs_owner ON dedupe_runs(owner_id);
CREATE INDEX IF NOT EXISTS idx_dedupe_runs_started_at ON dedupe_runs(started_at DESC);
`

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var matchColumns = []string{
	"run_id", "pair_key", "rank", "property_a_id", "property_b_id", "basic_score",
	"similarity", "confidence", "recommendation", "used_fallback", "explanation", "reasons",
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.Run, matches []model.Match) error {
	rows := make([][]any, 0, len(matches))
	for _, m := range matches {
		reasons, err := json.Marshal(nonNil(m.Reasons))
		if err != nil {
			return eris.Wrap(err, "postgres: marshal reasons")
		}
		rows = append(rows, []any{
			run.ID, m.PairKey, m.Rank, m.PropertyAID, m.PropertyBID, m.BasicScore,
			m.Similarity, m.Confidence, m.Recommendation, m.UsedFallback, m.Explanation, string(reasons),
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO dedupe_runs (id, owner_id, status, eligible_properties, pairs_enumerated,
			pairs_passed_funnel, oracle_used, oracle_calls, fallback_count, match_count, started_at, duration_ns)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			eligible_properties = EXCLUDED.eligible_properties,
			pairs_enumerated = EXCLUDED.pairs_enumerated,
			pairs_passed_funnel = EXCLUDED.pairs_passed_funnel,
			oracle_used = EXCLUDED.oracle_used,
			oracle_calls = EXCLUDED.oracle_calls,
			fallback_count = EXCLUDED.fallback_count,
			match_count = EXCLUDED.match_count,
			duration_ns = EXCLUDED.duration_ns`,
		run.ID, run.OwnerID, string(run.Status), run.EligibleProperties, run.PairsEnumerated,
		run.PairsPassedFunnel, run.OracleUsed, run.OracleCalls, run.FallbackCount, run.MatchCount,
		run.StartedAt.UTC(), int64(run.Duration),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert run %s", run.ID)
	}

	if _, err := db.BulkUpsert(ctx, tx, db.UpsertConfig{
		Table:        "dedupe_matches",
		Columns:      matchColumns,
		ConflictKeys: []string{"run_id", "pair_key"},
	}, rows); err != nil {
		return eris.Wrapf(err, "postgres: save matches for run %s", run.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save run")
}

const postgresRunColumns = `id, owner_id, status, eligible_properties, pairs_enumerated, pairs_passed_funnel,
	oracle_used, oracle_calls, fallback_count, match_count, started_at, duration_ns`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+postgresRunColumns+` FROM dedupe_runs WHERE id = $1`, runID)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + postgresRunColumns + ` FROM dedupe_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(` AND owner_id = $%d`, argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListMatches(ctx context.Context, runID string) ([]model.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, rank, pair_key, property_a_id, property_b_id, basic_score, similarity,
			confidence, recommendation, used_fallback, explanation, reasons
		 FROM dedupe_matches WHERE run_id = $1 ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list matches %s", runID)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		var reasons []byte
		if err := rows.Scan(&m.RunID, &m.Rank, &m.PairKey, &m.PropertyAID, &m.PropertyBID, &m.BasicScore,
			&m.Similarity, &m.Confidence, &m.Recommendation, &m.UsedFallback, &m.Explanation, &reasons); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match")
		}
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &m.Reasons); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal reasons")
			}
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list matches iterate")
}
