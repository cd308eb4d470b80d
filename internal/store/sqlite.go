package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dedupe_runs (
	id                  TEXT PRIMARY KEY,
	owner_id            TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL,
	eligible_properties INTEGER NOT NULL DEFAULT 0,
	pairs_enumerated    INTEGER NOT NULL DEFAULT 0,
	pairs_passed_funnel INTEGER NOT NULL DEFAULT 0,
	oracle_used         INTEGER NOT NULL DEFAULT 0,
	oracle_calls        INTEGER NOT NULL DEFAULT 0,
	fallback_count      INTEGER NOT NULL DEFAULT 0,
	match_count         INTEGER NOT NULL DEFAULT 0,
	started_at          DATETIME NOT NULL,
	duration_ns         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS dedupe_matches (
	run_id         TEXT NOT NULL REFERENCES dedupe_runs(id) ON DELETE CASCADE,
	pair_key       TEXT NOT NULL,
	rank           INTEGER NOT NULL,
	property_a_id  TEXT NOT NULL,
	property_b_id  TEXT NOT NULL,
	basic_score    REAL NOT NULL,
	similarity     REAL NOT NULL,
	confidence     REAL NOT NULL,
	recommendation TEXT NOT NULL,
	used_fallback  INTEGER NOT NULL DEFAULT 0,
	explanation    TEXT NOT NULL DEFAULT '',
	reasons        TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (run_id, pair_key)
);

CREATE INDEX IF NOT EXISTS idx_dedupe_runs_owner ON dedupe_runs(owner_id);
CREATE INDEX IF NOT EXISTS idx_dedupe_runs_started_at ON dedupe_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run, matches []model.Match) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dedupe_runs (id, owner_id, status, eligible_properties, pairs_enumerated,
			pairs_passed_funnel, oracle_used, oracle_calls, fallback_count, match_count, started_at, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			eligible_properties = excluded.eligible_properties,
			pairs_enumerated = excluded.pairs_enumerated,
			pairs_passed_funnel = excluded.pairs_passed_funnel,
			oracle_used = excluded.oracle_used,
			oracle_calls = excluded.oracle_calls,
			fallback_count = excluded.fallback_count,
			match_count = excluded.match_count,
			duration_ns = excluded.duration_ns`,
		run.ID, run.OwnerID, string(run.Status), run.EligibleProperties, run.PairsEnumerated,
		run.PairsPassedFunnel, run.OracleUsed, run.OracleCalls, run.FallbackCount, run.MatchCount,
		run.StartedAt.UTC(), int64(run.Duration),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert run %s", run.ID)
	}

	for _, m := range matches {
		reasons, err := json.Marshal(nonNil(m.Reasons))
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal reasons")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO dedupe_matches (run_id, pair_key, rank, property_a_id, property_b_id, basic_score,
				similarity, confidence, recommendation, used_fallback, explanation, reasons)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, pair_key) DO UPDATE SET
				rank = excluded.rank,
				basic_score = excluded.basic_score,
				similarity = excluded.similarity,
				confidence = excluded.confidence,
				recommendation = excluded.recommendation,
				used_fallback = excluded.used_fallback,
				explanation = excluded.explanation,
				reasons = excluded.reasons`,
			run.ID, m.PairKey, m.Rank, m.PropertyAID, m.PropertyBID, m.BasicScore,
			m.Similarity, m.Confidence, m.Recommendation, m.UsedFallback, m.Explanation, string(reasons),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert match %s", m.PairKey)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save run")
}

const sqliteRunColumns = `id, owner_id, status, eligible_properties, pairs_enumerated, pairs_passed_funnel,
	oracle_used, oracle_calls, fallback_count, match_count, started_at, duration_ns`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM dedupe_runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM dedupe_runs WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, filter.limit())
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListMatches(ctx context.Context, runID string) ([]model.Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, rank, pair_key, property_a_id, property_b_id, basic_score, similarity,
			confidence, recommendation, used_fallback, explanation, reasons
		 FROM dedupe_matches WHERE run_id = ? ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list matches %s", runID)
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var m model.Match
		var reasons string
		if err := rows.Scan(&m.RunID, &m.Rank, &m.PairKey, &m.PropertyAID, &m.PropertyBID, &m.BasicScore,
			&m.Similarity, &m.Confidence, &m.Recommendation, &m.UsedFallback, &m.Explanation, &reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match")
		}
		if err := json.Unmarshal([]byte(reasons), &m.Reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal reasons")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list matches iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var startedAt time.Time
	var durationNS int64

	err := row.Scan(&r.ID, &r.OwnerID, &status, &r.EligibleProperties, &r.PairsEnumerated,
		&r.PairsPassedFunnel, &r.OracleUsed, &r.OracleCalls, &r.FallbackCount, &r.MatchCount,
		&startedAt, &durationNS)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	r.StartedAt = startedAt.UTC()
	r.Duration = time.Duration(durationNS)
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
