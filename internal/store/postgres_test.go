package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-dedupe/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runColumnNames = []string{
	"id", "owner_id", "status", "eligible_properties", "pairs_enumerated", "pairs_passed_funnel",
	"oracle_used", "oracle_calls", "fallback_count", "match_count", "started_at", "duration_ns",
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := sampleRun("run-1", "owner-1", started)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO dedupe_runs.*ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("run-1", "owner-1", "complete", 4, 6, 2, true, 2, 1, 2, started, int64(1500*time.Millisecond)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_dedupe_matches"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_dedupe_matches"}, matchColumns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "dedupe_matches" .* ON CONFLICT \("run_id", "pair_key"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run, sampleMatches("run-1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_NoMatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("run-1", "", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO dedupe_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := sampleRun("run-1", "", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO dedupe_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), run, sampleMatches("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert run run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT id, owner_id, status,.*FROM dedupe_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumnNames).
			AddRow("run-1", "owner-1", "complete", 4, 6, 2, true, 2, 1, 2, started, int64(2*time.Second)))

	got, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 2*time.Second, got.Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM dedupe_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`AND owner_id = \$1 AND status = \$2 ORDER BY started_at DESC, id LIMIT \$3 OFFSET \$4`).
		WithArgs("owner-1", "complete", 10, 20).
		WillReturnRows(pgxmock.NewRows(runColumnNames).
			AddRow("run-1", "owner-1", "complete", 4, 6, 2, false, 0, 2, 2, started, int64(0)))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		OwnerID: "owner-1", Status: model.RunStatusComplete, Limit: 10, Offset: 20,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].OracleUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_DefaultLimit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM dedupe_runs WHERE true ORDER BY started_at DESC, id LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(runColumnNames))

	runs, err := s.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMatches(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM dedupe_matches WHERE run_id = \$1 ORDER BY rank`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "rank", "pair_key", "property_a_id", "property_b_id", "basic_score", "similarity",
			"confidence", "recommendation", "used_fallback", "explanation", "reasons",
		}).
			AddRow("run-1", 1, "p1|p2", "p1", "p2", 92.5, 95.0, 90.0, "merge", false, "same flat", []byte(`["same address"]`)))

	matches, err := s.ListMatches(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"same address"}, matches[0].Reasons)
	assert.Equal(t, "merge", matches[0].Recommendation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS dedupe_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgres_InvalidConnString(t *testing.T) {
	_, err := NewPostgres(context.Background(), "://bad", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: parse config")
}
