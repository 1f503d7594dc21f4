package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitum/visitum-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func testTime() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

func ptrTime(t time.Time) *time.Time { return &t }

func TestPostgresStore_SaveEnriched(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO cities .+ ON CONFLICT \(country, name\) DO UPDATE .+ RETURNING id`).
		WithArgs("Paris", "France", popOf(2_100_000)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_museums"}, []string{"city_id", "name", "visitors_year", "visitors_count"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "museums"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := s.SaveEnriched(context.Background(), []model.EnrichedRecord{
		enriched("Louvre", "Paris", "France", 8_700_000, popOf(2_100_000)),
		enriched("Musée d'Orsay", "Paris", "France", 3_700_000, popOf(2_100_000)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveEnriched_OneCityUpsertPerDistinctCity(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// Two records, one city: the city upsert runs once.
	mock.ExpectQuery(`INSERT INTO cities`).
		WithArgs("Paris", "France", (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_museums"}, []string{"city_id", "name", "visitors_year", "visitors_count"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "museums"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	_, err := s.SaveEnriched(context.Background(), []model.EnrichedRecord{
		enriched("Louvre", "Paris", "France", 8_700_000, nil),
		enriched("Centre Pompidou", "Paris", "France", 3_200_000, nil),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ModelFeatures(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT c\.population, m\.visitors_count FROM museums m`).
		WillReturnRows(pgxmock.NewRows([]string{"population", "visitors_count"}).
			AddRow(int64(2_100_000), int64(8_700_000)).
			AddRow(int64(8_900_000), int64(6_500_000)))

	feats, err := s.ModelFeatures(context.Background())
	require.NoError(t, err)
	require.Len(t, feats, 2)
	assert.Equal(t, int64(2_100_000), feats[0].Population)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1, rows_cleaned = \$2`).
		WithArgs("complete", 1, 1, pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), "missing-run", 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "List_of_most-visited_museums", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.StartRun(context.Background(), "List_of_most-visited_museums")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, page, status, rows_cleaned, rows_saved, error, started_at, finished_at`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "page", "status", "rows_cleaned", "rows_saved", "error", "started_at", "finished_at",
		}).AddRow("run-1", "page", "complete", 40, 38, (*string)(nil), testTime(), ptrTime(testTime())))

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 38, runs[0].RowsSaved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
