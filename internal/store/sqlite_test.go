package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitum/visitum-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "visitum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func popOf(v int64) *int64 { return &v }

func enriched(name, city, country string, visitors int64, pop *int64) model.EnrichedRecord {
	return model.EnrichedRecord{
		CleanedRecord: model.CleanedRecord{
			Name: name, City: city, Country: country,
			VisitorsCount: visitors, VisitorsYear: 2024,
		},
		Population: pop,
	}
}

func TestSQLiteStore_SaveAndList(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.SaveEnriched(ctx, []model.EnrichedRecord{
		enriched("Louvre", "Paris", "France", 8_700_000, popOf(2_100_000)),
		enriched("British Museum", "London", "United Kingdom", 6_500_000, popOf(8_900_000)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	museums, err := s.ListMuseums(ctx, 10)
	require.NoError(t, err)
	require.Len(t, museums, 2)
	assert.Equal(t, "Louvre", museums[0].Name)
	require.NotNil(t, museums[0].Population)
	assert.Equal(t, int64(2_100_000), *museums[0].Population)
}

func TestSQLiteStore_SaveEnriched_DeduplicatesCities(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.SaveEnriched(ctx, []model.EnrichedRecord{
		enriched("Louvre", "Paris", "France", 8_700_000, popOf(2_100_000)),
		enriched("Musée d'Orsay", "Paris", "France", 3_700_000, popOf(2_100_000)),
	})
	require.NoError(t, err)

	var cities int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM cities`).Scan(&cities))
	assert.Equal(t, 1, cities)
}

func TestSQLiteStore_SaveEnriched_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	batch := []model.EnrichedRecord{enriched("Louvre", "Paris", "France", 8_700_000, popOf(2_100_000))}

	_, err := s.SaveEnriched(ctx, batch)
	require.NoError(t, err)
	_, err = s.SaveEnriched(ctx, batch)
	require.NoError(t, err)

	var museums int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM museums`).Scan(&museums))
	assert.Equal(t, 1, museums)
}

func TestSQLiteStore_SaveEnriched_KeepsKnownPopulation(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.SaveEnriched(ctx, []model.EnrichedRecord{
		enriched("Louvre", "Paris", "France", 8_700_000, popOf(2_100_000)),
	})
	require.NoError(t, err)

	// A later batch without population must not erase the stored value.
	_, err = s.SaveEnriched(ctx, []model.EnrichedRecord{
		enriched("Musée d'Orsay", "Paris", "France", 3_700_000, nil),
	})
	require.NoError(t, err)

	feats, err := s.ModelFeatures(ctx)
	require.NoError(t, err)
	assert.Len(t, feats, 2)
}

func TestSQLiteStore_SaveEnriched_SkipsIncompleteRecords(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n, err := s.SaveEnriched(ctx, []model.EnrichedRecord{
		enriched("", "Paris", "France", 1, nil),
		enriched("Louvre", "", "France", 1, nil),
		enriched("Louvre", "Paris", "France", 8_700_000, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_ModelFeatures_ExcludesUnknownPopulation(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.SaveEnriched(ctx, []model.EnrichedRecord{
		enriched("Louvre", "Paris", "France", 8_700_000, popOf(2_100_000)),
		enriched("Ghost Museum", "Unknown", "Nowhere", 2_000_000, nil),
	})
	require.NoError(t, err)

	feats, err := s.ModelFeatures(ctx)
	require.NoError(t, err)
	require.Len(t, feats, 1)
	assert.Equal(t, int64(2_100_000), feats[0].Population)
	assert.Equal(t, int64(8_700_000), feats[0].VisitorsCount)
}

func TestSQLiteStore_RunLog(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.StartRun(ctx, "List_of_most-visited_museums")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	require.NoError(t, s.CompleteRun(ctx, run.ID, 40, 38))

	failed, err := s.StartRun(ctx, "List_of_most-visited_museums")
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, failed.ID, assert.AnError))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]model.Run{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	assert.Equal(t, model.RunStatusComplete, byID[run.ID].Status)
	assert.Equal(t, 40, byID[run.ID].RowsCleaned)
	assert.Equal(t, 38, byID[run.ID].RowsSaved)
	assert.Equal(t, model.RunStatusFailed, byID[failed.ID].Status)
	assert.NotEmpty(t, byID[failed.ID].Error)
}

func TestSQLiteStore_CompleteRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)
	err := s.CompleteRun(context.Background(), "no-such-run", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
