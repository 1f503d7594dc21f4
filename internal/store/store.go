// Package store persists enriched museum records and the ETL run log.
package store

import (
	"context"

	"github.com/visitum/visitum-cli/internal/model"
)

// Feature is one observation for the regression trainer: city population
// against museum visitor count. Rows with unknown population never appear
// here.
type Feature struct {
	Population    int64
	VisitorsCount int64
}

// Store defines the persistence interface for the ETL pipeline. Cities
// deduplicate on (country, name); museums deduplicate on (city, year, name).
type Store interface {
	// SaveEnriched upserts a batch of enriched records into cities and
	// museums. Returns the number of museum rows written.
	SaveEnriched(ctx context.Context, records []model.EnrichedRecord) (int, error)
	// ListMuseums returns stored museums with their city data, largest
	// visitor counts first.
	ListMuseums(ctx context.Context, limit int) ([]model.EnrichedRecord, error)
	// ModelFeatures returns (population, visitors_count) pairs for every
	// museum whose city has a known population.
	ModelFeatures(ctx context.Context) ([]Feature, error)

	// Run log
	StartRun(ctx context.Context, page string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, rowsCleaned, rowsSaved int) error
	FailRun(ctx context.Context, runID string, cause error) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// storable reports whether a record carries the fields the unique constraints
// depend on. Degraded rows are skipped, not saved with empty keys.
func storable(r model.EnrichedRecord) bool {
	return r.Name != "" && r.City != "" && r.Country != ""
}
