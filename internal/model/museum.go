// Package model defines the data types shared across the ETL pipeline.
package model

import "time"

// RawTable is a table extracted from a semi-structured source. Column labels
// arrive exactly as they appear on the page: casing, whitespace, and footnote
// markers included. Schema discovery happens downstream in the cleaner.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Cell returns the value at (row, col), or "" if col is out of range for the row.
func (t *RawTable) Cell(row, col int) string {
	if col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// VisitorFact is the parsed form of one free-text visitor-count cell.
type VisitorFact struct {
	Count int64
	Year  int
}

// CleanedRecord is one museum row after cleaning and filtering.
type CleanedRecord struct {
	Name          string `json:"name"`
	City          string `json:"city"`
	Country       string `json:"country"`
	VisitorsCount int64  `json:"visitors_count"`
	VisitorsYear  int    `json:"visitors_year"`
}

// CleanedTable is the cleaner's output. An empty Records slice is a valid
// outcome (structure was identified, nothing survived the filters) and is
// distinct from a structural failure, which the cleaner reports as an error.
type CleanedTable struct {
	Records []CleanedRecord

	// Missing lists essential fields the schema discovery could not map
	// (name, city, country, visitors_count). Non-empty Missing means the
	// output is degraded and the caller should decide whether to proceed.
	Missing []string
}

// Degraded reports whether any essential field is missing from the output.
func (t *CleanedTable) Degraded() bool { return len(t.Missing) > 0 }

// EnrichedRecord is a cleaned record plus the host city's population.
// Population is nil when every lookup for the city failed; failure reasons
// are logged during enrichment and never carried on the record.
type EnrichedRecord struct {
	CleanedRecord
	Population *int64 `json:"population,omitempty"`
}

// EnrichedTable is the final artifact of the transformation stage.
type EnrichedTable struct {
	Records []EnrichedRecord
}

// CityKey identifies one distinct population lookup.
type CityKey struct {
	City    string
	Country string
}

// RunStatus represents the state of an ETL run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded ETL run.
type Run struct {
	ID          string    `json:"id"`
	Status      RunStatus `json:"status"`
	Page        string    `json:"page"`
	RowsCleaned int       `json:"rows_cleaned"`
	RowsSaved   int       `json:"rows_saved"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}
