package clean

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/visitum/visitum-cli/internal/model"
)

// Config holds the cleaner's filter thresholds. Zero values fall back to the
// defaults the source table was built around.
type Config struct {
	YearFilter       int   `yaml:"year_filter" mapstructure:"year_filter"`
	VisitorThreshold int64 `yaml:"visitor_threshold" mapstructure:"visitor_threshold"`
}

// DefaultConfig returns the default cleaning thresholds.
func DefaultConfig() Config {
	return Config{YearFilter: 2024, VisitorThreshold: 1_250_000}
}

// Cleaner standardizes, parses, and filters the raw museum table.
type Cleaner struct {
	cfg Config
}

// New creates a Cleaner with the given thresholds.
func New(cfg Config) *Cleaner {
	if cfg.YearFilter == 0 {
		cfg.YearFilter = DefaultConfig().YearFilter
	}
	if cfg.VisitorThreshold == 0 {
		cfg.VisitorThreshold = DefaultConfig().VisitorThreshold
	}
	return &Cleaner{cfg: cfg}
}

// Clean transforms a raw table into typed museum records: discover the
// schema, parse every visitor cell, drop unparseable rows, filter by year
// and visitor threshold, and tidy the city field. A structural failure
// (unidentifiable columns) returns an error and aborts the stage; an empty
// result after filtering is a valid outcome. Missing essential fields are
// reported on the result rather than failing the rows that do resolve.
func (c *Cleaner) Clean(raw *model.RawTable) (*model.CleanedTable, error) {
	if raw == nil || len(raw.Rows) == 0 {
		return nil, eris.New("clean: input table is nil or empty")
	}

	log := zap.L().With(zap.String("component", "cleaner"))

	schema, err := DiscoverSchema(raw.Columns)
	if err != nil {
		return nil, eris.Wrap(err, "clean: discover schema")
	}
	log.Debug("schema discovered",
		zap.Int("visitor_col", schema.VisitorCol),
		zap.Any("fields", schema.Fields),
	)

	var dropped, yearFiltered, countFiltered int
	out := &model.CleanedTable{}

	for i := range raw.Rows {
		fact, parseErr := ParseVisitorCell(raw.Cell(i, schema.VisitorCol))
		if parseErr != nil {
			log.Debug("dropping row with unparseable visitor cell",
				zap.Int("row", i),
				zap.Error(parseErr),
			)
			dropped++
			continue
		}
		if fact.Year != c.cfg.YearFilter {
			yearFiltered++
			continue
		}
		if fact.Count <= c.cfg.VisitorThreshold {
			countFiltered++
			continue
		}

		rec := model.CleanedRecord{
			VisitorsCount: fact.Count,
			VisitorsYear:  fact.Year,
		}
		if idx, ok := schema.Fields[FieldName]; ok {
			rec.Name = strings.TrimSpace(raw.Cell(i, idx))
		}
		if idx, ok := schema.Fields[FieldCity]; ok {
			rec.City = strings.TrimSpace(StripCitations(raw.Cell(i, idx)))
		}
		if idx, ok := schema.Fields[FieldCountry]; ok {
			rec.Country = strings.TrimSpace(raw.Cell(i, idx))
		}
		out.Records = append(out.Records, rec)
	}

	for _, target := range []string{FieldName, FieldCity, FieldCountry} {
		if _, ok := schema.Fields[target]; !ok {
			out.Missing = append(out.Missing, target)
		}
	}
	if out.Degraded() {
		log.Warn("cleaned output is degraded: essential fields unresolved",
			zap.Strings("missing", out.Missing),
		)
	}

	log.Info("cleaning complete",
		zap.Int("rows_in", len(raw.Rows)),
		zap.Int("rows_out", len(out.Records)),
		zap.Int("unparseable", dropped),
		zap.Int("year_filtered", yearFiltered),
		zap.Int("below_threshold", countFiltered),
	)
	return out, nil
}
