// Package pipeline orchestrates the fetch → extract → clean → enrich → persist ETL run.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/visitum/visitum-cli/internal/clean"
	"github.com/visitum/visitum-cli/internal/enrich"
	"github.com/visitum/visitum-cli/internal/export"
	"github.com/visitum/visitum-cli/internal/extract"
	"github.com/visitum/visitum-cli/internal/store"
	"github.com/visitum/visitum-cli/pkg/wikipedia"
)

// Options configures a pipeline run.
type Options struct {
	// Page is the encyclopedia page holding the museum table.
	Page string
	// TableHint selects the table on the page by a text it contains.
	TableHint string
	// ExportPath, when set, writes the enriched CSV artifact after persisting.
	ExportPath string
}

// Pipeline wires the ETL stages together.
type Pipeline struct {
	source   wikipedia.Client
	cleaner  *clean.Cleaner
	enricher *enrich.Enricher
	store    store.Store
	opts     Options
}

// Result summarizes one completed run.
type Result struct {
	RunID         string   `json:"run_id"`
	RowsExtracted int      `json:"rows_extracted"`
	RowsCleaned   int      `json:"rows_cleaned"`
	RowsSaved     int      `json:"rows_saved"`
	MissingFields []string `json:"missing_fields,omitempty"`
	ExportPath    string   `json:"export_path,omitempty"`
}

// New creates a Pipeline with all dependencies.
func New(source wikipedia.Client, cleaner *clean.Cleaner, enricher *enrich.Enricher, st store.Store, opts Options) *Pipeline {
	return &Pipeline{
		source:   source,
		cleaner:  cleaner,
		enricher: enricher,
		store:    st,
		opts:     opts,
	}
}

// Run executes the full ETL. A structural failure before enrichment aborts
// the run and is recorded on the run log; row-level problems degrade the
// output but never abort.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("page", p.opts.Page))
	log.Info("pipeline: starting etl run")

	run, err := p.store.StartRun(ctx, p.opts.Page)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	result := &Result{RunID: run.ID}

	fail := func(cause error) (*Result, error) {
		if failErr := p.store.FailRun(ctx, run.ID, cause); failErr != nil {
			log.Warn("pipeline: failed to record run failure", zap.Error(failErr))
		}
		return nil, cause
	}

	html, err := p.source.PageHTML(ctx, p.opts.Page)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: fetch page"))
	}

	raw, err := extract.Table(html, p.opts.TableHint)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: extract table"))
	}
	result.RowsExtracted = len(raw.Rows)

	cleaned, err := p.cleaner.Clean(raw)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: clean table"))
	}
	result.RowsCleaned = len(cleaned.Records)
	result.MissingFields = cleaned.Missing
	if cleaned.Degraded() {
		log.Warn("pipeline: degraded output, essential fields unmapped",
			zap.Strings("missing", cleaned.Missing),
		)
	}

	enriched := p.enricher.Enrich(ctx, cleaned)

	saved, err := p.store.SaveEnriched(ctx, enriched.Records)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: save enriched records"))
	}
	result.RowsSaved = saved

	if p.opts.ExportPath != "" {
		if err := export.WriteFile(p.opts.ExportPath, enriched.Records); err != nil {
			return fail(err)
		}
		result.ExportPath = p.opts.ExportPath
	}

	if err := p.store.CompleteRun(ctx, run.ID, result.RowsCleaned, result.RowsSaved); err != nil {
		log.Warn("pipeline: failed to record run completion", zap.Error(err))
	}

	log.Info("pipeline: etl run complete",
		zap.String("run_id", run.ID),
		zap.Int("rows_extracted", result.RowsExtracted),
		zap.Int("rows_cleaned", result.RowsCleaned),
		zap.Int("rows_saved", result.RowsSaved),
	)
	return result, nil
}
