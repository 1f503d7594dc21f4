package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/visitum/visitum-cli/internal/model"
)

// Config holds enrichment tuning parameters.
type Config struct {
	// Workers bounds the number of concurrent population lookups. The
	// geocoding provider throttles aggressively, so the pool stays small.
	// Default: 8.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the default enrichment settings.
func DefaultConfig() Config {
	return Config{Workers: 8}
}

// Enricher attaches city populations to cleaned museum records. Many museums
// share a city, so lookups are dispatched once per distinct (city, country)
// key through a bounded worker pool, and results are merged back onto every
// row after all workers finish.
type Enricher struct {
	resolver *Resolver
	workers  int
}

// New creates an Enricher around the given resolver.
func New(resolver *Resolver, cfg Config) *Enricher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultConfig().Workers
	}
	return &Enricher{resolver: resolver, workers: workers}
}

// Enrich resolves the population for every distinct city key in the table
// and maps the outcomes back onto each record. Lookup failures become an
// absent population; their reasons are tallied for the summary log only.
// The result is independent of worker count and completion order.
func (e *Enricher) Enrich(ctx context.Context, cleaned *model.CleanedTable) *model.EnrichedTable {
	log := zap.L().With(zap.String("component", "enricher"))

	keys := distinctKeys(cleaned.Records)
	log.Info("starting population enrichment",
		zap.Int("rows", len(cleaned.Records)),
		zap.Int("distinct_cities", len(keys)),
		zap.Int("workers", e.workers),
	)

	var mu sync.Mutex
	outcomes := make(map[model.CityKey]model.LookupOutcome, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, key := range keys {
		g.Go(func() error {
			outcome := e.resolveSafely(gctx, key)
			mu.Lock()
			outcomes[key] = outcome
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; the barrier is what matters. Partial
	// tables are never emitted.
	_ = g.Wait()

	out := &model.EnrichedTable{Records: make([]model.EnrichedRecord, 0, len(cleaned.Records))}
	var valid, absent int
	reasons := make(map[model.FailureReason]int)

	for _, rec := range cleaned.Records {
		enriched := model.EnrichedRecord{CleanedRecord: rec}
		outcome, ok := outcomes[model.CityKey{City: rec.City, Country: rec.Country}]
		if !ok {
			// Every row's key was submitted, but guard the merge anyway.
			log.Warn("no outcome recorded for city key",
				zap.String("city", rec.City),
				zap.String("country", rec.Country),
			)
			absent++
			out.Records = append(out.Records, enriched)
			continue
		}
		if pop, resolved := outcome.Population(); resolved {
			enriched.Population = &pop
			valid++
		} else {
			reasons[outcome.Reason()]++
			absent++
			log.Warn("population lookup failed",
				zap.String("city", rec.City),
				zap.String("country", rec.Country),
				zap.String("reason", string(outcome.Reason())),
			)
		}
		out.Records = append(out.Records, enriched)
	}

	fields := []zap.Field{
		zap.Int("total", len(out.Records)),
		zap.Int("with_population", valid),
		zap.Int("absent", absent),
	}
	for reason, n := range reasons {
		fields = append(fields, zap.Int(string(reason), n))
	}
	log.Info("population enrichment complete", fields...)

	return out
}

// resolveSafely runs one resolution, converting a worker panic into an
// absent outcome. Retries are the lookup's job, not the orchestrator's.
func (e *Enricher) resolveSafely(ctx context.Context, key model.CityKey) (outcome model.LookupOutcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("population worker panicked",
				zap.String("city", key.City),
				zap.String("country", key.Country),
				zap.Any("panic", r),
			)
			outcome = model.FailureOf(model.FetchError)
		}
	}()
	return e.resolver.Resolve(ctx, key.City, key.Country)
}

// distinctKeys collapses records to unique (city, country) pairs, preserving
// first-seen order for deterministic dispatch.
func distinctKeys(records []model.CleanedRecord) []model.CityKey {
	seen := make(map[model.CityKey]struct{}, len(records))
	var keys []model.CityKey
	for _, rec := range records {
		key := model.CityKey{City: rec.City, Country: rec.Country}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
