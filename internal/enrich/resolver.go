package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/visitum/visitum-cli/internal/model"
)

// Resolver turns a possibly compound city string into a single population
// outcome. Compound entries ("Vatican City, Rome") are split on commas and
// each segment is looked up; when several segments resolve, the largest
// population is used as a proxy for the shared metro area. Summing would
// double-count overlapping metro populations, so the maximum is the best
// available estimate. This is a heuristic, not a verified figure.
type Resolver struct {
	lookup Lookup
	rules  []Rule
}

// NewResolver creates a Resolver with the given lookup and rewrite rules.
// Nil rules fall back to DefaultRules.
func NewResolver(lookup Lookup, rules []Rule) *Resolver {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Resolver{lookup: lookup, rules: rules}
}

// Resolve maps (city, country) to a population outcome. Rules apply to the
// original fields before any splitting. Segment lookups run sequentially;
// parallelism belongs to the enricher, which already fans out per city key.
func (r *Resolver) Resolve(ctx context.Context, city, country string) model.LookupOutcome {
	log := zap.L().With(
		zap.String("component", "resolver"),
		zap.String("city", city),
		zap.String("country", country),
	)

	for _, rule := range r.rules {
		if rule.Matches(city, country) {
			log.Info("rewrite rule applied",
				zap.String("to_city", rule.City),
				zap.String("to_country", rule.Country),
			)
			city, country = rule.City, rule.Country
			break
		}
	}

	segments := splitCity(city)
	if len(segments) == 0 {
		log.Warn("no city segments to resolve")
		return model.FailureOf(model.NoDataForCompoundCity)
	}

	if len(segments) == 1 {
		return r.lookupOne(ctx, segments[0], country)
	}

	log.Info("resolving compound city", zap.Strings("segments", segments))
	best := model.FailureOf(model.NoDataForCompoundCity)
	found := 0
	for _, segment := range segments {
		outcome := r.lookupOne(ctx, segment, country)
		pop, ok := outcome.Population()
		if !ok {
			log.Warn("segment lookup failed",
				zap.String("segment", segment),
				zap.String("reason", string(outcome.Reason())),
			)
			continue
		}
		found++
		if bestPop, bestOK := best.Population(); !bestOK || pop > bestPop {
			best = outcome
		}
	}

	if found == 0 {
		log.Warn("no segment of compound city resolved")
		return model.FailureOf(model.NoDataForCompoundCity)
	}
	if pop, _ := best.Population(); found > 1 {
		log.Info("multiple segments resolved, using max as metro proxy",
			zap.Int64("population", pop),
		)
	}
	return best
}

// lookupOne delegates one segment to the lookup, folding unexpected errors
// into a FetchError outcome so callers only ever see classified results.
func (r *Resolver) lookupOne(ctx context.Context, city, country string) model.LookupOutcome {
	outcome, err := r.lookup.Population(ctx, city, country)
	if err != nil {
		zap.L().Warn("population lookup returned unclassified error",
			zap.String("city", city),
			zap.String("country", country),
			zap.Error(err),
		)
		return model.FailureOf(model.FetchError)
	}
	return outcome
}

// splitCity breaks a city field on commas, trimming whitespace and dropping
// empty segments.
func splitCity(city string) []string {
	var segments []string
	for _, part := range strings.Split(city, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
