// Package enrich resolves city populations and attaches them to cleaned museum records.
package enrich

import (
	"context"

	"github.com/visitum/visitum-cli/internal/model"
)

// Lookup is the population lookup collaborator. Implementations own their
// retry policy; callers see either a population or a classified failure.
// An error return is reserved for unexpected conditions the implementation
// could not classify.
type Lookup interface {
	Population(ctx context.Context, city, country string) (model.LookupOutcome, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, city, country string) (model.LookupOutcome, error)

// Population implements Lookup.
func (f LookupFunc) Population(ctx context.Context, city, country string) (model.LookupOutcome, error) {
	return f(ctx, city, country)
}
