package enrich

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/visitum/visitum-cli/internal/model"
)

// mockLookup is a testify mock for the population lookup collaborator.
type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) Population(ctx context.Context, city, country string) (model.LookupOutcome, error) {
	args := m.Called(ctx, city, country)
	return args.Get(0).(model.LookupOutcome), args.Error(1)
}
