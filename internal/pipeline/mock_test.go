package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/visitum/visitum-cli/internal/model"
	"github.com/visitum/visitum-cli/internal/store"
)

// mockSource is a testify mock for the page source.
type mockSource struct {
	mock.Mock
}

func (m *mockSource) PageHTML(ctx context.Context, page string) (string, error) {
	args := m.Called(ctx, page)
	return args.String(0), args.Error(1)
}

// mockStore is a testify mock for the persistence layer.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveEnriched(ctx context.Context, records []model.EnrichedRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListMuseums(ctx context.Context, limit int) ([]model.EnrichedRecord, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]model.EnrichedRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ModelFeatures(ctx context.Context) ([]store.Feature, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]store.Feature), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) StartRun(ctx context.Context, page string) (*model.Run, error) {
	args := m.Called(ctx, page)
	if v := args.Get(0); v != nil {
		return v.(*model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, rowsCleaned, rowsSaved int) error {
	return m.Called(ctx, runID, rowsCleaned, rowsSaved).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, cause error) error {
	return m.Called(ctx, runID, cause).Error(0)
}

func (m *mockStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]model.Run), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
