package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/visitum/visitum-cli/internal/model"
)

func TestResolve_SingleCity(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "Paris", "France").
		Return(model.PopulationOf(2_100_000), nil).Once()

	outcome := NewResolver(lk, nil).Resolve(context.Background(), "Paris", "France")
	pop, ok := outcome.Population()
	require.True(t, ok)
	assert.Equal(t, int64(2_100_000), pop)
	lk.AssertExpectations(t)
}

func TestResolve_VaticanRule(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "Rome", "Italy").
		Return(model.PopulationOf(2_870_000), nil).Once()

	outcome := NewResolver(lk, nil).Resolve(context.Background(), "Vatican City", "Vatican City")
	assert.True(t, outcome.OK())
	// The rewritten pair is the only one the lookup ever sees.
	lk.AssertExpectations(t)
	lk.AssertNotCalled(t, "Population", mock.Anything, "Vatican City", "Vatican City")
}

func TestResolve_SouthKensingtonRule(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "London", "United Kingdom").
		Return(model.PopulationOf(8_900_000), nil).Once()

	// Rules fire before comma splitting, so this resolves in one call, not
	// one per segment.
	outcome := NewResolver(lk, nil).Resolve(context.Background(), "South Kensington, London", "United Kingdom")
	assert.True(t, outcome.OK())
	lk.AssertExpectations(t)
}

func TestResolve_SouthKensingtonAloneNotRewritten(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "South Kensington", "Australia").
		Return(model.FailureOf(model.NoDataForCity), nil).Once()

	// Both "london" and "south kensington" must appear for the rule to fire.
	outcome := NewResolver(lk, nil).Resolve(context.Background(), "South Kensington", "Australia")
	assert.False(t, outcome.OK())
	lk.AssertExpectations(t)
}

func TestResolve_CompoundPartialSuccess(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "Paris", "France").
		Return(model.PopulationOf(2_000_000), nil).Once()
	lk.On("Population", mock.Anything, "Some Other Place", "France").
		Return(model.FailureOf(model.NoDataForCity), nil).Once()

	outcome := NewResolver(lk, nil).Resolve(context.Background(), "Paris, Some Other Place", "France")
	pop, ok := outcome.Population()
	require.True(t, ok)
	assert.Equal(t, int64(2_000_000), pop)
	lk.AssertExpectations(t)
}

func TestResolve_CompoundUsesMaxPopulation(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "Yokohama", "Japan").
		Return(model.PopulationOf(3_700_000), nil).Once()
	lk.On("Population", mock.Anything, "Tokyo", "Japan").
		Return(model.PopulationOf(13_900_000), nil).Once()

	outcome := NewResolver(lk, nil).Resolve(context.Background(), "Yokohama, Tokyo", "Japan")
	pop, ok := outcome.Population()
	require.True(t, ok)
	assert.Equal(t, int64(13_900_000), pop)
}

func TestResolve_CompoundAllFailures(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "Nowhere", "Atlantis").
		Return(model.FailureOf(model.NoDataForCity), nil).Once()
	lk.On("Population", mock.Anything, "Elsewhere", "Atlantis").
		Return(model.FailureOf(model.FetchError), nil).Once()

	// Individual reasons are masked behind the compound classification.
	outcome := NewResolver(lk, nil).Resolve(context.Background(), "Nowhere, Elsewhere", "Atlantis")
	assert.Equal(t, model.NoDataForCompoundCity, outcome.Reason())
	lk.AssertExpectations(t)
}

func TestResolve_EmptyCityNeverCallsLookup(t *testing.T) {
	lk := &mockLookup{}

	outcome := NewResolver(lk, nil).Resolve(context.Background(), "", "Country")
	assert.Equal(t, model.NoDataForCompoundCity, outcome.Reason())

	outcome = NewResolver(lk, nil).Resolve(context.Background(), " , , ", "Country")
	assert.Equal(t, model.NoDataForCompoundCity, outcome.Reason())

	lk.AssertNotCalled(t, "Population", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_UnclassifiedErrorBecomesFetchError(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "Oslo", "Norway").
		Return(model.LookupOutcome{}, assert.AnError).Once()

	outcome := NewResolver(lk, nil).Resolve(context.Background(), "Oslo", "Norway")
	assert.Equal(t, model.FetchError, outcome.Reason())
}

func TestResolve_CustomRulesEvaluatedInOrder(t *testing.T) {
	lk := &mockLookup{}
	lk.On("Population", mock.Anything, "First", "Winner").
		Return(model.PopulationOf(1), nil).Once()

	rules := []Rule{
		{CityContains: []string{"twin"}, City: "First", Country: "Winner"},
		{CityContains: []string{"twin"}, City: "Second", Country: "Loser"},
	}
	outcome := NewResolver(lk, rules).Resolve(context.Background(), "Twin Cities", "US")
	assert.True(t, outcome.OK())
	lk.AssertExpectations(t)
}

func TestSplitCity(t *testing.T) {
	assert.Equal(t, []string{"Paris"}, splitCity("Paris"))
	assert.Equal(t, []string{"A", "B"}, splitCity(" A , B "))
	assert.Nil(t, splitCity(",,  ,"))
}
