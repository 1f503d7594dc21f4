package model

// FailureReason enumerates why a population lookup yielded no usable value.
type FailureReason string

const (
	// NoDataForCity: the place was found but carries no population figure.
	NoDataForCity FailureReason = "no_data_for_city"
	// FetchError: retries were exhausted without a usable response.
	FetchError FailureReason = "fetch_error"
	// NoDataForCompoundCity: no segment of a compound city yielded a population.
	NoDataForCompoundCity FailureReason = "no_data_for_compound_city"
)

// LookupOutcome is the tagged result of a city population lookup: either a
// positive population or exactly one classified failure reason. The zero
// value is a FetchError outcome.
type LookupOutcome struct {
	population int64
	reason     FailureReason
	ok         bool
}

// PopulationOf wraps a resolved population value.
func PopulationOf(v int64) LookupOutcome {
	return LookupOutcome{population: v, ok: true}
}

// FailureOf wraps a classified failure reason.
func FailureOf(reason FailureReason) LookupOutcome {
	return LookupOutcome{reason: reason}
}

// Population returns the resolved value and whether the lookup succeeded.
func (o LookupOutcome) Population() (int64, bool) {
	return o.population, o.ok
}

// OK reports whether the outcome carries a population.
func (o LookupOutcome) OK() bool { return o.ok }

// Reason returns the failure classification for a failed outcome. Only
// meaningful when OK is false.
func (o LookupOutcome) Reason() FailureReason {
	if o.ok {
		return ""
	}
	if o.reason == "" {
		return FetchError
	}
	return o.reason
}

// String implements fmt.Stringer for log output.
func (o LookupOutcome) String() string {
	if o.ok {
		return "population"
	}
	return string(o.Reason())
}
