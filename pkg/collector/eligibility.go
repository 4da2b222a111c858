package collector

// RecentSearchHorizonDays is the reply history horizon of the search API.
// Past it the API returns incomplete or no reply data regardless of query
// shape, so only the browser fallback can recover repliers.
const RecentSearchHorizonDays = 7.0

// Reason explains a fallback decision.
type Reason string

const (
	// ReasonNone means the API result is trusted as-is.
	ReasonNone Reason = "None"
	// ReasonAgeExceeded means the post is older than the search horizon.
	ReasonAgeExceeded Reason = "AgeExceeded"
	// ReasonExplicitOverride means the caller forced the fallback.
	ReasonExplicitOverride Reason = "ExplicitOverride"
	// ReasonZeroWithNonzeroMetric means the API returned nothing although
	// the post's public counters say replies exist.
	ReasonZeroWithNonzeroMetric Reason = "ZeroWithNonzeroMetric"
)

// Decision is the outcome of the reply eligibility policy.
type Decision struct {
	ShouldFallback bool   `json:"should_fallback"`
	Reason         Reason `json:"reason"`
}

// Decide determines whether browser fallback extraction should run. Pure
// function; rules apply in strict priority order:
//
//  1. post older than the search horizon
//  2. explicit override requested
//  3. API returned zero replies while the engagement hint is nonzero
//
// Anything else trusts the API result.
func Decide(postAgeDays float64, apiReturned, replyCountHint int, explicitOverride bool) Decision {
	switch {
	case postAgeDays > RecentSearchHorizonDays:
		return Decision{ShouldFallback: true, Reason: ReasonAgeExceeded}
	case explicitOverride:
		return Decision{ShouldFallback: true, Reason: ReasonExplicitOverride}
	case apiReturned == 0 && replyCountHint > 0:
		return Decision{ShouldFallback: true, Reason: ReasonZeroWithNonzeroMetric}
	default:
		return Decision{ShouldFallback: false, Reason: ReasonNone}
	}
}
