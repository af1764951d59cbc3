package rating

import "fmt"

// Reason classifies a calculator rejection. Each reason is surfaced to the
// caller distinctly; none is ever masked or defaulted away.
type Reason string

const (
	ReasonIneligibleAge         Reason = "ineligible_age"
	ReasonUnsupportedSumAssured Reason = "unsupported_sum_assured"
	ReasonUnsupportedTerm       Reason = "unsupported_term"
	ReasonMissingFactor         Reason = "missing_factor"
	ReasonPremiumBelowFloor     Reason = "premium_below_floor"
)

// Error is a rating rejection with an applicant-safe detail message.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rating: %s: %s", e.Reason, e.Detail)
}

func newError(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the rejection reason, empty for non-rating errors.
func ReasonOf(err error) Reason {
	if re, ok := err.(*Error); ok {
		return re.Reason
	}
	return ""
}
