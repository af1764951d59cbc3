// Package domainerrors provides coded domain errors shared across services.
//
// Services return these so the transport layer can map failures to HTTP
// statuses and user-safe messages without inspecting error strings.
// Infrastructure facts (store misses, expiry) use pkg/platform/sentinel
// instead; services translate sentinel errors into coded ones at the edge.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure. The set is closed: transport mapping
// switches over it exhaustively.
type Code string

const (
	// CodeBadRequest covers malformed requests (unparseable body, bad ID).
	CodeBadRequest Code = "bad_request"
	// CodeValidation covers a field that failed type/format/range checks.
	// Reported to the applicant as a targeted re-ask, never fatal.
	CodeValidation Code = "validation_error"
	// CodeRating covers premium calculator rejections. Surfaced verbatim
	// as an explanatory message; the conversation stage does not advance.
	CodeRating Code = "rating_error"
	// CodeIneligible covers hard eligibility failures. Routes the session
	// to the declined stage, terminally.
	CodeIneligible Code = "ineligible"
	// CodeNotFound covers lookups of sessions or quotes that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict covers lost concurrent updates and invalid stage moves.
	CodeConflict Code = "conflict"
	// CodeUnavailable covers external collaborator outages after retries.
	CodeUnavailable Code = "service_unavailable"
	// CodeInternal covers everything the applicant must never see details of.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to the applicant
// for every code except CodeInternal.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New builds a coded error with a user-facing message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted user-facing message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a coded error preserving the underlying cause for errors.Is
// chains and logs. The cause is never shown to the applicant.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, wrapped: cause}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readable alias for HasCode at call sites that check one code.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// uncoded errors so nothing leaks through transport mapping.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the user-safe message from err. Uncoded errors and
// internal errors yield an empty string; callers substitute their own copy.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return ""
}
