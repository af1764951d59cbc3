// Package httputil centralizes JSON response shaping for the HTTP layer.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	dErrors "lifeshield/pkg/domain-errors"
)

// WriteJSON encodes v as JSON with the given status. Encoding failures are
// logged by the caller's middleware via the response writer state; nothing
// useful can be sent to the client at that point.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and a
// {error, error_description} body. Internal errors omit the description so
// implementation detail never reaches the applicant.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	if msg := dErrors.MessageOf(err); msg != "" {
		body["error_description"] = msg
	}

	WriteJSON(w, statusFor(code), body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeRating, dErrors.CodeIneligible:
		// Rating rejections and eligibility declines are well-formed requests
		// with a negative business outcome.
		return http.StatusUnprocessableEntity
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Validatable is implemented by request bodies that check and parse their
// own fields after decoding.
type Validatable interface {
	Validate() error
}

// maxBodyBytes caps request bodies. Chat turns and webhooks are small.
const maxBodyBytes = 64 << 10

// DecodeAndPrepare decodes the JSON body into a T and runs its validation.
// On any failure it writes the error response itself and reports !ok.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request) (*T, bool) {
	req := new(T)

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return nil, false
	}
	if err := PT(req).Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return req, true
}

// LogValue lets coded errors render compactly in slog output.
func LogValue(err error) slog.Value {
	return slog.GroupValue(
		slog.String("code", string(dErrors.CodeOf(err))),
		slog.String("error", err.Error()),
	)
}
