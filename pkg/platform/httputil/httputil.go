// Package httputil provides the JSON response helpers shared by all HTTP
// handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/sentinel"
)

// errorBody is the wire error envelope.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the error
// envelope. Internal failures omit the description so implementation details
// never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := codeOf(err)
	body := errorBody{Error: string(code)}
	status := statusFor(code)
	if status < http.StatusInternalServerError {
		var de *domainerrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, body)
}

// codeOf normalizes sentinel errors from store boundaries into domain codes
// before mapping.
func codeOf(err error) domainerrors.Code {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return domainerrors.CodeNotFound
	case errors.Is(err, sentinel.ErrDuplicate):
		return domainerrors.CodeConflict
	case errors.Is(err, sentinel.ErrStaleVersion):
		return domainerrors.CodeStaleVersion
	case errors.Is(err, sentinel.ErrUnavailable):
		return domainerrors.CodeUnavailable
	}
	return domainerrors.CodeOf(err)
}

func statusFor(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeConflict, domainerrors.CodeStaleVersion, domainerrors.CodeIllegalTransition:
		return http.StatusConflict
	case domainerrors.CodeNotGrounded:
		return http.StatusUnprocessableEntity
	case domainerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case domainerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		// CodeIntegrity and CodeInternal both surface as opaque server errors.
		return http.StatusInternalServerError
	}
}
