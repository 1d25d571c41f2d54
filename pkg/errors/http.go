package errors

import (
	"net/http"

	"github.com/goccy/go-json"
)

// HTTPStatusCode maps an error category to an HTTP status:
//   - NotFoundError -> 404
//   - InvalidInputError -> 400
//   - UnauthorizedError -> 401
//   - ConflictError -> 409
//   - TemporaryError -> 503
//   - everything else -> 500
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case IsNotFound(err):
		return http.StatusNotFound
	case IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnauthorized(err):
		return http.StatusUnauthorized
	case IsConflict(err):
		return http.StatusConflict
	case IsTemporary(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body written by WriteHTTPError.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteHTTPError writes err as a JSON body with the status from HTTPStatusCode.
// Internal errors are reported with a generic message so driver details do not leak.
func WriteHTTPError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	status := HTTPStatusCode(err)
	body := ErrorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}

	var iie *InvalidInputError
	if As(err, &iie) {
		body.Field = iie.Field()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
