package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// fail writes err with its category status. Server-side failures are logged with the
// request's logger.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if lterrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error().Err(err).Str(logging.Path, r.URL.Path).Msg("request failed")
	}
	lterrors.WriteHTTPError(w, err)
}

// decode reads a JSON body into dst, rejecting unknown fields.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return lterrors.NewInvalidInputWithCause("body", "malformed JSON body", err)
	}
	return nil
}

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, lterrors.NewInvalidInputWithCause(name, "must be an integer", err)
	}
	return n, nil
}

func pageQuery(r *http.Request) (store.Page, error) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		return store.Page{}, err
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Limit: limit, Offset: offset}, nil
}

type toggleResponse struct {
	Active bool `json:"active"`
}

type countResponse struct {
	Count int `json:"count"`
}
