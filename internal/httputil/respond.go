// Package httputil provides shared HTTP response and body-reading helpers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	svcerrors "github.com/appmaster-cloud/gateway/internal/errors"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details,omitempty"`
	} `json:"error"`
	// Redirect carries the navigable fallback target for guard denials so
	// the client never lands on a blank screen.
	Redirect string `json:"redirect,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError converts err into the standard error envelope. Unrecognized
// errors are reported as internal without leaking their message.
func WriteError(w http.ResponseWriter, err error) {
	WriteErrorRedirect(w, err, "")
}

// WriteErrorRedirect writes an error envelope carrying a redirect target.
func WriteErrorRedirect(w http.ResponseWriter, err error, redirect string) {
	se := svcerrors.GetServiceError(err)
	if se == nil {
		se = svcerrors.Internal("internal error", err)
	}
	var body errorBody
	body.Error.Code = string(se.Code)
	body.Error.Message = se.Message
	body.Error.Details = se.Details
	body.Redirect = redirect
	WriteJSON(w, se.HTTPStatus, body)
}

// Unauthorized writes a 401 envelope with an optional message.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, svcerrors.Unauthorized(message))
}

// DecodeJSON decodes a bounded JSON request body into target.
func DecodeJSON(body io.Reader, target interface{}) error {
	data, err := ReadAllStrict(body, 1<<20)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("empty request body")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// ReadAllWithLimit reads at most limit bytes and reports whether the source
// held more.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads at most limit bytes and errors if the source held more.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("response exceeds %d byte limit", limit)
	}
	return data, nil
}
