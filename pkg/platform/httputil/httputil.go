// Package httputil holds the JSON response and request helpers shared by
// every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	dErrors "docflow/pkg/domain-errors"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 2 << 20

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	EntityID         string `json:"entity_id,omitempty"`
	Action           string `json:"action,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and envelope. Errors without a domain code
// are reported as internal and their message is not exposed.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodeInternal, "internal error")
	}
	resp := ErrorResponse{
		Error:    string(de.Code),
		EntityID: de.EntityID,
		Action:   de.Action,
	}
	if de.Code != dErrors.CodeInternal {
		resp.ErrorDescription = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(de.Code), resp)
}

// Validatable is implemented by request bodies that check themselves.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request bodies that trim their input.
type Normalizable interface {
	Normalize()
}

// DecodeJSON reads one JSON object into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeInvalidInput, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid JSON: "+strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

// DecodeAndPrepare decodes a T, normalizes and validates it when T supports
// that, and writes the error response itself on failure.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	req := new(T)
	if err := DecodeJSON(r, req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode request",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	if n, ok := any(req).(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := any(req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(r.Context(), "invalid request",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return req, true
}
