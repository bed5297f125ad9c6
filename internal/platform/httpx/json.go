package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultMaxBodyBytes bounds request bodies decoded by DecodeJSON.
const DefaultMaxBodyBytes int64 = 64 * 1024

// WriteJSON writes payload as JSON with status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields, trailing data and
// bodies larger than limit. An empty body is accepted when allowEmpty is set.
func DecodeJSON(r *http.Request, dst any, limit int64, allowEmpty bool) *Error {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		e := NewError("invalid_request", "failed to read request body", http.StatusBadRequest)
		return &e
	}
	if int64(len(body)) > limit {
		e := NewError("payload_too_large", fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
		return &e
	}
	if len(body) == 0 {
		if allowEmpty {
			return nil
		}
		e := NewError("invalid_request", "request body is required", http.StatusBadRequest)
		return &e
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		e := NewError("invalid_json", "request body must be valid JSON", http.StatusBadRequest)
		return &e
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		e := NewError("invalid_json", "request body must contain a single JSON object", http.StatusBadRequest)
		return &e
	}
	return nil
}
