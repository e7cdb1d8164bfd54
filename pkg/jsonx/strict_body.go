// Package jsonx provides strict JSON binding for low-trust HTTP inputs.
package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var (
	ErrEmptyBody    = errors.New("empty body")
	ErrTrailingJSON = errors.New("trailing data")
)

// ParseStrictBody reads and strictly decodes a JSON request body into dst.
//
// Rejections map to HTTP 400: malformed syntax, empty body (ErrEmptyBody),
// more than one JSON value (ErrTrailingJSON), unknown fields, field-type
// mismatches. The reader is capped at 1MB. This is structural/shape
// validation only; required-field and semantic checks belong to the caller.
func ParseStrictBody[T any](r *http.Request, dst *T) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return ErrEmptyBody
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}
