// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the bounded HTTP body helpers shared by the
// backend client and the collector. Every JSON body, in either
// direction, is read through a limit so a misbehaving peer cannot make
// the agent buffer without bound.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MaxResponseSize bounds API response bodies. Grants and acks are a
// few hundred bytes.
const MaxResponseSize int64 = 1 << 20

// MaxRequestSize bounds request bodies accepted by the collector: a
// full batch of twenty records with generous custom fields.
const MaxRequestSize int64 = 8 << 20

// maxErrorBody is how much of an error response is kept for messages.
const maxErrorBody = 512

// DecodeResponse reads a JSON response body up to MaxResponseSize and
// decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody returns the start of an error response body for use in an
// error message. Read errors are ignored.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return string(data)
}

// ReadRequest reads a request body up to MaxRequestSize. A body that
// reaches the limit is rejected rather than truncated.
func ReadRequest(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if int64(len(data)) > MaxRequestSize {
		return nil, fmt.Errorf("request body exceeds %d bytes", MaxRequestSize)
	}
	return data, nil
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error body of the form {"message": ...}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"message": message})
}
