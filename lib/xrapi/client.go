// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package xrapi is the client for the analytics backend's REST API:
// stream grants, batch ingest and survey ratings.
package xrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/digest"
	"github.com/spatialtrace/spatialtrace/lib/netutil"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/version"
)

// API paths, relative to the origin.
const (
	StreamPath = "/api/v1/data-stream/xr-analytics"
	IngestPath = "/api/v1/xr-analytics"
	SurveyPath = "/api/v1/metric-surveys"
)

// Header names carried on ingest requests.
const (
	HeaderBatchDigest = "X-Batch-Digest"
	HeaderAppKey      = "X-App-Key"
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// Unauthorized reports whether the backend rejected the credentials.
func (e *StatusError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Client talks to one backend origin.
type Client struct {
	origin     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New returns a Client for origin (scheme and host, no path). A nil
// httpClient gets a client with a 30 second timeout.
func New(origin string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		origin:     strings.TrimRight(origin, "/"),
		httpClient: httpClient,
		logger:     logger.With("component", "xrapi"),
	}
}

// Origin returns the backend origin.
func (c *Client) Origin() string { return c.origin }

type streamRequest struct {
	AppKey    string `json:"appkey"`
	SessionID string `json:"sessionId,omitempty"`
}

// RequestStream asks the backend for a new session and the credentials
// to write its data stream. priorSessionID links a rolled-over session
// to its predecessor and may be empty.
func (c *Client) RequestStream(ctx context.Context, appKey, priorSessionID string) (xr.StreamGrant, error) {
	var grant xr.StreamGrant
	body, err := json.Marshal(streamRequest{AppKey: appKey, SessionID: priorSessionID})
	if err != nil {
		return grant, fmt.Errorf("encoding stream request: %w", err)
	}
	response, err := c.post(ctx, StreamPath, body, nil)
	if err != nil {
		return grant, err
	}
	defer response.Body.Close()
	if err := netutil.DecodeResponse(response.Body, &grant); err != nil {
		return grant, fmt.Errorf("stream grant: %w", err)
	}
	if grant.SessionID == "" {
		return grant, fmt.Errorf("stream grant has no session id")
	}
	c.logger.Debug("stream granted", "session_id", grant.SessionID, "stream", grant.DataStream)
	return grant, nil
}

// SendBatch posts one batch to the ingest endpoint, compressed with
// algorithm when that makes it smaller.
func (c *Client) SendBatch(ctx context.Context, batch xr.Batch, algorithm compress.Algorithm) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	encoded, applied, err := compress.Encode(payload, algorithm)
	if err != nil {
		return err
	}
	headers := http.Header{}
	headers.Set(HeaderBatchDigest, digest.Batch(payload).String())
	headers.Set(HeaderAppKey, batch.AppKey)
	if encoding := applied.ContentEncoding(); encoding != "" {
		headers.Set("Content-Encoding", encoding)
	}
	response, err := c.post(ctx, IngestPath, encoded, headers)
	if err != nil {
		return err
	}
	response.Body.Close()
	return nil
}

// SubmitSurvey posts a survey rating.
func (c *Client) SubmitSurvey(ctx context.Context, rating xr.SurveyRating) error {
	body, err := json.Marshal(rating)
	if err != nil {
		return fmt.Errorf("encoding survey rating: %w", err)
	}
	response, err := c.post(ctx, SurveyPath, body, nil)
	if err != nil {
		return err
	}
	response.Body.Close()
	return nil
}

// post sends a JSON body and returns the response when the status is
// 2xx. The caller closes the body.
func (c *Client) post(ctx context.Context, path string, body []byte, headers http.Header) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	for key, values := range headers {
		request.Header[key] = values
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	if response.StatusCode/100 == 2 {
		return response, nil
	}
	defer response.Body.Close()
	return nil, &StatusError{
		Method:  http.MethodPost,
		Path:    path,
		Status:  response.StatusCode,
		Message: errorMessage(netutil.ErrorBody(response.Body)),
	}
}

// errorMessage extracts the "message" field of a JSON error body and
// falls back to the raw text.
func errorMessage(body string) string {
	var decoded struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(body), &decoded) == nil && decoded.Message != "" {
		return decoded.Message
	}
	return strings.TrimSpace(body)
}
