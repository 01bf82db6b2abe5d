// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector is an in-memory stand-in for the analytics
// backend. It speaks the agent's wire protocols exactly: stream grants,
// HTTP batch ingest, the websocket data stream and survey ratings. It
// stores everything it accepts and exposes query methods, so transport
// and poller tests can assert on what actually crossed the wire, and
// the spatialtrace-collector binary can serve it for local runs.
package collector

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spatialtrace/spatialtrace/lib/digest"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/sealed"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
)

// StreamRoute is the websocket path of the data stream gateway.
const StreamRoute = "/v1/stream"

// Options configures a Collector.
type Options struct {
	// SealRecipients, when set, seals grant keys to these age
	// recipients.
	SealRecipients []string

	// SharedSecret, when set and SealRecipients is empty, seals grant
	// keys in the nonce:ciphertext format.
	SharedSecret []byte

	// StreamName is reported in every grant. Defaults to
	// "xr-analytics".
	StreamName string

	// Region is reported in every grant. Defaults to "local-1".
	Region string

	Logger *slog.Logger
}

// Delivery is one accepted batch.
type Delivery struct {
	// Via is "http" or "stream".
	Via       string
	AppKey    string
	SessionID string
	Records   []xr.Record
	Digest    string
}

type session struct {
	appKey      string
	accessKeyID string
	signingKey  [32]byte
}

// Collector implements the backend in memory.
type Collector struct {
	options  Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
	notify   chan Delivery

	mu           sync.Mutex
	sessions     map[string]*session
	accessKeys   map[string]*session
	grants       []xr.StreamGrant
	deliveries   []Delivery
	seenDigests  map[string]bool
	surveys      []xr.SurveyRating
	rejectTokens bool
	failStatus   int
	putSequence  uint64
}

// New returns an empty Collector.
func New(options Options) *Collector {
	if options.StreamName == "" {
		options.StreamName = "xr-analytics"
	}
	if options.Region == "" {
		options.Region = "local-1"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		options:     options,
		logger:      logger.With("component", "collector"),
		notify:      make(chan Delivery, 1024),
		sessions:    make(map[string]*session),
		accessKeys:  make(map[string]*session),
		seenDigests: make(map[string]bool),
	}
}

// Handler returns the HTTP handler serving every route.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+xrapi.StreamPath, c.handleGrant)
	mux.HandleFunc("POST "+xrapi.IngestPath, c.handleIngest)
	mux.HandleFunc("POST "+xrapi.SurveyPath, c.handleSurvey)
	mux.HandleFunc("GET "+StreamRoute, c.handleStream)
	return mux
}

// RejectTokens makes every ingest and stream put fail with the invalid
// token error until called again with false.
func (c *Collector) RejectTokens(reject bool) {
	c.mu.Lock()
	c.rejectTokens = reject
	c.mu.Unlock()
}

// FailIngest makes HTTP ingest answer with status until called with 0.
func (c *Collector) FailIngest(status int) {
	c.mu.Lock()
	c.failStatus = status
	c.mu.Unlock()
}

// Deliveries returns a channel that receives every accepted batch. It
// is buffered; deliveries beyond the buffer are still stored but not
// announced.
func (c *Collector) Deliveries() <-chan Delivery { return c.notify }

// Records returns every accepted record in arrival order.
func (c *Collector) Records() []xr.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var records []xr.Record
	for _, delivery := range c.deliveries {
		records = append(records, delivery.Records...)
	}
	return records
}

// Batches returns every accepted batch.
func (c *Collector) Batches() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Delivery(nil), c.deliveries...)
}

// Grants returns every grant issued, with keys unsealed.
func (c *Collector) Grants() []xr.StreamGrant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]xr.StreamGrant(nil), c.grants...)
}

// Surveys returns every accepted rating.
func (c *Collector) Surveys() []xr.SurveyRating {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]xr.SurveyRating(nil), c.surveys...)
}

// issue creates a session and its plaintext grant.
func (c *Collector) issue(appKey string) xr.StreamGrant {
	grant := xr.StreamGrant{
		SessionID:      uuid.NewString(),
		DataStream:     c.options.StreamName,
		AccessKeyID:    "AK" + randomHex(8),
		SecretKey:      randomHex(20),
		InstanceRegion: c.options.Region,
	}
	s := &session{
		appKey:      appKey,
		accessKeyID: grant.AccessKeyID,
		signingKey:  digest.SigningKey(grant.SecretKey),
	}
	c.mu.Lock()
	c.sessions[grant.SessionID] = s
	c.accessKeys[grant.AccessKeyID] = s
	c.grants = append(c.grants, grant)
	c.mu.Unlock()
	return grant
}

// seal seals the key fields of grant per the configured options.
func (c *Collector) seal(grant xr.StreamGrant) (xr.StreamGrant, error) {
	var sealValue func(string) (string, error)
	switch {
	case len(c.options.SealRecipients) > 0:
		sealValue = func(v string) (string, error) { return sealed.SealAge(v, c.options.SealRecipients...) }
	case len(c.options.SharedSecret) > 0:
		sealValue = func(v string) (string, error) { return sealed.SealShared(v, c.options.SharedSecret) }
	default:
		return grant, nil
	}
	var err error
	if grant.AccessKeyID, err = sealValue(grant.AccessKeyID); err != nil {
		return grant, fmt.Errorf("sealing access key: %w", err)
	}
	if grant.SecretKey, err = sealValue(grant.SecretKey); err != nil {
		return grant, fmt.Errorf("sealing secret key: %w", err)
	}
	return grant, nil
}

// record stores an accepted delivery unless its digest was already
// seen. It reports whether the delivery was new.
func (c *Collector) record(delivery Delivery) bool {
	c.mu.Lock()
	if delivery.Digest != "" && c.seenDigests[delivery.Digest] {
		c.mu.Unlock()
		c.logger.Info("duplicate batch dropped", "digest", delivery.Digest)
		return false
	}
	if delivery.Digest != "" {
		c.seenDigests[delivery.Digest] = true
	}
	c.deliveries = append(c.deliveries, delivery)
	c.mu.Unlock()

	select {
	case c.notify <- delivery:
	default:
	}
	return true
}

func randomHex(n int) string {
	raw := make([]byte, n)
	rand.Read(raw)
	return hex.EncodeToString(raw)
}
