// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
)

// HTTPOpener opens senders that post batches to the ingest endpoint.
type HTTPOpener struct {
	Client      *xrapi.Client
	AppKey      string
	Compression compress.Algorithm
}

// Open returns a Sender bound to the grant's session. No connection is
// held between batches.
func (o *HTTPOpener) Open(_ context.Context, grant xr.StreamGrant) (Sender, error) {
	if o.Client == nil {
		return nil, errors.New("http transport has no client")
	}
	return &httpSender{opener: o, sessionID: grant.SessionID}, nil
}

type httpSender struct {
	opener    *HTTPOpener
	sessionID string

	mu     sync.Mutex
	closed bool
}

func (s *httpSender) Send(ctx context.Context, records []xr.Record) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	batch := xr.Batch{AppKey: s.opener.AppKey, APIVersion: xr.APIVersion, Items: records}
	err := s.opener.Client.SendBatch(ctx, batch, s.opener.Compression)
	var status *xrapi.StatusError
	if errors.As(err, &status) && status.Unauthorized() {
		return rejected(status.Message)
	}
	if err != nil {
		return fmt.Errorf("sending batch for session %s: %w", s.sessionID, err)
	}
	return nil
}

func (s *httpSender) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
