// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

// InvalidTokenMessage is the message a data stream returns when the
// session's credentials were rejected.
const InvalidTokenMessage = "The security token included in the request is invalid."

// ErrInvalidToken is returned by a Sender whose credentials were
// rejected. Wrapped errors keep the backend's message.
var ErrInvalidToken = errors.New(InvalidTokenMessage)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Sender delivers batches for one session. The poller never calls Send
// concurrently on the same Sender.
type Sender interface {
	// Send delivers records as one batch. The batch is either
	// accepted as a whole or not at all.
	Send(ctx context.Context, records []xr.Record) error

	// Close releases the channel. It is safe to call more than once.
	Close() error
}

// Opener creates the Sender for a newly granted session.
type Opener interface {
	Open(ctx context.Context, grant xr.StreamGrant) (Sender, error)
}

// IsAuthError reports whether err is a credential rejection. Errors
// that lost their chain (for example re-wrapped with %v by a host
// adapter) are recognized by the backend's message text.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidToken) {
		return true
	}
	return strings.Contains(err.Error(), InvalidTokenMessage)
}

type authError struct {
	detail string
}

func (e *authError) Error() string {
	if e.detail == "" || e.detail == InvalidTokenMessage {
		return InvalidTokenMessage
	}
	return InvalidTokenMessage + " (" + e.detail + ")"
}

func (e *authError) Unwrap() error { return ErrInvalidToken }

// rejected wraps a backend rejection detail as an auth error.
func rejected(detail string) error {
	return &authError{detail: detail}
}
