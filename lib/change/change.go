// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package change decides whether a scene sample differs from the last
// one seen. Samples are compared structurally by their canonical
// encoding, so maps compare equal regardless of insertion order and
// nil compares equal only to nil.
package change

import (
	"bytes"

	"github.com/spatialtrace/spatialtrace/lib/codec"
)

// Equal reports whether a and b are structurally equal. Values that
// cannot be encoded are never equal.
func Equal(a, b any) bool {
	left, err := codec.Marshal(a)
	if err != nil {
		return false
	}
	right, err := codec.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// Tracker remembers the encoding of the last observed value.
// The zero value has observed nothing.
type Tracker struct {
	last []byte
	seen bool
}

// Observe records v and reports whether it differs from the previous
// observation. The first observation is always a change.
func (t *Tracker) Observe(v any) bool {
	encoded, err := codec.Marshal(v)
	if err != nil {
		t.seen = false
		t.last = nil
		return true
	}
	changed := !t.seen || !bytes.Equal(encoded, t.last)
	t.last = encoded
	t.seen = true
	return changed
}

// Matches reports whether v equals the last observation without
// recording it.
func (t *Tracker) Matches(v any) bool {
	if !t.seen {
		return false
	}
	encoded, err := codec.Marshal(v)
	if err != nil {
		return false
	}
	return bytes.Equal(encoded, t.last)
}

// Reset forgets the last observation.
func (t *Tracker) Reset() {
	t.last = nil
	t.seen = false
}
