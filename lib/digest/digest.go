// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes the BLAKE3 digests that accompany batches on
// the wire: a content digest the backend uses to drop duplicate
// deliveries, and a keyed signature proving a stream put was made with
// the session's granted secret.
package digest

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 output.
type Digest [32]byte

// String returns the lowercase hex form used in headers and frames.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Parse decodes a 64-character hex digest.
func Parse(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parsing digest: %w", err)
	}
	if len(raw) != len(d) {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(raw), len(d))
	}
	copy(d[:], raw)
	return d, nil
}

// batchKey separates batch digests from any other BLAKE3 use of the
// same bytes. ASCII, zero padded to 32 bytes.
var batchKey = [32]byte{
	's', 'p', 'a', 't', 'i', 'a', 'l', 't', 'r', 'a', 'c', 'e', '.',
	'b', 'a', 't', 'c', 'h',
}

const signingContext = "spatialtrace 2026 stream put signing"

// Batch returns the content digest of an encoded batch. It is computed
// over the uncompressed bytes so retries with a different compression
// still deduplicate.
func Batch(payload []byte) Digest {
	return keyed(batchKey[:], payload)
}

// SigningKey derives the per-session signing key from a granted secret.
func SigningKey(secret string) [32]byte {
	var key [32]byte
	blake3.DeriveKey(signingContext, []byte(secret), key[:])
	return key
}

// Sign binds a payload to the stream and partition it is put into.
func Sign(key [32]byte, streamName, partitionKey string, payload []byte) Digest {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("digest: keyed hasher: " + err.Error())
	}
	// Length-prefix the names so ("ab","c") and ("a","bc") differ.
	fmt.Fprintf(hasher, "%d:%s%d:%s", len(streamName), streamName, len(partitionKey), partitionKey)
	hasher.Write(payload)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}

// Verify reports whether signature matches in constant time.
func Verify(key [32]byte, streamName, partitionKey string, payload []byte, signature Digest) bool {
	expected := Sign(key, streamName, partitionKey, payload)
	return subtle.ConstantTimeCompare(expected[:], signature[:]) == 1
}

func keyed(key, data []byte) Digest {
	hasher, err := blake3.NewKeyed(key)
	if err != nil {
		panic("digest: keyed hasher: " + err.Error())
	}
	hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}
