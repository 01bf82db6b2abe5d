// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "github.com/spatialtrace/spatialtrace/lib/compress"

// Handshake headers on the stream websocket upgrade request.
const (
	HeaderStreamName  = "X-Stream-Name"
	HeaderRegion      = "X-Stream-Region"
	HeaderAccessKeyID = "X-Access-Key-Id"
)

// Stream error codes carried in AckFrame.ErrorCode.
const (
	ErrorCodeUnrecognizedClient = "UnrecognizedClientException"
	ErrorCodeInvalidSignature   = "InvalidSignatureException"
	ErrorCodeThroughput         = "ProvisionedThroughputExceededException"
)

// PutFrame puts one record on a data stream. Data is the encoded JSON
// array of the batch's records.
type PutFrame struct {
	Sequence     uint64             `json:"seq"`
	StreamName   string             `json:"streamName"`
	PartitionKey string             `json:"partitionKey"`
	Encoding     compress.Algorithm `json:"encoding"`
	Data         []byte             `json:"data"`
	Digest       string             `json:"digest"`
	Signature    string             `json:"signature"`
}

// AckFrame answers a PutFrame with the same Sequence. A non-empty
// ErrorCode means the put was rejected.
type AckFrame struct {
	Sequence       uint64 `json:"seq"`
	ShardID        string `json:"shardId,omitempty"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	ErrorCode      string `json:"errorCode,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// authRejection reports whether an ack error code means the session's
// credentials are not accepted.
func authRejection(code string) bool {
	return code == ErrorCodeUnrecognizedClient || code == ErrorCodeInvalidSignature
}
