// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress encodes batch payloads before they leave the
// process. The algorithm name doubles as the HTTP Content-Encoding
// value and the stream frame "encoding" field, so the receiver needs
// no other negotiation.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm names a payload encoding.
type Algorithm string

const (
	// None sends payloads as-is.
	None Algorithm = "none"

	// LZ4 uses the LZ4 frame format. Cheap on the client; used for
	// the stream transport where frames are sent every few seconds.
	LZ4 Algorithm = "lz4"

	// Zstd uses a zstd frame at the default level. JSON batches
	// typically shrink four to six times.
	Zstd Algorithm = "zstd"
)

// Parse validates an algorithm name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case "", None:
		return None, nil
	case LZ4:
		return LZ4, nil
	case Zstd:
		return Zstd, nil
	}
	return "", fmt.Errorf("unknown compression %q (want none, lz4 or zstd)", name)
}

// ContentEncoding returns the HTTP Content-Encoding header value, or
// the empty string for None.
func (a Algorithm) ContentEncoding() string {
	if a == None || a == "" {
		return ""
	}
	return string(a)
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder: " + err.Error())
	}
}

// Encode compresses data with the requested algorithm. When the result
// would not be smaller than the input, Encode returns data unchanged
// and reports None as the algorithm actually applied.
func Encode(data []byte, algorithm Algorithm) ([]byte, Algorithm, error) {
	var encoded []byte
	switch algorithm {
	case "", None:
		return data, None, nil
	case Zstd:
		encoded = zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	case LZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		encoded = buffer.Bytes()
	default:
		return nil, "", fmt.Errorf("unsupported compression %q", algorithm)
	}
	if len(encoded) >= len(data) {
		return data, None, nil
	}
	return encoded, algorithm, nil
}

// Decode reverses Encode. limit caps the decoded size; a payload that
// expands past it is rejected.
func Decode(data []byte, algorithm Algorithm, limit int64) ([]byte, error) {
	var reader io.Reader
	switch algorithm {
	case "", None:
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("payload of %d bytes exceeds limit %d", len(data), limit)
		}
		return data, nil
	case Zstd:
		decoded, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(decoded)) > limit {
			return nil, fmt.Errorf("decoded payload of %d bytes exceeds limit %d", len(decoded), limit)
		}
		return decoded, nil
	case LZ4:
		reader = lz4.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported compression %q", algorithm)
	}
	decoded, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", algorithm, err)
	}
	if int64(len(decoded)) > limit {
		return nil, fmt.Errorf("decoded payload exceeds limit %d", limit)
	}
	return decoded, nil
}
