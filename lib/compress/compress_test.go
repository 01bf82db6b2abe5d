// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	payload := []byte(strings.Repeat(`{"eventType":"event.user.position","data":{"position":{"x":0,"y":1.6,"z":0}}},`, 40))

	for _, algorithm := range []Algorithm{None, LZ4, Zstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			encoded, applied, err := Encode(payload, algorithm)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if applied != algorithm {
				t.Fatalf("applied = %q, want %q", applied, algorithm)
			}
			if algorithm != None && len(encoded) >= len(payload) {
				t.Errorf("encoded %d bytes from %d", len(encoded), len(payload))
			}
			decoded, err := Decode(encoded, applied, 1<<20)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(decoded, payload) {
				t.Error("decoded payload differs")
			}
		})
	}
}

func TestEncodeFallsBackForTinyPayloads(t *testing.T) {
	encoded, applied, err := Encode([]byte("{}"), Zstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if applied != None || string(encoded) != "{}" {
		t.Errorf("Encode = %q, %q; want passthrough", encoded, applied)
	}
}

func TestDecodeLimit(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 4096)
	encoded, applied, err := Encode(payload, Zstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Decode(encoded, applied, 1024); err == nil {
		t.Error("Decode past limit succeeded")
	}
}

func TestParse(t *testing.T) {
	for name, want := range map[string]Algorithm{"": None, "none": None, "lz4": LZ4, "zstd": Zstd} {
		got, err := Parse(name)
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := Parse("gzip"); err == nil {
		t.Error("Parse(gzip) succeeded")
	}
	if Zstd.ContentEncoding() != "zstd" || None.ContentEncoding() != "" {
		t.Error("ContentEncoding mismatch")
	}
}
