// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the agent's canonical binary encoding.
//
// Two consumers depend on the encoding being deterministic: the change
// detector compares samples by their encoded bytes, and the survey log
// is rewritten in place and must not churn when nothing changed. Both
// use Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// shortest-form numbers, definite lengths.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: building CBOR encoder: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Payload fields decode into the same shape encoding/json
		// produces so decoded values can be re-sent on the wire.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: building CBOR decoder: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
