// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package xr defines the telemetry records the agent produces and the
// JSON wire shapes the analytics backend accepts.
//
// A [Record] is one sample of a user's session: a pose snapshot
// ([Record.Data]) plus, depending on [EventType], the camera projection
// or a discrete [UserEvent]. Records travel to the backend in a [Batch]
// of at most twenty. Field names in the JSON encoding are part of the
// backend contract and must not change; note the lowercase "apiver" and
// "appkey" keys.
package xr
