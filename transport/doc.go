// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport delivers batches of telemetry records to the
// analytics backend.
//
// A session's delivery channel is opened once per session from the
// [xr.StreamGrant] the backend issued at session start ([Opener]) and
// then used by the poller for every batch until the session ends
// ([Sender]). Two implementations exist:
//
//   - [HTTPOpener] posts each batch as {appkey, apiver, items} to the
//     ingest endpoint.
//   - [StreamOpener] holds a websocket to a managed data stream and
//     puts each batch as one signed record, partitioned by session id.
//
// Both report credential rejection as [ErrInvalidToken] so the poller
// can tell a transient auth failure (back off, keep the queue) from a
// fatal one (stop sampling). [IsAuthError] is the classifier.
package transport
