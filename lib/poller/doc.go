// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller samples a 3D scene on a fixed cadence and ships the
// samples to the analytics backend in batches.
//
// A [Poller] owns one session at a time and moves between three
// states:
//
//   - idle: no session id. Start requests a stream grant, opens a
//     transport and emits a session start record.
//   - active: the sampling loop ticks every poll interval, appending a
//     position record (or a session update when the camera changed)
//     and delivering the queue in background batches of at most
//     [xr.MaxBatchRecords] when it fills up or when the last delivery
//     is 20 seconds old.
//   - suspended: the loop is stopped and the queue drained, but the
//     session id is kept. Resume continues the session if the backend
//     can still be assumed to hold it (the keepalive window, five
//     minutes since the last delivery) and otherwise ends it and
//     starts a new one against the same scene.
//
// Visibility changes suspend and resume the poller. A loop that sees
// neither pose nor camera change for the inactivity interval ends the
// session by itself and notifies inactivity listeners.
//
// Scene access goes through a [Geometry] adapter, so the poller is
// independent of the rendering engine. Delivery goes through a
// [transport.Opener]; authentication rejections are retried after a
// short backoff, any other delivery failure stops the loop but keeps
// the buffered records for the next Pause or End.
//
// All state transitions are serialized. Host calls block until the
// transition (including any final drain) has finished. Background
// deliveries run on their own goroutine and never overlap a drain.
package poller
