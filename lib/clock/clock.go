// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the telemetry agent.
//
// The session poller never calls the time package directly: sampling
// ticks, the frame counter, the survey delay and the auth backoff are
// all scheduled through a Clock. Production code uses Real(). Tests use
// Fake(), whose Advance fires due callbacks synchronously in deadline
// order, so a whole session can be played through without sleeping.
package clock

import "time"

// Clock schedules work against a time source.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed and returns a handle that
	// cancels the call. Callers that hold a lock f also takes must
	// pass a positive d: a fake clock runs f inline when d <= 0.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable handle for a scheduled callback.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending callback. It reports whether the call was
// cancelled before it fired. Stop on a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	return &Timer{stop: time.AfterFunc(d, f).Stop}
}
