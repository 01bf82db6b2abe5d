// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"testing"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/clock"
)

func TestFPSCounterWindow(t *testing.T) {
	clk := clock.Fake(epoch)
	frames := &stubFrames{}
	counter := newFPSCounter(clk, frames)
	counter.start()

	for range 60 {
		clk.Advance(time.Second / 60)
		frames.frame()
	}
	if got := counter.current(); got != 0 {
		t.Fatalf("fps before the window closed = %d", got)
	}
	clk.Advance(time.Second / 60)
	frames.frame()
	if got := counter.current(); got != 60 {
		t.Errorf("fps = %d, want 60", got)
	}

	counter.stop()
	if frames.running() {
		t.Error("frame source not stopped")
	}
	// The last measurement stays until a new window completes.
	if got := counter.current(); got != 60 {
		t.Errorf("fps after stop = %d", got)
	}
}

func TestFPSCounterStartIsIdempotent(t *testing.T) {
	frames := &stubFrames{}
	counter := newFPSCounter(clock.Fake(epoch), frames)
	counter.start()
	counter.start()
	if frames.starts != 1 {
		t.Errorf("frame source started %d times", frames.starts)
	}
}

func TestClockFrames(t *testing.T) {
	clk := clock.Fake(epoch)
	count := 0
	stop := ClockFrames(clk, 60).Frames(func() { count++ })
	clk.Advance(time.Second)
	if count != 60 {
		t.Errorf("frames in one second = %d, want 60", count)
	}
	stop()
	clk.Advance(time.Second)
	if count != 60 {
		t.Errorf("frames after stop = %d", count)
	}
	if clk.Pending() != 0 {
		t.Errorf("%d timers left after stop", clk.Pending())
	}
}

func TestManualVisibility(t *testing.T) {
	var visibility ManualVisibility
	var seen []bool
	cancel := visibility.Subscribe(func(hidden bool) { seen = append(seen, hidden) })

	visibility.Set(false) // already visible
	visibility.Set(true)
	visibility.Set(true)
	visibility.Set(false)
	cancel()
	visibility.Set(true)

	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Errorf("notifications = %v, want [true false]", seen)
	}
	if !visibility.Hidden() {
		t.Error("Hidden() does not reflect the last Set")
	}
}
