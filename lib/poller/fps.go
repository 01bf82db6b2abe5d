// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"math"
	"sync"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/clock"
)

const fpsWindow = time.Second

// FrameSource calls onFrame once per displayed frame until the returned
// stop function is called.
type FrameSource interface {
	Frames(onFrame func()) (stop func())
}

// FrameFunc adapts a function to FrameSource.
type FrameFunc func(onFrame func()) (stop func())

func (f FrameFunc) Frames(onFrame func()) func() { return f(onFrame) }

// ClockFrames emits rate frames per second from clk. It stands in for a
// display refresh callback when the host has none.
func ClockFrames(clk clock.Clock, rate int) FrameSource {
	period := time.Second / time.Duration(max(rate, 1))
	return FrameFunc(func(onFrame func()) func() {
		var (
			mu      sync.Mutex
			stopped bool
			timer   *clock.Timer
			arm     func()
		)
		arm = func() {
			mu.Lock()
			defer mu.Unlock()
			if stopped {
				return
			}
			timer = clk.AfterFunc(period, func() {
				onFrame()
				arm()
			})
		}
		arm()
		return func() {
			mu.Lock()
			defer mu.Unlock()
			stopped = true
			timer.Stop()
		}
	})
}

// fpsCounter measures frames per second over one-second windows.
type fpsCounter struct {
	clock  clock.Clock
	source FrameSource

	mu          sync.Mutex
	frames      int
	windowStart time.Time
	fps         int
	stopSource  func()
}

func newFPSCounter(clk clock.Clock, source FrameSource) *fpsCounter {
	return &fpsCounter{clock: clk, source: source}
}

func (c *fpsCounter) start() {
	c.mu.Lock()
	if c.stopSource != nil {
		c.mu.Unlock()
		return
	}
	c.frames = 0
	c.windowStart = c.clock.Now()
	c.mu.Unlock()

	stop := c.source.Frames(c.frame)

	c.mu.Lock()
	c.stopSource = stop
	c.mu.Unlock()
}

func (c *fpsCounter) stop() {
	c.mu.Lock()
	stop := c.stopSource
	c.stopSource = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *fpsCounter) frame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	now := c.clock.Now()
	elapsed := now.Sub(c.windowStart)
	if elapsed < fpsWindow {
		return
	}
	c.fps = int(math.Round(float64(c.frames) * 1000 / float64(elapsed.Milliseconds())))
	c.frames = 0
	c.windowStart = now
}

// current is the rate of the last complete window, 0 before the first.
func (c *fpsCounter) current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}
