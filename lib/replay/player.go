// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package replay plays a recorded session trace back as a scene, so the
// poller can be driven without a rendering engine. A [Player] is both
// the scene handle and its geometry adapter: pass the same value as
// the poller's Geometry and as the scene to Start.
package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/clock"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

// Anchor is a reference object in the scene. Poses measured against it
// are offset by its position and rotation and divided by its scale.
type Anchor struct {
	Position xr.Vector3
	Rotation xr.Vector3
	Scale    xr.Vector3
}

// Relative expresses pose in the anchor's frame.
func (a Anchor) Relative(pose xr.Pose) xr.Pose {
	pose.Position = pose.Position.Sub(a.Position).Div(a.Scale)
	pose.Direction = pose.Direction.Sub(a.Rotation)
	return pose
}

// Player replays a trace against a clock. Time zero is the first
// geometry query after construction or Rewind.
type Player struct {
	trace *Trace
	clock clock.Clock
	loop  bool

	mu      sync.Mutex
	started time.Time
}

// NewPlayer returns a Player for trace. With loop set the trace
// restarts after its last frame; otherwise the last frame holds.
func NewPlayer(trace *Trace, clk clock.Clock, loop bool) *Player {
	if clk == nil {
		clk = clock.Real()
	}
	return &Player{trace: trace, clock: clk, loop: loop}
}

// Rewind restarts playback at the next query.
func (p *Player) Rewind() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = time.Time{}
}

// Finished reports whether a non-looping player is past its last frame.
func (p *Player) Finished() bool {
	if p.loop {
		return false
	}
	return p.elapsed() > p.trace.Duration()
}

func (p *Player) elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	if p.started.IsZero() {
		p.started = now
	}
	return now.Sub(p.started)
}

// Current returns the frame in effect now: the last one whose offset
// has passed.
func (p *Player) Current() Frame {
	elapsed := p.elapsed()
	if p.loop {
		if period := p.trace.Duration(); period > 0 {
			elapsed %= period
		}
	}
	frames := p.trace.Frames
	index := sort.Search(len(frames), func(i int) bool {
		return time.Duration(frames[i].At) > elapsed
	})
	return frames[max(index-1, 0)]
}

func (p *Player) check(scene any) error {
	if scene != p {
		return fmt.Errorf("replay: scene is %T, not this player", scene)
	}
	return nil
}

// Position returns the current frame's pose, relative to reference
// when it is an Anchor or *Anchor.
func (p *Player) Position(_ context.Context, scene, reference any) (*xr.Pose, error) {
	if err := p.check(scene); err != nil {
		return nil, err
	}
	frame := p.Current()
	pose := xr.Pose{Position: frame.Position, Direction: frame.Direction, Extra: frame.Extra}
	switch anchor := reference.(type) {
	case nil:
	case Anchor:
		pose = anchor.Relative(pose)
	case *Anchor:
		if anchor != nil {
			pose = anchor.Relative(pose)
		}
	default:
		return nil, fmt.Errorf("replay: reference is %T, want replay.Anchor", reference)
	}
	return &pose, nil
}

// Camera returns the current frame's camera.
func (p *Player) Camera(_ context.Context, scene any) (*xr.Camera, error) {
	if err := p.check(scene); err != nil {
		return nil, err
	}
	return p.Current().Camera, nil
}

// Animations returns the current frame's animations.
func (p *Player) Animations() []xr.Animation {
	return p.Current().Animations
}
