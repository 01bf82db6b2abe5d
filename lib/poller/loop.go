// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"maps"

	"github.com/spatialtrace/spatialtrace/lib/change"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

// schedule arms the next tick, replacing any pending one, provided the
// loop is still at generation. It reports false when the loop was
// stopped in the meantime.
func (p *Poller) schedule(generation uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if generation != p.tickGeneration {
		return false
	}
	p.nextTick.Stop()
	p.tickGeneration++
	generation = p.tickGeneration
	p.nextTick = p.clock.AfterFunc(p.pollInterval, func() {
		p.runTick(generation)
	})
	return true
}

// loopGeneration returns the current loop generation.
func (p *Poller) loopGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tickGeneration
}

// stopLoop cancels the pending tick. A tick already waiting for the op
// lock sees the new generation and returns without doing anything.
func (p *Poller) stopLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextTick.Stop()
	p.nextTick = nil
	p.tickGeneration++
}

func (p *Poller) runTick(generation uint64) {
	p.op.Lock()
	p.mu.Lock()
	current := generation == p.tickGeneration
	p.mu.Unlock()
	var listeners []func()
	if current {
		listeners = p.tick(p.baseContext, false, generation)
	}
	p.op.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

// tick is one pass of the sampling loop started at loop generation.
// The initial tick of a session skips the sample, since session start
// already carries one. It returns the inactivity listeners to notify
// once the op lock is released.
func (p *Poller) tick(ctx context.Context, initial bool, generation uint64) []func() {
	s := &p.session
	now := p.clock.Now()

	if now.Sub(s.lastChanged) > p.inactivityInterval {
		camera, err := p.geometry.Camera(ctx, s.scene)
		if err != nil {
			p.logger.Warn("reading camera failed", "session_id", s.id, "error", err)
		}
		pose, err := p.geometry.Position(ctx, s.scene, s.reference)
		if err != nil {
			p.logger.Warn("reading pose failed", "session_id", s.id, "error", err)
		}

		if err == nil && s.pose.Matches(pose) && change.Equal(camera, s.camera) {
			return p.inactive(ctx)
		}
		s.lastChanged = now
		if err := p.resumeLocked(ctx); err != nil {
			p.logger.Warn("resuming after late movement failed", "session_id", s.id, "error", err)
		}
		return nil
	}

	if !initial {
		p.sample(ctx)
	}
	// A delivery that failed while this tick was sampling has stopped
	// the loop. Arming before delivering lets this tick's own delivery
	// stop it too.
	if !p.schedule(generation) {
		return nil
	}
	p.deliverIfDue()
	return nil
}

// inactive ends the session after a quiet inactivity interval. The loop
// is not rescheduled; the scene stays attached so a later Resume starts
// a new session.
func (p *Poller) inactive(ctx context.Context) []func() {
	s := &p.session
	if s.id == "" {
		return nil
	}
	p.logger.Info("no movement within inactivity interval, ending session",
		"session_id", s.id, "inactivity_interval", p.inactivityInterval)

	if err := p.appendRecord(ctx, xr.EventSessionEnd, nil, nil); err != nil {
		p.logger.Warn("recording session end failed", "session_id", s.id, "error", err)
	}
	if err := p.pauseLocked(ctx); err != nil {
		p.logger.Warn("delivery after inactivity failed", "session_id", s.id, "error", err)
	}
	s.previousID = s.id
	s.id = ""

	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]func(){}, p.listeners...)
}

// sample appends a session update if the camera changed since it was
// last sent, and a user position record otherwise.
func (p *Poller) sample(ctx context.Context) {
	s := &p.session
	camera, err := p.geometry.Camera(ctx, s.scene)
	if err != nil {
		p.logger.Warn("reading camera failed", "session_id", s.id, "error", err)
		camera = nil
	}

	if camera == nil || change.Equal(camera, s.camera) {
		err = p.appendRecord(ctx, xr.EventUserPosition, nil, nil)
	} else {
		err = p.appendRecord(ctx, xr.EventSessionUpdate, camera, nil)
		s.camera = camera
		s.lastChanged = p.clock.Now()
	}
	if err != nil {
		p.logger.Warn("recording sample failed", "session_id", s.id, "error", err)
	}
}

// appendRecord builds a record of eventType from a fresh pose and
// queues it. Without a session it does nothing.
func (p *Poller) appendRecord(ctx context.Context, eventType xr.EventType, camera *xr.Camera, userEvent *xr.UserEvent) error {
	s := &p.session
	if s.id == "" {
		return nil
	}
	if !eventType.Known() {
		return fmt.Errorf("%w: %q", xr.ErrUnknownEventType, eventType)
	}

	pose, err := p.geometry.Position(ctx, s.scene, s.reference)
	if err != nil {
		return fmt.Errorf("reading pose: %w", err)
	}
	if pose == nil {
		return xr.ErrDataRequired
	}
	now := p.clock.Now()
	if s.pose.Observe(pose) {
		s.lastChanged = now
	}

	data := maps.Clone(s.custom)
	if data == nil {
		data = make(map[string]any)
	}
	maps.Copy(data, pose.Fields())

	record := xr.Record{
		APIVersion: xr.APIVersion,
		SessionID:  s.id,
		Timestamp:  now.UnixMilli(),
		EventType:  eventType,
		Data:       data,
		Animations: p.changedAnimations(),
		UserMeta:   p.userMetadata(),
	}
	if fps := p.fps.current(); fps > 0 {
		record.Metrics = &xr.Metrics{FPS: fps}
	}

	switch eventType {
	case xr.EventSessionStart, xr.EventSessionUpdate, xr.EventSessionEnd:
		record.Camera = camera
	case xr.EventUserInteraction:
		if userEvent == nil {
			return fmt.Errorf("interaction record without a user event")
		}
		record.UserEvent = userEvent
	}

	p.mu.Lock()
	p.queue = append(p.queue, record)
	p.mu.Unlock()
	return nil
}

// changedAnimations returns the animations that are new or differ from
// their last observed state. Every animation is remembered, emitted or
// not.
func (p *Poller) changedAnimations() []xr.Animation {
	s := &p.session
	if s.animations == nil {
		s.animations = make(map[string]xr.Animation)
	}
	changed := []xr.Animation{}
	for _, animation := range p.geometry.Animations() {
		previous, seen := s.animations[animation.Name]
		if !seen || !change.Equal(previous, animation) {
			changed = append(changed, animation)
		}
		s.animations[animation.Name] = animation
	}
	return changed
}

// userMetadata merges the host's metadata with the environment's; the
// environment wins where both are set.
func (p *Poller) userMetadata() xr.UserMetadata {
	meta := p.session.userMeta
	if p.environment != nil {
		meta = meta.Merge(p.environment.Metadata())
	}
	return meta
}
