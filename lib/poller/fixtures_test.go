// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/clock"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/survey"
	"github.com/spatialtrace/spatialtrace/transport"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type scene struct{ name string }

// fakeGeometry serves whatever pose, camera and animations the test
// last set.
type fakeGeometry struct {
	mu         sync.Mutex
	pose       *xr.Pose
	camera     *xr.Camera
	animations []xr.Animation
	references []any

	// gate, when set, holds the next Position call until closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeGeometry() *fakeGeometry {
	return &fakeGeometry{
		pose:   &xr.Pose{Position: xr.Vector3{X: 1, Y: 1.6, Z: 3}, Direction: xr.Vector3{Z: -1}},
		camera: &xr.Camera{FieldOfView: 75, AspectRatio: 16.0 / 9, ZNearPlane: 0.1, ZFarPlane: 1000},
	}
}

func (g *fakeGeometry) Position(_ context.Context, _, reference any) (*xr.Pose, error) {
	g.mu.Lock()
	gate, entered := g.gate, g.entered
	g.gate, g.entered = nil, nil
	g.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.references = append(g.references, reference)
	if g.pose == nil {
		return nil, nil
	}
	pose := *g.pose
	return &pose, nil
}

func (g *fakeGeometry) Camera(context.Context, any) (*xr.Camera, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.camera == nil {
		return nil, nil
	}
	camera := *g.camera
	return &camera, nil
}

func (g *fakeGeometry) Animations() []xr.Animation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.animations)
}

// holdPosition makes the next Position call block until release is
// closed. The returned channel closes once that call has started.
func (g *fakeGeometry) holdPosition(release chan struct{}) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gate = release
	g.entered = make(chan struct{})
	return g.entered
}

func (g *fakeGeometry) setPose(pose *xr.Pose) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pose = pose
}

func (g *fakeGeometry) setFieldOfView(fov float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	camera := *g.camera
	camera.FieldOfView = fov
	g.camera = &camera
}

func (g *fakeGeometry) setAnimations(animations ...xr.Animation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.animations = animations
}

// fakeCredentials issues session-1, session-2, ... and remembers the
// prior session id of each request.
type fakeCredentials struct {
	mu     sync.Mutex
	priors []string
}

func (c *fakeCredentials) RequestStream(_ context.Context, appKey, prior string) (xr.StreamGrant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.priors = append(c.priors, prior)
	return xr.StreamGrant{
		SessionID:   fmt.Sprintf("session-%d", len(c.priors)),
		DataStream:  "stream-" + appKey,
		AccessKeyID: "key",
		SecretKey:   "secret",
	}, nil
}

func (c *fakeCredentials) requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.priors)
}

// fakeSender records every attempted batch. Queued failures are
// returned by the following attempts, one each.
type fakeSender struct {
	mu       sync.Mutex
	attempts [][]xr.Record
	sent     [][]xr.Record
	failures []error
	closed   bool

	gate    chan struct{}
	entered chan struct{}
}

func (s *fakeSender) Send(_ context.Context, records []xr.Record) error {
	s.mu.Lock()
	gate, entered := s.gate, s.entered
	s.gate, s.entered = nil, nil
	s.mu.Unlock()
	if gate != nil {
		close(entered)
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	s.attempts = append(s.attempts, slices.Clone(records))
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return err
	}
	s.sent = append(s.sent, slices.Clone(records))
	return nil
}

func (s *fakeSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// hold makes the next Send block until release is closed. The
// returned channel closes once that Send has started.
func (s *fakeSender) hold(release chan struct{}) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = release
	s.entered = make(chan struct{})
	return s.entered
}

func (s *fakeSender) fail(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *fakeSender) attemptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.attempts)
}

func (s *fakeSender) attempt(i int) []xr.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[i]
}

func (s *fakeSender) delivered() []xr.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []xr.Record
	for _, batch := range s.sent {
		all = append(all, batch...)
	}
	return all
}

func (s *fakeSender) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	mu       sync.Mutex
	senders  []*fakeSender
	grants   []xr.StreamGrant
	failures []error
}

func (o *fakeOpener) Open(_ context.Context, grant xr.StreamGrant) (transport.Sender, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sender := &fakeSender{failures: o.failures}
	o.failures = nil
	o.senders = append(o.senders, sender)
	o.grants = append(o.grants, grant)
	return sender, nil
}

// failNextSender makes the next opened sender fail its first attempts.
func (o *fakeOpener) failNextSender(errs ...error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = errs
}

func (o *fakeOpener) sender(i int) *fakeSender {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.senders[i]
}

func (o *fakeOpener) current() *fakeSender {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.senders[len(o.senders)-1]
}

// stubFrames hands the frame callback to the test instead of driving
// it from a timer.
type stubFrames struct {
	mu      sync.Mutex
	onFrame func()
	starts  int
}

func (f *stubFrames) Frames(onFrame func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFrame = onFrame
	f.starts++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.onFrame = nil
	}
}

func (f *stubFrames) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onFrame != nil
}

func (f *stubFrames) frame() {
	f.mu.Lock()
	onFrame := f.onFrame
	f.mu.Unlock()
	if onFrame != nil {
		onFrame()
	}
}

type recordingPrompt struct {
	mu       sync.Mutex
	requests []survey.Request
}

func (r *recordingPrompt) Show(req survey.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recordingPrompt) shown() []survey.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.requests)
}

type staticEnvironment xr.UserMetadata

func (e staticEnvironment) Metadata() xr.UserMetadata { return xr.UserMetadata(e) }

type fixture struct {
	poller      *Poller
	clock       *clock.FakeClock
	geometry    *fakeGeometry
	credentials *fakeCredentials
	opener      *fakeOpener
	frames      *stubFrames
	visibility  *ManualVisibility
	prompt      *recordingPrompt
	scene       *scene
}

// newFixture builds a poller over fakes. The survey is off unless the
// options turn it on, so the fake clock only carries the loop's timer.
func newFixture(t *testing.T, options Options) *fixture {
	t.Helper()
	f := &fixture{
		clock:       clock.Fake(epoch),
		geometry:    newFakeGeometry(),
		credentials: &fakeCredentials{},
		opener:      &fakeOpener{},
		frames:      &stubFrames{},
		visibility:  &ManualVisibility{},
		prompt:      &recordingPrompt{},
		scene:       &scene{name: "lobby"},
	}
	poller, err := New("app-key", Dependencies{
		Geometry:    f.geometry,
		Credentials: f.credentials,
		Transport:   f.opener,
		Survey:      f.prompt,
		Visibility:  f.visibility,
		Frames:      f.frames,
		Clock:       f.clock,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.poller = poller
	return f
}

// start opens a session and waits for the immediate first delivery of
// the session start record.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.poller.Start(context.Background(), f.scene, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.poller.awaitDelivery()
}

// advance moves the clock and waits for any delivery the ticks started.
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.poller.awaitDelivery()
}

func (p *Poller) queued() []xr.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}

func eventTypes(records []xr.Record) []xr.EventType {
	types := make([]xr.EventType, len(records))
	for i, record := range records {
		types[i] = record.EventType
	}
	return types
}

func countEvents(records []xr.Record, eventType xr.EventType) int {
	n := 0
	for _, record := range records {
		if record.EventType == eventType {
			n++
		}
	}
	return n
}
