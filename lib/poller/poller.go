// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
	"sync"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/change"
	"github.com/spatialtrace/spatialtrace/lib/clock"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/survey"
	"github.com/spatialtrace/spatialtrace/transport"
)

const (
	// DefaultPollInterval is used when Options.PollInterval is zero.
	DefaultPollInterval = 500 * time.Millisecond

	// MinPollInterval and MaxPollInterval bound the sampling cadence.
	MinPollInterval = 100 * time.Millisecond
	MaxPollInterval = 1000 * time.Millisecond

	// DefaultInactivityInterval is used when
	// Options.InactivityInterval is zero.
	DefaultInactivityInterval = 120 * time.Second

	// MaxDeliveryInterval forces a delivery once the last one is this
	// old, however short the queue.
	MaxDeliveryInterval = 20 * time.Second

	// KeepaliveWindow is how long after the last delivery the backend
	// keeps a session open.
	KeepaliveWindow = 300 * time.Second

	authBackoff     = 2 * time.Second
	surveyMinDelay  = 30 * time.Second
	surveyMaxSpread = 150 * time.Second
)

// ErrSessionActive is returned by Start while a session is running.
var ErrSessionActive = errors.New("session already active")

// Geometry extracts telemetry from a scene. Scene and reference are
// opaque engine handles.
type Geometry interface {
	// Position returns the pose of the viewer in scene, relative to
	// reference when one is set. A nil pose means no data is
	// available yet.
	Position(ctx context.Context, scene, reference any) (*xr.Pose, error)

	// Camera describes the active camera, or returns nil when there is
	// none.
	Camera(ctx context.Context, scene any) (*xr.Camera, error)

	// Animations lists the animations currently playing. It must not
	// block.
	Animations() []xr.Animation
}

// Credentials issues stream grants. priorSessionID is empty for a
// fresh session and names the expiring session on rollover.
type Credentials interface {
	RequestStream(ctx context.Context, appKey, priorSessionID string) (xr.StreamGrant, error)
}

// Environment supplies client metadata for every record.
type Environment interface {
	Metadata() xr.UserMetadata
}

// Options is the configuration surface of a Poller.
type Options struct {
	PollInterval       time.Duration
	InactivityInterval time.Duration
	UserMeta           xr.UserMetadata
	ShowSurvey         bool
	SurveyTheme        survey.Theme
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PollInterval:       DefaultPollInterval,
		InactivityInterval: DefaultInactivityInterval,
		ShowSurvey:         true,
		SurveyTheme:        survey.Light,
	}
}

// Dependencies are the collaborators of a Poller. Geometry,
// Credentials and Transport are required.
type Dependencies struct {
	Geometry    Geometry
	Credentials Credentials
	Transport   transport.Opener

	// Survey shows the rating prompt. Nil disables the survey.
	Survey survey.Prompt

	// Environment adds device and page metadata to records.
	Environment Environment

	// Visibility suspends the poller while the experience is hidden.
	Visibility Visibility

	// Frames drives the FPS counter. Defaults to 60 frames per second
	// derived from Clock.
	Frames FrameSource

	Clock  clock.Clock
	Logger *slog.Logger

	// Context bounds network calls made by the sampling loop and by
	// visibility changes. Defaults to context.Background.
	Context context.Context
}

// ClampPollInterval applies the default and the allowed range to a
// poll interval.
func ClampPollInterval(interval time.Duration) time.Duration {
	switch {
	case interval == 0:
		return DefaultPollInterval
	case interval < MinPollInterval:
		return MinPollInterval
	case interval > MaxPollInterval:
		return MaxPollInterval
	}
	return interval
}

// Poller runs telemetry sessions for one application.
type Poller struct {
	appKey      string
	geometry    Geometry
	credentials Credentials
	opener      transport.Opener
	prompt      survey.Prompt
	environment Environment
	visibility  Visibility
	clock       clock.Clock
	logger      *slog.Logger
	baseContext context.Context
	fps         *fpsCounter

	inactivityInterval time.Duration
	surveyDelay        time.Duration
	showSurvey         bool
	surveyTheme        survey.Theme

	// op serializes state transitions and record construction.
	op      sync.Mutex
	session sessionState

	// mu guards delivery state shared with background deliveries.
	mu             sync.Mutex
	queue          []xr.Record
	sender         transport.Sender
	inFlight       bool
	deliveryDone   chan struct{}
	interrupt      chan struct{}
	lastDelivery   time.Time
	pollInterval   time.Duration
	nextTick       *clock.Timer
	tickGeneration uint64
	listeners      []func()
}

// sessionState is everything one session accumulates. It is reset by
// End, guarded by Poller.op.
type sessionState struct {
	id         string
	previousID string
	scene      any
	reference  any

	lastChanged time.Time
	pose        change.Tracker
	camera      *xr.Camera
	animations  map[string]xr.Animation
	custom      map[string]any
	userMeta    xr.UserMetadata

	unsubscribe func()
	surveyTimer *clock.Timer
}

// New returns an idle Poller for appKey.
func New(appKey string, deps Dependencies, options Options) (*Poller, error) {
	if appKey == "" {
		return nil, errors.New("poller: app key is required")
	}
	if deps.Geometry == nil {
		return nil, errors.New("poller: geometry adapter is required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("poller: credential service is required")
	}
	if deps.Transport == nil {
		return nil, errors.New("poller: transport is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Frames == nil {
		deps.Frames = ClockFrames(deps.Clock, 60)
	}
	if options.InactivityInterval <= 0 {
		options.InactivityInterval = DefaultInactivityInterval
	}
	if options.SurveyTheme == "" {
		options.SurveyTheme = survey.Light
	}

	return &Poller{
		appKey:             appKey,
		geometry:           deps.Geometry,
		credentials:        deps.Credentials,
		opener:             deps.Transport,
		prompt:             deps.Survey,
		environment:        deps.Environment,
		visibility:         deps.Visibility,
		clock:              deps.Clock,
		logger:             deps.Logger.With("component", "poller", "app_key", appKey),
		baseContext:        deps.Context,
		fps:                newFPSCounter(deps.Clock, deps.Frames),
		inactivityInterval: options.InactivityInterval,
		surveyDelay:        surveyMinDelay + time.Duration(rand.Float64()*float64(surveyMaxSpread)),
		showSurvey:         options.ShowSurvey,
		surveyTheme:        options.SurveyTheme,
		pollInterval:       ClampPollInterval(options.PollInterval),
		session: sessionState{
			custom:   make(map[string]any),
			userMeta: options.UserMeta,
		},
	}, nil
}

// Start opens a session on scene. reference, when non-nil, is the
// object positions are measured against. A nil scene is logged and
// ignored.
func (p *Poller) Start(ctx context.Context, scene, reference any) error {
	if isNil(scene) {
		p.logger.Warn("start called without a scene, no session created")
		return nil
	}
	p.op.Lock()
	defer p.op.Unlock()
	if p.session.id != "" {
		return ErrSessionActive
	}
	return p.startLocked(ctx, scene, reference, p.session.previousID)
}

func (p *Poller) startLocked(ctx context.Context, scene, reference any, priorSessionID string) error {
	grant, err := p.credentials.RequestStream(ctx, p.appKey, priorSessionID)
	if err != nil {
		return fmt.Errorf("requesting data stream: %w", err)
	}
	if grant.SessionID == "" {
		return errors.New("requesting data stream: grant has no session id")
	}
	sender, err := p.opener.Open(ctx, grant)
	if err != nil {
		return fmt.Errorf("opening transport for session %s: %w", grant.SessionID, err)
	}

	p.mu.Lock()
	p.sender = sender
	p.mu.Unlock()

	s := &p.session
	s.id = grant.SessionID
	s.previousID = ""
	s.scene = scene
	s.reference = reference
	s.lastChanged = p.clock.Now()
	s.pose.Reset()
	s.animations = make(map[string]xr.Animation)

	camera, err := p.geometry.Camera(ctx, scene)
	if err != nil {
		p.logger.Warn("reading camera for session start failed", "session_id", s.id, "error", err)
		camera = nil
	}
	if camera == nil {
		p.logger.Error("geometry adapter has no camera, session start sent without one", "session_id", s.id)
	}
	s.camera = camera
	if err := p.appendRecord(ctx, xr.EventSessionStart, camera, nil); err != nil {
		p.abortStart()
		return fmt.Errorf("recording session start: %w", err)
	}

	p.tick(ctx, true, p.loopGeneration())
	p.fps.start()
	if p.visibility != nil {
		s.unsubscribe = p.visibility.Subscribe(p.visibilityChanged)
	}
	if p.showSurvey && p.prompt != nil {
		request := survey.Request{AppKey: p.appKey, SessionID: s.id, Theme: p.surveyTheme}
		s.surveyTimer = p.clock.AfterFunc(p.surveyDelay, func() {
			p.prompt.Show(request)
		})
	}
	p.logger.Info("session started", "session_id", s.id, "prior_session_id", priorSessionID)
	return nil
}

// abortStart undoes a start that failed after the transport opened.
func (p *Poller) abortStart() {
	p.mu.Lock()
	sender := p.sender
	p.sender = nil
	p.queue = nil
	p.mu.Unlock()
	if sender != nil {
		sender.Close()
	}
	p.session.id = ""
	p.session.scene = nil
	p.session.reference = nil
	p.session.camera = nil
}

// Pause stops the sampling loop and the FPS counter, then delivers the
// whole queue. The session stays resumable.
func (p *Poller) Pause(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()
	return p.pauseLocked(ctx)
}

func (p *Poller) pauseLocked(ctx context.Context) error {
	p.stopLoop()
	p.fps.stop()
	return p.drain(ctx)
}

// Resume restarts sampling. Inside the keepalive window the current
// session continues; otherwise, if a scene is still attached, the
// session is ended and a new one started against the same scene.
func (p *Poller) Resume(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()
	return p.resumeLocked(ctx)
}

func (p *Poller) resumeLocked(ctx context.Context) error {
	s := &p.session
	if s.id != "" && p.withinKeepalive() {
		// Time spent suspended is not inactivity.
		s.lastChanged = p.clock.Now()
		p.stopLoop()
		p.fps.stop()
		p.fps.start()
		p.tick(ctx, false, p.loopGeneration())
		return nil
	}
	if isNil(s.scene) {
		return nil
	}

	scene, reference := s.scene, s.reference
	prior := s.id
	if prior == "" {
		prior = s.previousID
	}
	p.logger.Info("session expired, rolling over", "session_id", prior)
	endErr := p.endLocked(ctx, false)
	if err := p.startLocked(ctx, scene, reference, prior); err != nil {
		return errors.Join(endErr, err)
	}
	return endErr
}

// End closes the session: a final session end record is sent if the
// backend still holds the session, the queue is drained and the
// transport closed. clearCustomFields also drops the host's custom
// fields. After an inactivity end, End records nothing but still
// detaches the scene and closes the transport. End with neither a
// session nor a scene does nothing.
//
// A background delivery still running when End gives up waiting (ctx
// done) removes its batch from whatever the queue holds when it
// finishes, even if a new session has started by then.
func (p *Poller) End(ctx context.Context, clearCustomFields bool) error {
	p.op.Lock()
	defer p.op.Unlock()
	return p.endLocked(ctx, clearCustomFields)
}

func (p *Poller) endLocked(ctx context.Context, clearCustomFields bool) error {
	s := &p.session
	if s.id == "" && isNil(s.scene) {
		return nil
	}

	var errs []error
	if s.id != "" && p.withinKeepalive() {
		camera, err := p.geometry.Camera(ctx, s.scene)
		if err != nil {
			p.logger.Warn("reading camera for session end failed", "session_id", s.id, "error", err)
		}
		if change.Equal(camera, s.camera) {
			camera = nil
		}
		if err := p.appendRecord(ctx, xr.EventSessionEnd, camera, nil); err != nil {
			errs = append(errs, fmt.Errorf("recording session end: %w", err))
		}
	}

	endedID := s.id
	s.id = ""
	s.previousID = ""
	s.scene = nil
	s.reference = nil
	s.camera = nil
	if clearCustomFields {
		s.custom = make(map[string]any)
	}
	p.stopLoop()
	p.fps.stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.surveyTimer.Stop()
	s.surveyTimer = nil

	if err := p.drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final delivery: %w", err))
	}

	p.mu.Lock()
	sender := p.sender
	p.sender = nil
	p.queue = nil
	p.lastDelivery = time.Time{}
	p.mu.Unlock()
	if sender != nil {
		if err := sender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing transport: %w", err))
		}
	}
	p.logger.Info("session ended", "session_id", endedID)
	return errors.Join(errs...)
}

// IsRunning reports whether a session is live and data is moving: a
// delivery is in flight, records are queued, or a delivery succeeded
// within the last two poll intervals.
func (p *Poller) IsRunning() bool {
	p.op.Lock()
	hasSession := p.session.id != ""
	p.op.Unlock()
	if !hasSession {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	recent := !p.lastDelivery.IsZero() && p.clock.Now().Sub(p.lastDelivery) < 2*p.pollInterval
	return p.inFlight || len(p.queue) > 0 || recent
}

// SessionID returns the current session id, or "" when idle.
func (p *Poller) SessionID() string {
	p.op.Lock()
	defer p.op.Unlock()
	return p.session.id
}

// withinKeepalive reports whether the backend still holds the session.
// A session that never delivered is not held.
func (p *Poller) withinKeepalive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.lastDelivery.IsZero() && p.clock.Now().Sub(p.lastDelivery) < KeepaliveWindow
}

func (p *Poller) visibilityChanged(hidden bool) {
	var err error
	if hidden {
		err = p.Pause(p.baseContext)
	} else {
		err = p.Resume(p.baseContext)
	}
	if err != nil {
		p.logger.Warn("visibility change handling failed", "hidden", hidden, "error", err)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	value := reflect.ValueOf(v)
	switch value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return value.IsNil()
	}
	return false
}
