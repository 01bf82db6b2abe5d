// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package survey asks the user for a one-to-five rating of their
// session and reports it to the backend.
//
// The poller only knows the [Prompt] interface. [Presenter] is the
// standard implementation: it keeps a per-app [Log] of ratings already
// given so the automatic prompt appears at most once per application,
// runs one question at a time through an [Asker] (see package termui
// for the terminal one), and submits the answer.
package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

// Theme selects the prompt's color scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ParseTheme validates a theme name. The empty string is Light.
func ParseTheme(name string) (Theme, error) {
	switch Theme(name) {
	case "", Light:
		return Light, nil
	case Dark:
		return Dark, nil
	}
	return "", fmt.Errorf("unknown survey theme %q (want light or dark)", name)
}

// Request describes one prompt.
type Request struct {
	AppKey    string
	SessionID string
	Theme     Theme
	// Force shows the prompt even when this app was already rated.
	Force bool
}

// Prompt shows a rating prompt. Show must return promptly; the
// question runs in the background.
type Prompt interface {
	Show(req Request)
}

// ErrDismissed is returned by an Asker when the user closed the prompt
// without rating.
var ErrDismissed = errors.New("survey dismissed")

// Asker puts the question to the user and returns a rating from 1 to
// 5. It must return when ctx is cancelled.
type Asker interface {
	Ask(ctx context.Context, req Request) (int, error)
}

// Submitter delivers a rating to the backend.
type Submitter interface {
	SubmitSurvey(ctx context.Context, rating xr.SurveyRating) error
}

// Presenter implements Prompt on top of an Asker, a Submitter and a Log.
type Presenter struct {
	ctx       context.Context
	asker     Asker
	submitter Submitter
	log       *Log
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewPresenter returns a Presenter whose questions live no longer than
// ctx. log may be nil, in which case nothing is remembered.
func NewPresenter(ctx context.Context, asker Asker, submitter Submitter, log *Log, logger *slog.Logger) *Presenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presenter{
		ctx:       ctx,
		asker:     asker,
		submitter: submitter,
		log:       log,
		logger:    logger.With("component", "survey"),
	}
}

// Show replaces any open question with a new one, unless the app was
// already rated and the request is not forced.
func (p *Presenter) Show(req Request) {
	if req.Theme == "" {
		req.Theme = Light
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if !req.Force && p.log.Logged(req.AppKey) {
		p.logger.Debug("survey already answered", "app_key", req.AppKey)
		return
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel
	p.running.Add(1)
	go func() {
		defer p.running.Done()
		defer cancel()
		p.ask(ctx, req)
	}()
}

// Wait blocks until every question started by Show has finished.
func (p *Presenter) Wait() {
	p.running.Wait()
}

func (p *Presenter) ask(ctx context.Context, req Request) {
	rating, err := p.asker.Ask(ctx, req)
	switch {
	case errors.Is(err, ErrDismissed), errors.Is(err, context.Canceled):
		p.logger.Debug("survey closed without rating", "session_id", req.SessionID)
		return
	case err != nil:
		p.logger.Warn("survey prompt failed", "error", err)
		return
	case rating < 1 || rating > 5:
		p.logger.Warn("survey rating out of range", "rating", rating)
		return
	}

	submission := xr.SurveyRating{SessionID: req.SessionID, AppKey: req.AppKey, Rating: rating}
	if err := p.submitter.SubmitSurvey(p.ctx, submission); err != nil {
		p.logger.Warn("submitting survey rating failed", "error", err, "session_id", req.SessionID)
		return
	}
	if err := p.log.Record(req.AppKey, rating); err != nil {
		p.logger.Warn("recording survey rating failed", "error", err)
	}
	p.logger.Info("survey rating submitted", "session_id", req.SessionID, "rating", rating)
}
