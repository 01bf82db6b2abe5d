// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/survey"
)

// SetReference changes the object positions are measured against. nil
// measures in scene coordinates.
func (p *Poller) SetReference(reference any) {
	p.op.Lock()
	defer p.op.Unlock()
	p.session.reference = reference
}

// SetCustomField adds a field to the data of every following record.
// Pose fields take precedence over a custom field of the same name.
func (p *Poller) SetCustomField(key string, value any) {
	p.op.Lock()
	defer p.op.Unlock()
	p.session.custom[key] = value
}

// RemoveCustomField drops one custom field from future records.
func (p *Poller) RemoveCustomField(key string) {
	p.op.Lock()
	defer p.op.Unlock()
	delete(p.session.custom, key)
}

// ClearCustomFields drops every custom field.
func (p *Poller) ClearCustomFields() {
	p.op.Lock()
	defer p.op.Unlock()
	p.session.custom = make(map[string]any)
}

// SetPollInterval changes the sampling cadence from the next tick on.
// The interval is clamped like Options.PollInterval.
func (p *Poller) SetPollInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollInterval = ClampPollInterval(interval)
}

// PollInterval returns the effective sampling cadence.
func (p *Poller) PollInterval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollInterval
}

// SetUserMeta replaces the host metadata and, during a session,
// records a session update carrying it.
func (p *Poller) SetUserMeta(ctx context.Context, meta xr.UserMetadata) error {
	p.op.Lock()
	defer p.op.Unlock()
	p.session.userMeta = meta
	return p.appendRecord(ctx, xr.EventSessionUpdate, nil, nil)
}

// AddInactivityListener registers fn to run once each time the loop
// ends a session for inactivity. fn runs on the loop's goroutine after
// the session has ended and may call back into the Poller.
func (p *Poller) AddInactivityListener(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// ClearInactivityListeners removes every inactivity listener.
func (p *Poller) ClearInactivityListeners() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = nil
}

// ShowSurvey cancels the automatic survey and prompts now, even if the
// user already rated this app. An empty theme uses the configured one.
// Without a session or a survey prompt it does nothing.
func (p *Poller) ShowSurvey(theme survey.Theme) {
	p.op.Lock()
	defer p.op.Unlock()
	p.session.surveyTimer.Stop()
	p.session.surveyTimer = nil
	if p.prompt == nil || p.session.id == "" {
		return
	}
	if theme == "" {
		theme = p.surveyTheme
	}
	p.prompt.Show(survey.Request{
		AppKey:    p.appKey,
		SessionID: p.session.id,
		Theme:     theme,
		Force:     true,
	})
}

// LogCustomEvent records a host-defined interaction.
func (p *Poller) LogCustomEvent(ctx context.Context, name string, params map[string]any) error {
	p.op.Lock()
	defer p.op.Unlock()
	return p.appendRecord(ctx, xr.EventUserInteraction, nil, &xr.UserEvent{
		EventName: name,
		EventType: xr.InteractionCustom,
		Params:    params,
	})
}

// LogInteraction records a built-in interaction at screen point (x, y).
func (p *Poller) LogInteraction(ctx context.Context, interaction xr.Interaction, x, y float64, params map[string]any) error {
	p.op.Lock()
	defer p.op.Unlock()
	return p.appendRecord(ctx, xr.EventUserInteraction, nil, &xr.UserEvent{
		EventName: interaction.Name,
		EventType: interaction.Type,
		Target: xr.EventPoint{
			State:     interaction.State,
			Timestamp: p.clock.Now().UnixMilli(),
			Position:  xr.Vector2{X: x, Y: y},
		},
		Params: params,
	})
}

func (p *Poller) LogKeyDown(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.KeyDown, x, y, params)
}

func (p *Poller) LogKeyPress(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.KeyPress, x, y, params)
}

func (p *Poller) LogKeyUp(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.KeyUp, x, y, params)
}

func (p *Poller) LogMouseEnter(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseEnter, x, y, params)
}

func (p *Poller) LogMouseLeave(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseLeave, x, y, params)
}

func (p *Poller) LogMouseOver(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseOver, x, y, params)
}

func (p *Poller) LogMouseOut(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseOut, x, y, params)
}

func (p *Poller) LogMouseDown(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseDown, x, y, params)
}

func (p *Poller) LogMouseUp(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseUp, x, y, params)
}

func (p *Poller) LogMouseMove(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MouseMove, x, y, params)
}

func (p *Poller) LogMousePress(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.MousePress, x, y, params)
}

func (p *Poller) LogTouchTap(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.TouchTap, x, y, params)
}

func (p *Poller) LogTouchStart(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.TouchStart, x, y, params)
}

func (p *Poller) LogTouchMove(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.TouchMove, x, y, params)
}

func (p *Poller) LogTouchEnd(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.TouchEnd, x, y, params)
}

func (p *Poller) LogZoomStart(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.ZoomStart, x, y, params)
}

func (p *Poller) LogZoomUpdate(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.ZoomUpdate, x, y, params)
}

func (p *Poller) LogZoomEnd(ctx context.Context, x, y float64, params map[string]any) error {
	return p.LogInteraction(ctx, xr.ZoomEnd, x, y, params)
}
