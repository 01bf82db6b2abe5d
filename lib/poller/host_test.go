// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"testing"
	"time"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

func TestInteractionHelpers(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)
	ctx := context.Background()

	helpers := []struct {
		log         func(context.Context, float64, float64, map[string]any) error
		interaction xr.Interaction
	}{
		{f.poller.LogKeyDown, xr.KeyDown},
		{f.poller.LogKeyPress, xr.KeyPress},
		{f.poller.LogKeyUp, xr.KeyUp},
		{f.poller.LogMouseEnter, xr.MouseEnter},
		{f.poller.LogMouseLeave, xr.MouseLeave},
		{f.poller.LogMouseOver, xr.MouseOver},
		{f.poller.LogMouseOut, xr.MouseOut},
		{f.poller.LogMouseDown, xr.MouseDown},
		{f.poller.LogMouseUp, xr.MouseUp},
		{f.poller.LogMouseMove, xr.MouseMove},
		{f.poller.LogMousePress, xr.MousePress},
		{f.poller.LogTouchTap, xr.TouchTap},
		{f.poller.LogTouchStart, xr.TouchStart},
		{f.poller.LogTouchMove, xr.TouchMove},
		{f.poller.LogTouchEnd, xr.TouchEnd},
		{f.poller.LogZoomStart, xr.ZoomStart},
		{f.poller.LogZoomUpdate, xr.ZoomUpdate},
		{f.poller.LogZoomEnd, xr.ZoomEnd},
	}
	for i, helper := range helpers {
		if err := helper.log(ctx, float64(i), 2, map[string]any{"i": i}); err != nil {
			t.Fatalf("%s: %v", helper.interaction.Name, err)
		}
	}

	queued := f.poller.queued()
	if len(queued) != len(helpers) {
		t.Fatalf("queued %d records, want %d", len(queued), len(helpers))
	}
	for i, record := range queued {
		want := helpers[i].interaction
		event := record.UserEvent
		if record.EventType != xr.EventUserInteraction || event == nil {
			t.Fatalf("record %d: %s without user event", i, record.EventType)
		}
		if event.EventName != want.Name || event.EventType != want.Type {
			t.Errorf("record %d: %q/%q, want %q/%q", i, event.EventName, event.EventType, want.Name, want.Type)
		}
		point, ok := event.Target.(xr.EventPoint)
		if !ok {
			t.Fatalf("record %d: target %T", i, event.Target)
		}
		if point.State != want.State || point.Position != (xr.Vector2{X: float64(i), Y: 2}) || point.Timestamp != epoch.UnixMilli() {
			t.Errorf("record %d: point %+v", i, point)
		}
		if event.Params["i"] != i {
			t.Errorf("record %d: params %v", i, event.Params)
		}
	}
}

func TestLogCustomEvent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	// Without a session nothing is recorded.
	if err := f.poller.LogCustomEvent(ctx, "early", nil); err != nil {
		t.Fatal(err)
	}
	f.start(t)
	if err := f.poller.LogCustomEvent(ctx, "purchase", map[string]any{"sku": "A1"}); err != nil {
		t.Fatal(err)
	}
	queued := f.poller.queued()
	if len(queued) != 1 {
		t.Fatalf("queued %d records", len(queued))
	}
	event := queued[0].UserEvent
	if event.EventName != "purchase" || event.EventType != xr.InteractionCustom || event.Target != nil || event.Params["sku"] != "A1" {
		t.Errorf("custom event = %+v", event)
	}
}

func TestSetUserMetaEmitsUpdate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.poller.SetUserMeta(ctx, xr.UserMetadata{GameLocation: "menu"}); err != nil {
		t.Fatal(err)
	}
	if len(f.poller.queued()) != 0 {
		t.Fatal("metadata update recorded without a session")
	}

	f.start(t)
	if err := f.poller.SetUserMeta(ctx, xr.UserMetadata{GameLocation: "arena"}); err != nil {
		t.Fatal(err)
	}
	update := lastQueued(t, f.poller)
	if update.EventType != xr.EventSessionUpdate || update.Camera != nil {
		t.Errorf("metadata update = %s camera %+v", update.EventType, update.Camera)
	}
	if update.UserMeta.GameLocation != "arena" {
		t.Errorf("game location = %q", update.UserMeta.GameLocation)
	}
}

func TestSetPollIntervalChangesCadence(t *testing.T) {
	f := newFixture(t, Options{PollInterval: 250 * time.Millisecond})
	if got := f.poller.PollInterval(); got != 250*time.Millisecond {
		t.Fatalf("poll interval = %v", got)
	}
	f.start(t)
	f.poller.SetPollInterval(time.Hour)
	if got := f.poller.PollInterval(); got != MaxPollInterval {
		t.Fatalf("poll interval = %v, want clamp to %v", got, MaxPollInterval)
	}

	// The tick armed at start still uses the old interval; later ones
	// use the new one.
	f.advance(250 * time.Millisecond)
	f.advance(500 * time.Millisecond)
	if n := len(f.poller.queued()); n != 1 {
		t.Fatalf("queued after 750ms = %d, want 1", n)
	}
	f.advance(500 * time.Millisecond)
	if n := len(f.poller.queued()); n != 2 {
		t.Errorf("queued after 1250ms = %d, want 2", n)
	}
}

func TestSetReferenceReachesGeometry(t *testing.T) {
	f := newFixture(t, Options{})
	f.start(t)
	anchor := &scene{name: "anchor"}
	f.poller.SetReference(anchor)
	f.advance(500 * time.Millisecond)

	f.geometry.mu.Lock()
	defer f.geometry.mu.Unlock()
	if last := f.geometry.references[len(f.geometry.references)-1]; last != anchor {
		t.Errorf("geometry saw reference %v", last)
	}
}

func TestClearInactivityListeners(t *testing.T) {
	f := newFixture(t, Options{InactivityInterval: time.Second})
	f.start(t)
	called := false
	f.poller.AddInactivityListener(func() { called = true })
	f.poller.ClearInactivityListeners()
	f.advance(1500 * time.Millisecond)
	if f.poller.SessionID() != "" {
		t.Fatal("session not ended for inactivity")
	}
	if called {
		t.Error("cleared listener was called")
	}
}
