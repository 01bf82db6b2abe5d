// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package xr

import "fmt"

// EventType classifies a record.
type EventType string

const (
	EventUserPosition    EventType = "event.user.position"
	EventUserInteraction EventType = "event.user.interaction"
	EventSessionStart    EventType = "event.session.start"
	EventSessionUpdate   EventType = "event.session.update"
	EventSessionEnd      EventType = "event.session.end"
)

// Known reports whether t is one of the defined event types.
func (t EventType) Known() bool {
	switch t {
	case EventUserPosition, EventUserInteraction, EventSessionStart, EventSessionUpdate, EventSessionEnd:
		return true
	}
	return false
}

// ParseEventType validates s as an event type.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if !t.Known() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, s)
	}
	return t, nil
}

// PointState is the phase of a pointer, key or touch point.
type PointState string

const (
	PointPressed    PointState = "state.pressed"
	PointUpdated    PointState = "state.updated"
	PointReleased   PointState = "state.released"
	PointStationary PointState = "state.stationary"
)

// InteractionType is the machine-readable identifier of a user event.
type InteractionType string

// Interaction pairs the human-readable name of a built-in interaction
// with its wire type and the point state it reports.
type Interaction struct {
	Name  string
	Type  InteractionType
	State PointState
}

// InteractionCustom is the type of events logged by name from the host.
const InteractionCustom InteractionType = "user.interaction.custom"

// Built-in interactions.
var (
	KeyDown    = Interaction{"Key Down", "user.interaction.key_down", PointPressed}
	KeyPress   = Interaction{"Key Press", "user.interaction.key_press", PointStationary}
	KeyUp      = Interaction{"Key Up", "user.interaction.key_up", PointReleased}
	MouseEnter = Interaction{"Mouse Enter", "user.interaction.mouse_enter", PointStationary}
	MouseLeave = Interaction{"Mouse Leave", "user.interaction.mouse_leave", PointStationary}
	MouseOver  = Interaction{"Mouse Over", "user.interaction.mouse_over", PointStationary}
	MouseOut   = Interaction{"Mouse Out", "user.interaction.mouse_out", PointStationary}
	MouseDown  = Interaction{"Mouse Down", "user.interaction.mouse_down", PointPressed}
	MouseUp    = Interaction{"Mouse Up", "user.interaction.mouse_up", PointReleased}
	MouseMove  = Interaction{"Mouse Move", "user.interaction.mouse_move", PointUpdated}
	MousePress = Interaction{"Mouse Press", "user.interaction.mouse_press", PointStationary}
	TouchTap   = Interaction{"Touch Tap", "user.interaction.touch_tap", PointStationary}
	TouchStart = Interaction{"Touch Start", "user.interaction.touch_start", PointPressed}
	TouchMove  = Interaction{"Touch Move", "user.interaction.touch_move", PointUpdated}
	TouchEnd   = Interaction{"Touch End", "user.interaction.touch_end", PointReleased}
	ZoomStart  = Interaction{"Zoom Start", "user.interaction.zoom_start", PointPressed}
	ZoomUpdate = Interaction{"Zoom Update", "user.interaction.zoom_update", PointUpdated}
	ZoomEnd    = Interaction{"Zoom End", "user.interaction.zoom_end", PointReleased}
)

// EventPoint is one contact point of an interaction.
type EventPoint struct {
	State     PointState `json:"state"`
	Timestamp int64      `json:"timestamp"`
	Position  Vector2    `json:"position"`
}

// UserEvent describes a discrete interaction.
type UserEvent struct {
	EventName string          `json:"eventName"`
	EventType InteractionType `json:"eventType"`
	// Target is either an EventPoint for built-in interactions or any
	// host-defined description of what was interacted with.
	Target any            `json:"target,omitempty"`
	Points []EventPoint   `json:"points,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}
