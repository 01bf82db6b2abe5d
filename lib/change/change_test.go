// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package change

import (
	"testing"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

func TestEqual(t *testing.T) {
	camera := &xr.Camera{FieldOfView: 60, AspectRatio: 1.6, ZNearPlane: 0.1, ZFarPlane: 500}
	same := *camera
	zoomed := *camera
	zoomed.FieldOfView = 45

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"identical camera", camera, &same, true},
		{"different fov", camera, &zoomed, false},
		{"both nil", (*xr.Camera)(nil), (*xr.Camera)(nil), true},
		{"nil against value", (*xr.Camera)(nil), camera, false},
		{"map order", map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}, true},
		{"nested pose", xr.Pose{Position: xr.Vector3{X: 1}}, xr.Pose{Position: xr.Vector3{X: 1.0000001}}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Equal(test.a, test.b); got != test.want {
				t.Errorf("Equal = %v, want %v", got, test.want)
			}
		})
	}
}

func TestTracker(t *testing.T) {
	var tracker Tracker
	pose := xr.Pose{Position: xr.Vector3{X: 1, Y: 2, Z: 3}}

	if tracker.Matches(pose) {
		t.Error("fresh tracker matches")
	}
	if !tracker.Observe(pose) {
		t.Error("first Observe reported no change")
	}
	if tracker.Observe(pose) {
		t.Error("repeat Observe reported a change")
	}
	if !tracker.Matches(pose) {
		t.Error("Matches = false for the observed pose")
	}
	pose.Direction.Z = -1
	if !tracker.Observe(pose) {
		t.Error("moved pose reported no change")
	}
	tracker.Reset()
	if tracker.Matches(pose) {
		t.Error("Matches after Reset")
	}
}
