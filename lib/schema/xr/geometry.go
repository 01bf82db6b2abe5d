// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package xr

// Vector2 is a point on the screen plane.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector3 is a point or direction in scene space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Div divides v component-wise by o. Zero components of o leave the
// corresponding component of v unchanged.
func (v Vector3) Div(o Vector3) Vector3 {
	div := func(a, b float64) float64 {
		if b == 0 {
			return a
		}
		return a / b
	}
	return Vector3{X: div(v.X, o.X), Y: div(v.Y, o.Y), Z: div(v.Z, o.Z)}
}

// Pose is the viewer's position and look direction, optionally
// relative to a reference object. Extra carries any additional fields a
// geometry adapter wants recorded alongside the pose.
type Pose struct {
	Position  Vector3
	Direction Vector3
	Extra     map[string]any
}

// Fields flattens the pose into the record data shape: the Extra
// fields, then position and direction, which take precedence.
func (p Pose) Fields() map[string]any {
	fields := make(map[string]any, len(p.Extra)+2)
	for key, value := range p.Extra {
		fields[key] = value
	}
	fields["position"] = p.Position
	fields["direction"] = p.Direction
	return fields
}

// Camera is the projection of the viewer's camera.
type Camera struct {
	FieldOfView float64 `json:"fieldOfView"`
	AspectRatio float64 `json:"aspectRatio"`
	ZNearPlane  float64 `json:"zNearPlane"`
	ZFarPlane   float64 `json:"zFarPlane"`
}

// Animation is the playback state of one named scene animation.
type Animation struct {
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
	Weight   float64 `json:"weight"`
	Loop     bool    `json:"loop,omitempty"`
}
