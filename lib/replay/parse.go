// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

// Offset is a frame's time from the start of the trace. In JSON it is
// either a duration string ("1.5s", "250ms") or a number of seconds.
type Offset time.Duration

func (o *Offset) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		duration, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("frame offset: %w", err)
		}
		*o = Offset(duration)
		return nil
	}
	seconds, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("frame offset %s: want a duration string or seconds", data)
	}
	*o = Offset(seconds * float64(time.Second))
	return nil
}

// Frame is one sample of a recorded session.
type Frame struct {
	At        Offset     `json:"t"`
	Position  xr.Vector3 `json:"position"`
	Direction xr.Vector3 `json:"direction"`
	// Camera and Animations carry over from the previous frame when
	// absent.
	Camera     *xr.Camera     `json:"camera,omitempty"`
	Animations []xr.Animation `json:"animations,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Trace is a recorded session: frames in time order.
type Trace struct {
	Frames []Frame
}

// Duration is the offset of the last frame.
func (t *Trace) Duration() time.Duration {
	if len(t.Frames) == 0 {
		return 0
	}
	return time.Duration(t.Frames[len(t.Frames)-1].At)
}

// Parse reads a JSON Lines trace. Each non-blank line is one frame and
// may carry // or /* */ comments; a line holding only a comment is
// skipped.
func Parse(r io.Reader) (*Trace, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	trace := &Trace{}
	var previous *Frame
	line := 0
	for scanner.Scan() {
		line++
		stripped := bytes.TrimSpace(jsonc.ToJSON(scanner.Bytes()))
		if len(stripped) == 0 {
			continue
		}
		var frame Frame
		if err := json.Unmarshal(stripped, &frame); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if previous != nil {
			if frame.At < previous.At {
				return nil, fmt.Errorf("line %d: frame at %v is before the previous frame at %v",
					line, time.Duration(frame.At), time.Duration(previous.At))
			}
			if frame.Camera == nil {
				frame.Camera = previous.Camera
			}
			if frame.Animations == nil {
				frame.Animations = previous.Animations
			}
		}
		trace.Frames = append(trace.Frames, frame)
		previous = &trace.Frames[len(trace.Frames)-1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	if len(trace.Frames) == 0 {
		return nil, errors.New("trace has no frames")
	}
	return trace, nil
}

// ReadFile parses the trace at path.
func ReadFile(path string) (*Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer file.Close()

	trace, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trace, nil
}
