// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package xr

import (
	"errors"
	"fmt"
)

// APIVersion is the record format version sent in every record and
// batch.
const APIVersion = "v2"

// MaxBatchRecords caps the number of records in one batch.
const MaxBatchRecords = 20

var (
	// ErrUnknownEventType is returned for an event type outside the
	// defined set.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrDataRequired is returned when a record is built without pose
	// data.
	ErrDataRequired = errors.New("data is required field")
)

// Metrics carries client performance measurements.
type Metrics struct {
	FPS int `json:"fps,omitempty"`
}

// Record is one telemetry sample.
type Record struct {
	APIVersion string         `json:"apiver"`
	SessionID  string         `json:"sessionId"`
	Timestamp  int64          `json:"timestamp"`
	EventType  EventType      `json:"eventType"`
	Data       map[string]any `json:"data"`
	Animations []Animation    `json:"animations"`
	Metrics    *Metrics       `json:"metrics,omitempty"`
	UserMeta   UserMetadata   `json:"userMeta"`
	Camera     *Camera        `json:"camera,omitempty"`
	UserEvent  *UserEvent     `json:"userEvent,omitempty"`
}

// Validate checks the fields required for the record's event type.
func (r *Record) Validate() error {
	if !r.EventType.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, r.EventType)
	}
	if r.SessionID == "" {
		return errors.New("record has no session id")
	}
	if r.Data == nil {
		return ErrDataRequired
	}
	switch r.EventType {
	case EventSessionStart:
		if r.Camera == nil {
			return errors.New("session start record has no camera")
		}
	case EventUserInteraction:
		if r.UserEvent == nil {
			return errors.New("interaction record has no user event")
		}
	}
	return nil
}

// Batch is the body of one ingest request.
type Batch struct {
	AppKey     string   `json:"appkey"`
	APIVersion string   `json:"apiver"`
	Items      []Record `json:"items"`
}

// StreamGrant is the credential the backend issues when a session
// starts. The key fields may be sealed; see lib/sealed.
type StreamGrant struct {
	SessionID      string `json:"sessionId"`
	DataStream     string `json:"dataStream"`
	AccessKeyID    string `json:"accessKeyId"`
	SecretKey      string `json:"secretKey"`
	InstanceRegion string `json:"instanceRegion"`
}

// SurveyRating is a submitted post-session rating.
type SurveyRating struct {
	SessionID string `json:"sessionId"`
	AppKey    string `json:"appkey"`
	Rating    int    `json:"rating"`
}
