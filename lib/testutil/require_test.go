// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"testing"
	"time"
)

func TestRequireReceive(t *testing.T) {
	ch := make(chan int, 1)
	ch <- 7
	if got := RequireReceive(t, ch, time.Second, "value"); got != 7 {
		t.Errorf("got %d", got)
	}
}

func TestRequireClosed(t *testing.T) {
	done := make(chan struct{})
	close(done)
	RequireClosed(t, done, time.Second, "done")
}

func TestRequireNothing(t *testing.T) {
	RequireNothing(t, make(chan int), 10*time.Millisecond, "idle channel")
}

func TestDescribe(t *testing.T) {
	if got := describe([]any{"put %d", 3}); got != "put 3" {
		t.Errorf("describe = %q", got)
	}
	if got := describe(nil); got != "(no message)" {
		t.Errorf("describe(nil) = %q", got)
	}
}
