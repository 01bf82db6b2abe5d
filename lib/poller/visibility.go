// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import "sync"

// Visibility reports when the experience is hidden from or shown to the
// user. Subscribe must not call fn before returning.
type Visibility interface {
	Subscribe(fn func(hidden bool)) (cancel func())
}

// ManualVisibility is a Visibility driven by explicit Set calls, for
// hosts that learn about visibility out of band (signals, window
// events).
type ManualVisibility struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(hidden bool)
	hidden      bool
}

func (v *ManualVisibility) Subscribe(fn func(hidden bool)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.subscribers == nil {
		v.subscribers = make(map[int]func(bool))
	}
	id := v.nextID
	v.nextID++
	v.subscribers[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subscribers, id)
	}
}

// Set records the visibility state and notifies subscribers when it
// changed. Subscribers run on the calling goroutine.
func (v *ManualVisibility) Set(hidden bool) {
	v.mu.Lock()
	if v.hidden == hidden {
		v.mu.Unlock()
		return
	}
	v.hidden = hidden
	subscribers := make([]func(bool), 0, len(v.subscribers))
	for _, fn := range v.subscribers {
		subscribers = append(subscribers, fn)
	}
	v.mu.Unlock()

	for _, fn := range subscribers {
		fn(hidden)
	}
}

// Hidden reports the last state passed to Set.
func (v *ManualVisibility) Hidden() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hidden
}
