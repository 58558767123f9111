// Copyright 2026 The Skillgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit implements a per-caller sliding window rate limiter.
//
// State lives in process memory only and resets on restart. That is
// deliberate: the limiter is abuse mitigation, not a security boundary.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks request timestamps per caller within a trailing window.
//
// A single mutex guards the whole map. At chat cadence the contention is
// negligible and the coarse lock keeps the admit-and-record step atomic.
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	window  time.Duration

	// now is swappable for tests
	now func() time.Time
}

// New creates a limiter with the given sliding window duration
func New(window time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string][]time.Time),
		window:  window,
		now:     time.Now,
	}
}

// Allow reports whether callerID is admitted under limit, and records the
// request timestamp if so. Rejected requests are not recorded, so a burst of
// rejections does not push the window further into the future.
//
// A limit of zero or below means unlimited: the request is admitted and
// nothing is recorded.
func (l *Limiter) Allow(callerID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.pruneLocked(callerID, now)

	if len(window) >= limit {
		return false
	}

	l.windows[callerID] = append(window, now)
	return true
}

// Count returns the number of requests recorded for callerID in the
// current window.
func (l *Limiter) Count(callerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(callerID, l.now()))
}

// Reset clears the window for a caller
func (l *Limiter) Reset(callerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, callerID)
}

// pruneLocked drops timestamps older than the window and returns the
// remaining entries. Caller must hold l.mu.
func (l *Limiter) pruneLocked(callerID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	window := l.windows[callerID]

	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		window = window[i:]
		if len(window) == 0 {
			delete(l.windows, callerID)
			return nil
		}
		l.windows[callerID] = window
	}
	return window
}
