// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used by rootset.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f. The returned Timer
	// can cancel the pending call with Stop. If d <= 0, f is called
	// immediately (in a new goroutine for the real clock, synchronously
	// for the fake one).
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Since returns the time elapsed since then according to c.
func Since(c Clock, then time.Time) time.Duration {
	return c.Now().Sub(then)
}
