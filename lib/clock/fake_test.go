// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", c.Now(), epoch)
	}
	c.Advance(90 * time.Second)
	if got := Since(c, epoch); got != 90*time.Second {
		t.Errorf("Since = %v, want 90s", got)
	}
}

func TestFakeClockAfterFuncFiresOnAdvance(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(time.Second, func() { fired++ })

	c.Advance(999 * time.Millisecond)
	if fired != 0 {
		t.Fatalf("fired before deadline")
	}
	c.Advance(time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Errorf("one-shot timer fired %d times", fired)
	}
}

func TestFakeClockAfterFuncOrder(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestFakeClockAfterFuncStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if c.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", c.Pending())
	}
	if !timer.Stop() {
		t.Fatal("Stop on pending timer returned false")
	}
	if timer.Stop() {
		t.Error("second Stop returned true")
	}
	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending = %d after stop, want 0", c.Pending())
	}
}

func TestFakeClockAfterFuncZeroDuration(t *testing.T) {
	c := Fake(epoch)
	fired := false
	c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Error("zero-duration AfterFunc did not run synchronously")
	}
}

func TestFakeClockSet(t *testing.T) {
	c := Fake(epoch)
	fired := false
	c.AfterFunc(time.Hour, func() { fired = true })

	c.Set(epoch.Add(-time.Hour))
	if fired {
		t.Fatal("moving backwards fired a timer")
	}
	c.Set(epoch.Add(2 * time.Hour))
	if !fired {
		t.Error("Set past the deadline did not fire the timer")
	}
}

func TestFakeClockConcurrentAccess(t *testing.T) {
	c := Fake(epoch)
	var waitGroup sync.WaitGroup
	for range 8 {
		waitGroup.Add(2)
		go func() {
			defer waitGroup.Done()
			for range 100 {
				c.Now()
			}
		}()
		go func() {
			defer waitGroup.Done()
			for range 100 {
				c.Advance(time.Millisecond)
			}
		}()
	}
	waitGroup.Wait()
	if got := Since(c, epoch); got != 800*time.Millisecond {
		t.Errorf("Since = %v, want 800ms", got)
	}
}

func TestClockImplementations(t *testing.T) {
	var _ Clock = Real()
	var _ Clock = Fake(epoch)
}
