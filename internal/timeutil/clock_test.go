package timeutil

import (
	"testing"
	"time"
)

func TestRealClockTicker(t *testing.T) {
	clock := RealClock{}

	if d := time.Since(clock.Now()); d > time.Second {
		t.Errorf("RealClock.Now drifted %v from time.Now", d)
	}

	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not tick within 1s")
	}
}

func TestMockClockAdvanceFiresTicker(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	// Not due yet.
	clock.Advance(10 * time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	// Crossing the interval fires exactly once.
	clock.Advance(5 * time.Minute)
	select {
	case tick := <-ticker.C():
		want := start.Add(15 * time.Minute)
		if !tick.Equal(want) {
			t.Errorf("tick time = %v, want %v", tick, want)
		}
	default:
		t.Fatal("ticker did not fire after the interval elapsed")
	}

	// The schedule resets: the next tick needs another full interval.
	clock.Advance(time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired again before the next interval")
	default:
	}
}

func TestMockClockStoppedTicker(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Minute)
	ticker.Stop()

	clock.Advance(5 * time.Minute)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClockNowAndSet(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now = %v, want %v", got, start)
	}

	clock.Advance(time.Hour)
	if got := clock.Now(); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("Now after Advance = %v, want %v", got, start.Add(time.Hour))
	}

	later := start.Add(24 * time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now after Set = %v, want %v", got, later)
	}
}

func TestMockTickerTrigger(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(time.Hour).(*MockTicker)
	defer ticker.Stop()

	now := clock.Now()
	ticker.Trigger(now)
	select {
	case tick := <-ticker.C():
		if !tick.Equal(now) {
			t.Errorf("tick time = %v, want %v", tick, now)
		}
	default:
		t.Fatal("Trigger did not deliver a tick")
	}

	// A second Trigger with the channel full is dropped, not blocked.
	ticker.Trigger(now)
	ticker.Trigger(now)
	select {
	case <-ticker.C():
	default:
		t.Fatal("expected one buffered tick")
	}
}
