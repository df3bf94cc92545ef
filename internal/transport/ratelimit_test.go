package transport

import (
	"testing"
	"time"
)

func TestSlidingWindowLimiterEnforcesBurst(t *testing.T) {
	current := time.Unix(0, 0)
	limiter := NewSlidingWindowLimiter(time.Minute, 2, func() time.Time { return current })

	if !limiter.Allow() || !limiter.Allow() {
		t.Fatal("expected first two attempts to pass")
	}
	if limiter.Allow() {
		t.Fatal("third attempt inside the window must be rejected")
	}

	//1.- Once the earliest attempt ages out, capacity frees up again.
	current = current.Add(time.Minute + time.Second)
	if !limiter.Allow() {
		t.Fatal("expected attempt after the window to pass")
	}
}

func TestSlidingWindowLimiterDisabledConfigurations(t *testing.T) {
	if !NewSlidingWindowLimiter(0, 5, nil).Allow() {
		t.Fatal("zero window must disable limiting")
	}
	if !NewSlidingWindowLimiter(time.Minute, 0, nil).Allow() {
		t.Fatal("zero limit must disable limiting")
	}
	var nilLimiter *SlidingWindowLimiter
	if !nilLimiter.Allow() {
		t.Fatal("nil limiter must allow everything")
	}
}

func TestSlidingWindowLimiterSlidesGradually(t *testing.T) {
	current := time.Unix(0, 0)
	limiter := NewSlidingWindowLimiter(10*time.Second, 2, func() time.Time { return current })

	limiter.Allow()
	current = current.Add(6 * time.Second)
	limiter.Allow()
	current = current.Add(2 * time.Second)
	if limiter.Allow() {
		t.Fatal("both attempts still inside the window")
	}
	current = current.Add(3 * time.Second)
	if !limiter.Allow() {
		t.Fatal("first attempt aged out; one slot must be free")
	}
}
