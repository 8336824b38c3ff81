package ratelimit

import (
	"testing"
	"time"
)

func TestWindowLimiterBudget(t *testing.T) {
	l := NewWindowLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("unit %d should fit the window", i)
		}
		l.Record()
	}
	if l.Allow() {
		t.Error("budget exhausted, Allow must report false")
	}
	if l.Count() != 3 {
		t.Errorf("expected count 3, got %d", l.Count())
	}
}

func TestWindowLimiterRollsOver(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	current := base
	l := NewWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return current }
	l.Reset()

	l.Record()
	l.Record()
	if l.Allow() {
		t.Fatal("window must be full")
	}

	current = base.Add(59 * time.Second)
	if l.Allow() {
		t.Error("window must still be full before roll-over")
	}

	current = base.Add(61 * time.Second)
	if !l.Allow() {
		t.Error("expired window must reset the budget")
	}
	if l.Count() != 0 {
		t.Errorf("expected count 0 after roll-over, got %d", l.Count())
	}
}

func TestWindowLimiterReset(t *testing.T) {
	l := NewWindowLimiter(1, time.Minute)
	l.Record()
	if l.Allow() {
		t.Fatal("window must be full")
	}
	l.Reset()
	if !l.Allow() {
		t.Error("Reset must reopen the window")
	}
}

func TestWindowLimiterRecordReportsOverflow(t *testing.T) {
	l := NewWindowLimiter(1, time.Minute)
	if !l.Record() {
		t.Error("first record fits the budget")
	}
	if l.Record() {
		t.Error("second record exceeds the budget")
	}
}
