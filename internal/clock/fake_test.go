package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(1730000000, 0)
	fake := NewFake(start)
	var order []string
	fake.AfterFunc(300*time.Millisecond, func() { order = append(order, "late") })
	fake.AfterFunc(100*time.Millisecond, func() {
		order = append(order, "early")
		if got := fake.Now().Sub(start); got != 100*time.Millisecond {
			t.Fatalf("now inside callback = %v, want 100ms", got)
		}
		fake.AfterFunc(50*time.Millisecond, func() { order = append(order, "chained") })
	})
	fake.Advance(time.Second)
	want := []string{"early", "chained", "late"}
	if len(order) != len(want) {
		t.Fatalf("fired %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("fired %v, want %v", order, want)
		}
	}
	if got := fake.Now().Sub(start); got != time.Second {
		t.Fatalf("now = %v, want 1s", got)
	}
}

func TestFakeStopCancelsTimer(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatalf("expected Stop to report a pending timer")
	}
	if timer.Stop() {
		t.Fatalf("second Stop should report false")
	}
	fake.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer fired")
	}
	if fake.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", fake.Pending())
	}
}

func TestFakeDeadlineIsInclusive(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	fired := false
	fake.AfterFunc(500*time.Millisecond, func() { fired = true })
	fake.Advance(499 * time.Millisecond)
	if fired {
		t.Fatalf("timer fired early")
	}
	fake.Advance(time.Millisecond)
	if !fired {
		t.Fatalf("timer did not fire at its deadline")
	}
}
