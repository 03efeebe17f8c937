package loop

import (
	"context"
	"testing"
	"time"
)

var epoch = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func newManual() (*Loop, *ManualClock) {
	mc := NewManualClock(epoch)
	return New(mc), mc
}

func TestAfterRunsInDeadlineOrder(t *testing.T) {
	l, _ := newManual()

	var got []string
	l.After(30*time.Millisecond, func() { got = append(got, "c") })
	l.After(10*time.Millisecond, func() { got = append(got, "a") })
	l.After(20*time.Millisecond, func() { got = append(got, "b") })
	l.After(20*time.Millisecond, func() { got = append(got, "b2") })

	l.Advance(25 * time.Millisecond)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "b2" {
		t.Fatalf("expected [a b b2], got %v", got)
	}

	l.Advance(5 * time.Millisecond)
	if len(got) != 4 || got[3] != "c" {
		t.Errorf("expected c last, got %v", got)
	}
	if l.Pending() != 0 {
		t.Errorf("expected empty loop, got %d pending", l.Pending())
	}
}

func TestCallbacksSeeTheirDeadline(t *testing.T) {
	l, mc := newManual()

	var seen time.Duration
	l.After(150*time.Millisecond, func() { seen = mc.Now().Sub(epoch) })
	l.Advance(time.Second)

	if seen != 150*time.Millisecond {
		t.Errorf("expected callback at 150ms, got %v", seen)
	}
	if mc.Now().Sub(epoch) != time.Second {
		t.Errorf("expected clock at 1s, got %v", mc.Now().Sub(epoch))
	}
}

func TestEveryRepeatsUntilCancelled(t *testing.T) {
	l, _ := newManual()

	count := 0
	h := l.Every(100*time.Millisecond, func() { count++ })

	l.Advance(350 * time.Millisecond)
	if count != 3 {
		t.Fatalf("expected 3 ticks, got %d", count)
	}

	if !l.Cancel(h) {
		t.Fatal("expected cancel to find the entry")
	}
	l.Advance(time.Second)
	if count != 3 {
		t.Errorf("expected no ticks after cancel, got %d", count)
	}
	if l.Cancel(h) {
		t.Error("expected second cancel to report false")
	}
}

func TestCancelFromInsideCallback(t *testing.T) {
	l, _ := newManual()

	count := 0
	var h Handle
	h = l.Every(10*time.Millisecond, func() {
		count++
		if count == 2 {
			l.Cancel(h)
		}
	})

	l.Advance(100 * time.Millisecond)
	if count != 2 {
		t.Errorf("expected 2 ticks, got %d", count)
	}
	if l.Repeating() != 0 {
		t.Errorf("expected no repeating entries, got %d", l.Repeating())
	}
}

func TestPostRunsOnDrain(t *testing.T) {
	l, _ := newManual()

	ran := false
	l.Post(func() { ran = true })
	if ran {
		t.Fatal("post ran before drain")
	}
	if n := l.Drain(); n != 1 || !ran {
		t.Errorf("expected 1 entry run, got %d (ran=%v)", n, ran)
	}
}

func TestPanickingCallbackDoesNotStopLoop(t *testing.T) {
	l, _ := newManual()

	count := 0
	l.Every(10*time.Millisecond, func() {
		count++
		if count == 1 {
			panic("boom")
		}
	})

	l.Advance(30 * time.Millisecond)
	if count != 3 {
		t.Errorf("expected ticking to continue after panic, got %d", count)
	}
}

func TestRunDrainsInRealTime(t *testing.T) {
	l := New(Real())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go l.Run(ctx)
	l.After(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for callback")
	}
}
