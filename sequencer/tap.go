package sequencer

import (
	"math"
	"time"

	"go-ripple/loop"
)

const (
	tapWindow = 4               // taps averaged
	tapReset  = 5 * time.Second // gap that starts a fresh count
)

// TapTempo turns a rhythm of taps into a BPM
type TapTempo struct {
	clock loop.Clock
	taps  []time.Time
}

// NewTapTempo creates a tap counter reading time from clock
func NewTapTempo(clock loop.Clock) *TapTempo {
	return &TapTempo{clock: clock}
}

// Tap records a tap. Once there are two taps it returns the rounded BPM
// of the average gap over the last few taps.
func (t *TapTempo) Tap() (float64, bool) {
	now := t.clock.Now()

	if len(t.taps) >= tapWindow {
		t.taps = t.taps[1:]
	}
	if n := len(t.taps); n > 0 && now.Sub(t.taps[n-1]) > tapReset {
		t.taps = t.taps[:0]
	}
	t.taps = append(t.taps, now)

	if len(t.taps) < 2 {
		return 0, false
	}

	total := t.taps[len(t.taps)-1].Sub(t.taps[0])
	avg := total.Seconds() / float64(len(t.taps)-1)
	if avg <= 0 {
		return 0, false
	}
	return math.Round(60 / avg), true
}

// Reset forgets all taps
func (t *TapTempo) Reset() {
	t.taps = t.taps[:0]
}
