package anim

import (
	"fmt"
	"time"

	"go-ripple/grid"
	"go-ripple/loop"
)

// DefaultUnit is the propagation unit u
const DefaultUnit = 100 * time.Millisecond

// Variant selects the decay timings of the outer rings
type Variant string

const (
	Classic  Variant = "classic"  // neighbors off at 2u, second ring at 2.5u
	Extended Variant = "extended" // neighbors off at 2.5u, second ring at 3u
)

// Timing is a pulse schedule in multiples of the propagation unit
type Timing struct {
	SelfOff     float64
	NeighborOn  float64
	NeighborOff float64
	SecondOn    float64
	SecondOff   float64
}

// TimingFor returns the schedule of a variant. Unknown variants are Classic.
func TimingFor(v Variant) Timing {
	t := Timing{
		SelfOff:     1.5,
		NeighborOn:  1,
		NeighborOff: 2,
		SecondOn:    1.5,
		SecondOff:   2.5,
	}
	if v == Extended {
		t.NeighborOff = 2.5
		t.SecondOff = 3
	}
	return t
}

// Scheduler is the part of loop.Loop the propagator needs
type Scheduler interface {
	After(d time.Duration, fn func()) loop.Handle
}

// Propagator schedules the ripple around triggered cells. Pulses are
// fire-and-forget: nothing cancels them, they expire on their own.
type Propagator struct {
	sched  Scheduler
	grid   *grid.Grid
	target Target
	unit   time.Duration
	timing Timing
}

// NewPropagator wires a propagator to a loop, a grid's adjacency and a target
func NewPropagator(sched Scheduler, g *grid.Grid, target Target, unit time.Duration, v Variant) *Propagator {
	if unit <= 0 {
		unit = DefaultUnit
	}
	return &Propagator{
		sched:  sched,
		grid:   g,
		target: target,
		unit:   unit,
		timing: TimingFor(v),
	}
}

// Unit returns the propagation unit
func (p *Propagator) Unit() time.Duration {
	return p.unit
}

// Timing returns the active schedule
func (p *Propagator) Timing() Timing {
	return p.timing
}

// Span is how long one trigger keeps marks on the board
func (p *Propagator) Span() time.Duration {
	return p.at(max(p.timing.SelfOff, p.timing.NeighborOff, p.timing.SecondOff))
}

func (p *Propagator) at(units float64) time.Duration {
	return time.Duration(units * float64(p.unit))
}

// Trigger schedules the three pulses for (i, j): six independent actions.
// A retrigger before decay schedules six more; removals from the older
// pulse may clear marks the newer one applied.
func (p *Propagator) Trigger(i, j int) error {
	near, err := p.grid.Neighbors(i, j)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	far, err := p.grid.SecondNeighbors(i, j)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	self := []int{p.grid.Index(i, j)}

	p.pulse(self, Triggered, 0, p.timing.SelfOff)
	p.pulse(near, Neighbor, p.timing.NeighborOn, p.timing.NeighborOff)
	p.pulse(far, SecondNeighbor, p.timing.SecondOn, p.timing.SecondOff)
	return nil
}

func (p *Propagator) pulse(cells []int, m Marker, on, off float64) {
	p.sched.After(p.at(on), func() {
		for _, idx := range cells {
			p.target.Apply(idx, m)
		}
	})
	p.sched.After(p.at(off), func() {
		for _, idx := range cells {
			p.target.Remove(idx, m)
		}
	})
}
