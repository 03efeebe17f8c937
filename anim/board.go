package anim

import (
	"time"

	"go-ripple/loop"
)

// Marker is a transient visual mark on a cell. Marks combine as bits.
type Marker uint8

const (
	Triggered      Marker = 1 << iota // the cell that fired
	Neighbor                          // Chebyshev distance 1
	SecondNeighbor                    // Chebyshev distance 2
)

var markers = [...]Marker{Triggered, Neighbor, SecondNeighbor}

func (m Marker) slot() int {
	switch m {
	case Triggered:
		return 0
	case Neighbor:
		return 1
	default:
		return 2
	}
}

func (m Marker) String() string {
	switch m {
	case Triggered:
		return "triggered"
	case Neighbor:
		return "neighbor"
	case SecondNeighbor:
		return "second-neighbor"
	}
	return "none"
}

// Target receives marker changes. Board is the in-memory implementation
// the terminal UI renders from.
type Target interface {
	Apply(idx int, m Marker)
	Remove(idx int, m Marker)
}

// Board holds the current marks of every cell, indexed like grid.Grid
type Board struct {
	clock   loop.Clock
	marks   []Marker
	applied [][3]time.Time // when each marker was last put on
}

// NewBoard creates a board for cells flat cells
func NewBoard(cells int, clock loop.Clock) *Board {
	if clock == nil {
		clock = loop.Real()
	}
	return &Board{
		clock:   clock,
		marks:   make([]Marker, cells),
		applied: make([][3]time.Time, cells),
	}
}

// Apply marks a cell. Marking an already-marked cell is a no-op.
func (b *Board) Apply(idx int, m Marker) {
	if idx < 0 || idx >= len(b.marks) || b.marks[idx]&m != 0 {
		return
	}
	b.marks[idx] |= m
	b.applied[idx][m.slot()] = b.clock.Now()
}

// Remove clears a mark from a cell
func (b *Board) Remove(idx int, m Marker) {
	if idx < 0 || idx >= len(b.marks) {
		return
	}
	b.marks[idx] &^= m
}

// Marks returns the marks on a cell
func (b *Board) Marks(idx int) Marker {
	if idx < 0 || idx >= len(b.marks) {
		return 0
	}
	return b.marks[idx]
}

// Has reports whether a cell carries m
func (b *Board) Has(idx int, m Marker) bool {
	return b.Marks(idx)&m != 0
}

// Age returns how long m has been on the cell, false if it isn't
func (b *Board) Age(idx int, m Marker) (time.Duration, bool) {
	if !b.Has(idx, m) {
		return 0, false
	}
	return b.clock.Now().Sub(b.applied[idx][m.slot()]), true
}

// Strongest returns the most prominent mark on a cell
// (triggered over neighbor over second neighbor)
func (b *Board) Strongest(idx int) Marker {
	marks := b.Marks(idx)
	for _, m := range markers {
		if marks&m != 0 {
			return m
		}
	}
	return 0
}

// Count returns how many cells carry m
func (b *Board) Count(m Marker) int {
	n := 0
	for _, marks := range b.marks {
		if marks&m != 0 {
			n++
		}
	}
	return n
}

// Clear drops every mark
func (b *Board) Clear() {
	for i := range b.marks {
		b.marks[i] = 0
	}
}
