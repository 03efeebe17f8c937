package grid

import (
	"errors"
	"fmt"
)

// DefaultSize is the side length of the playing grid
const DefaultSize = 16

// ErrOutOfRange is returned for coordinates outside the grid
var ErrOutOfRange = errors.New("grid: coordinate out of range")

// Coord addresses a cell: I is the row (pitch), J the column (time slot).
// JSON field names match the shared save format.
type Coord struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Grid owns cell enablement and the precomputed adjacency of an N×N matrix.
// Cells are stored flat, index = i*N + j.
type Grid struct {
	n       int
	enabled []bool

	// Adjacency, immutable after New
	neighbors [][]int // Chebyshev distance 1
	second    [][]int // Chebyshev distance exactly 2
}

// New creates an n×n grid with every cell disabled
func New(n int) *Grid {
	if n < 1 {
		n = DefaultSize
	}
	g := &Grid{
		n:         n,
		enabled:   make([]bool, n*n),
		neighbors: make([][]int, n*n),
		second:    make([][]int, n*n),
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			near := make([]int, 0, 8)
			far := make([]int, 0, 16)
			for m := i - 2; m <= i+2; m++ {
				for k := j - 2; k <= j+2; k++ {
					// Clipped at the boundary, no wraparound
					if m < 0 || m >= n || k < 0 || k >= n {
						continue
					}
					switch chebyshev(i, j, m, k) {
					case 1:
						near = append(near, m*n+k)
					case 2:
						far = append(far, m*n+k)
					}
				}
			}
			g.neighbors[idx] = near
			g.second[idx] = far
		}
	}

	return g
}

func chebyshev(i, j, m, k int) int {
	return max(abs(i-m), abs(j-k))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Size returns N
func (g *Grid) Size() int {
	return g.n
}

// InRange reports whether (i, j) lies on the grid
func (g *Grid) InRange(i, j int) bool {
	return i >= 0 && i < g.n && j >= 0 && j < g.n
}

// Index returns the flat index of (i, j). Callers check InRange first.
func (g *Grid) Index(i, j int) int {
	return i*g.n + j
}

// Coord returns the coordinate for a flat index
func (g *Grid) Coord(idx int) Coord {
	return Coord{I: idx / g.n, J: idx % g.n}
}

// Enabled reports whether a cell is on. Out-of-range cells are off.
func (g *Grid) Enabled(i, j int) bool {
	if !g.InRange(i, j) {
		return false
	}
	return g.enabled[g.Index(i, j)]
}

// Toggle flips a cell
func (g *Grid) Toggle(i, j int) error {
	if !g.InRange(i, j) {
		return fmt.Errorf("toggle (%d,%d): %w", i, j, ErrOutOfRange)
	}
	idx := g.Index(i, j)
	g.enabled[idx] = !g.enabled[idx]
	return nil
}

// Column returns the enabled cells of column j, ascending by row
func (g *Grid) Column(j int) []Coord {
	if j < 0 || j >= g.n {
		return nil
	}
	var out []Coord
	for i := 0; i < g.n; i++ {
		if g.enabled[i*g.n+j] {
			out = append(out, Coord{I: i, J: j})
		}
	}
	return out
}

// ClearAll disables every cell
func (g *Grid) ClearAll() {
	for idx := range g.enabled {
		g.enabled[idx] = false
	}
}

// LoadCells clears the grid, then enables coords. Coordinates off the grid
// are skipped so a partially bad save still loads.
func (g *Grid) LoadCells(coords []Coord) {
	g.ClearAll()
	for _, c := range coords {
		if !g.InRange(c.I, c.J) {
			continue
		}
		g.enabled[g.Index(c.I, c.J)] = true
	}
}

// SerializeActive returns every enabled coordinate in row-major order
func (g *Grid) SerializeActive() []Coord {
	out := []Coord{}
	for idx, on := range g.enabled {
		if on {
			out = append(out, g.Coord(idx))
		}
	}
	return out
}

// SeedDiagonal enables the anti-diagonal (i+j == N-1), the start pattern
// shown on a fresh session
func (g *Grid) SeedDiagonal() {
	g.ClearAll()
	for i := 0; i < g.n; i++ {
		g.enabled[g.Index(i, g.n-1-i)] = true
	}
}

// Neighbors returns the flat indices within Chebyshev distance 1 of (i, j).
// The slice is shared; callers must not modify it.
func (g *Grid) Neighbors(i, j int) ([]int, error) {
	if !g.InRange(i, j) {
		return nil, fmt.Errorf("neighbors (%d,%d): %w", i, j, ErrOutOfRange)
	}
	return g.neighbors[g.Index(i, j)], nil
}

// SecondNeighbors returns the flat indices at Chebyshev distance exactly 2.
// The slice is shared; callers must not modify it.
func (g *Grid) SecondNeighbors(i, j int) ([]int, error) {
	if !g.InRange(i, j) {
		return nil, fmt.Errorf("second neighbors (%d,%d): %w", i, j, ErrOutOfRange)
	}
	return g.second[g.Index(i, j)], nil
}
