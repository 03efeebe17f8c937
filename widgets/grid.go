package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// CellFunc returns what to draw for cell (i, j)
type CellFunc func(i, j int) (sym rune, color lipgloss.Color)

// Grid draws an N×N board, row 0 at the top, with a playhead marker row
// above the active column
type Grid struct {
	Size     int
	Cell     CellFunc
	CursorI  int
	CursorJ  int
	Cursor   rune
	Playhead int // -1 hides the marker
	Marker   rune

	CursorColor lipgloss.Color
	MarkerColor lipgloss.Color
}

// View renders the grid, two terminal columns per cell
func (g Grid) View() string {
	var lines []string

	var head strings.Builder
	marker := lipgloss.NewStyle().Foreground(g.MarkerColor)
	for j := 0; j < g.Size; j++ {
		if j == g.Playhead {
			head.WriteString(marker.Render(string(g.Marker)))
		} else {
			head.WriteString(" ")
		}
		head.WriteString(" ")
	}
	lines = append(lines, head.String())

	cursor := lipgloss.NewStyle().Foreground(g.CursorColor).Bold(true)
	for i := 0; i < g.Size; i++ {
		var line strings.Builder
		for j := 0; j < g.Size; j++ {
			sym, color := g.Cell(i, j)
			if i == g.CursorI && j == g.CursorJ {
				line.WriteString(cursor.Render(string(g.Cursor)))
			} else {
				line.WriteString(lipgloss.NewStyle().Foreground(color).Render(string(sym)))
			}
			line.WriteString(" ")
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

// HitTest maps a position relative to the grid's top-left to a cell
func (g Grid) HitTest(x, y int) (i, j int, ok bool) {
	i = y - 1 // marker row
	j = x / 2
	if i < 0 || i >= g.Size || j < 0 || j >= g.Size || x%2 != 0 {
		return 0, 0, false
	}
	return i, j, true
}
