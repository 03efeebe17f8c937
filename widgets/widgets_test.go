package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestGridViewShape(t *testing.T) {
	g := Grid{
		Size:     4,
		Cell:     func(i, j int) (rune, lipgloss.Color) { return '·', lipgloss.Color("#ffffff") },
		CursorI:  1,
		CursorJ:  2,
		Cursor:   '◉',
		Playhead: 3,
		Marker:   '▼',
	}
	lines := strings.Split(g.View(), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected marker row plus 4 rows, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "▼") {
		t.Errorf("expected playhead marker, got %q", lines[0])
	}
	if !strings.Contains(lines[2], "◉") {
		t.Errorf("expected cursor on row 1, got %q", lines[2])
	}
}

func TestGridHitTest(t *testing.T) {
	g := Grid{Size: 4}
	cases := []struct {
		x, y  int
		i, j  int
		found bool
	}{
		{0, 1, 0, 0, true},
		{6, 4, 3, 3, true},
		{1, 1, 0, 0, false}, // gap between cells
		{0, 0, 0, 0, false}, // marker row
		{8, 1, 0, 0, false},
	}
	for _, c := range cases {
		i, j, ok := g.HitTest(c.x, c.y)
		if ok != c.found || (ok && (i != c.i || j != c.j)) {
			t.Errorf("HitTest(%d,%d): expected (%d,%d,%v), got (%d,%d,%v)", c.x, c.y, c.i, c.j, c.found, i, j, ok)
		}
	}
}

func TestListWindowFollowsSelection(t *testing.T) {
	l := List{Height: 3}
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		l.Items = append(l.Items, ListItem{Title: s})
	}
	l.Move(10)
	if l.Selected != 5 {
		t.Fatalf("expected clamp to 5, got %d", l.Selected)
	}
	start, end := l.window()
	if start != 3 || end != 6 {
		t.Errorf("expected window [3,6), got [%d,%d)", start, end)
	}
	if view := l.View(); !strings.Contains(view, "> ") || strings.Contains(view, "a") {
		t.Errorf("expected only the tail with a selection, got:\n%s", view)
	}
	l.Move(-10)
	if l.Selected != 0 {
		t.Errorf("expected clamp to 0, got %d", l.Selected)
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{Title: "Play", Keys: []KeyBinding{{"p", "play/stop"}}}})
	if !strings.Contains(out, "Play") || !strings.Contains(out, "play/stop") {
		t.Errorf("expected section and binding, got %q", out)
	}
}
