package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ListItem is one selectable row
type ListItem struct {
	Title  string
	Detail string
	Indent int
}

// List is a scrolling single-selection list
type List struct {
	Items    []ListItem
	Selected int
	Height   int // visible rows, 0 shows all

	SelectedColor lipgloss.Color
	DetailColor   lipgloss.Color
}

// Clamp keeps Selected inside Items
func (l *List) Clamp() {
	if l.Selected >= len(l.Items) {
		l.Selected = len(l.Items) - 1
	}
	if l.Selected < 0 {
		l.Selected = 0
	}
}

// Move shifts the selection by delta, clamped
func (l *List) Move(delta int) {
	l.Selected += delta
	l.Clamp()
}

// window returns the visible [start, end) keeping the selection in view
func (l List) window() (int, int) {
	n := len(l.Items)
	if l.Height <= 0 || n <= l.Height {
		return 0, n
	}
	start := l.Selected - l.Height/2
	if start < 0 {
		start = 0
	}
	if start+l.Height > n {
		start = n - l.Height
	}
	return start, start + l.Height
}

// View renders the visible rows
func (l List) View() string {
	if len(l.Items) == 0 {
		return lipgloss.NewStyle().Foreground(l.DetailColor).Render("  (empty)")
	}

	sel := lipgloss.NewStyle().Foreground(l.SelectedColor).Bold(true)
	detail := lipgloss.NewStyle().Foreground(l.DetailColor)

	start, end := l.window()
	var lines []string
	for idx := start; idx < end; idx++ {
		item := l.Items[idx]
		prefix := "  "
		title := item.Title
		if idx == l.Selected {
			prefix = "> "
			title = sel.Render(title)
		}
		line := fmt.Sprintf("%s%s%s", prefix, strings.Repeat("  ", item.Indent), title)
		if item.Detail != "" {
			line += "  " + detail.Render(item.Detail)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
