package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-ripple/anim"
	"go-ripple/debug"
	"go-ripple/loop"
	"go-ripple/save"
	"go-ripple/sequencer"
	"go-ripple/theme"
	"go-ripple/widgets"
)

// Frame rate the loop is drained and the grid redrawn at
const frameFPS = 60

const tempoStep = 5

// Screen row the grid widget starts on: blank line, header, blank line
const gridTop = 3

type mode int

const (
	modeGrid mode = iota
	modeProfiles
	modeNaming
)

type entryKind int

const (
	entryProfile entryKind = iota
	entrySave
	entryBlocked
)

// entry backs one row of the profile list
type entry struct {
	kind    entryKind
	profile string // profile id, or blocked address
	local   bool
	record  save.Record
}

type Model struct {
	Manager *sequencer.Manager
	Loop    *loop.Loop
	Theme   *theme.Theme

	mode     mode
	cursorI  int
	cursorJ  int
	name     []rune // save name being typed
	status   string
	quitting bool

	list    widgets.List
	entries []entry
}

var (
	gridKeys = []widgets.KeySection{
		{Title: "Grid", Keys: []widgets.KeyBinding{
			{Key: "hjkl/arrows", Desc: "move"},
			{Key: "space/click", Desc: "toggle cell"},
			{Key: "c", Desc: "clear"},
		}},
		{Title: "Playback", Keys: []widgets.KeyBinding{
			{Key: "p", Desc: "play/stop"},
			{Key: "+/-", Desc: "tempo"},
			{Key: "T", Desc: "tap tempo"},
			{Key: "t", Desc: "next tuning"},
		}},
		{Title: "Saves", Keys: []widgets.KeyBinding{
			{Key: "s", Desc: "save"},
			{Key: "tab", Desc: "profiles"},
			{Key: "q", Desc: "quit"},
		}},
	}
	profileKeys = []widgets.KeySection{
		{Title: "Profiles", Keys: []widgets.KeyBinding{
			{Key: "j/k", Desc: "move"},
			{Key: "enter", Desc: "load save"},
			{Key: "d", Desc: "delete your save"},
			{Key: "b/u", Desc: "block/unblock peer"},
			{Key: "tab", Desc: "back to grid"},
		}},
	}
	namingKeys = []widgets.KeySection{
		{Keys: []widgets.KeyBinding{
			{Key: "enter", Desc: "save"},
			{Key: "esc", Desc: "cancel"},
		}},
	}
)

type UpdateMsg struct{}

type frameMsg time.Time

func NewModel(manager *sequencer.Manager, l *loop.Loop, th *theme.Theme) Model {
	m := Model{
		Manager: manager,
		Loop:    l,
		Theme:   th,
		list:    widgets.List{Height: 12},
	}
	m.rebuildList()
	return m
}

func ListenForUpdates(manager *sequencer.Manager) tea.Cmd {
	return func() tea.Msg {
		<-manager.UpdateChan
		return UpdateMsg{}
	}
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/frameFPS, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Manager),
		frame(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		// Every timed callback runs here, on the UI goroutine
		if n := m.Loop.Drain(); n > 0 {
			debug.LogEvery(600, "tui", "drained %d", n)
		}
		return m, frame()

	case UpdateMsg:
		if m.mode == modeProfiles {
			m.rebuildList()
		}
		return m, ListenForUpdates(m.Manager)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && m.mode == modeGrid {
			if i, j, ok := m.gridWidget().HitTest(msg.X, msg.Y-gridTop); ok {
				m.cursorI, m.cursorJ = i, j
				m.report(m.Manager.Toggle(i, j))
			}
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	switch m.mode {
	case modeNaming:
		m.handleNaming(msg)
		return m, nil
	case modeProfiles:
		if key == "q" {
			return m.quit()
		}
		m.handleProfiles(key)
		return m, nil
	}

	n := m.Manager.Grid().Size()
	sched := m.Manager.Scheduler()
	m.status = ""

	switch key {
	case "q":
		return m.quit()

	case "h", "left":
		m.cursorJ = (m.cursorJ + n - 1) % n
	case "l", "right":
		m.cursorJ = (m.cursorJ + 1) % n
	case "k", "up":
		m.cursorI = (m.cursorI + n - 1) % n
	case "j", "down":
		m.cursorI = (m.cursorI + 1) % n

	case " ", "enter":
		m.report(m.Manager.Toggle(m.cursorI, m.cursorJ))

	case "c":
		m.Manager.Grid().ClearAll()

	case "p":
		if sched.Running() {
			m.Manager.Stop()
		} else {
			m.report(m.Manager.Start())
		}

	case "+", "=":
		m.report(m.Manager.SetTempo(sched.Tempo() + tempoStep))
	case "-", "_":
		if sched.Tempo() > tempoStep {
			m.report(m.Manager.SetTempo(sched.Tempo() - tempoStep))
		}

	case "t":
		next := m.Manager.CycleTuning()
		m.status = "tuning: " + string(next)

	case "T":
		if bpm, ok := m.Manager.Tap(); ok {
			m.status = fmt.Sprintf("tap: %.0f bpm", bpm)
		} else {
			m.status = "tap again"
		}

	case "s":
		m.mode = modeNaming
		m.name = m.name[:0]

	case "tab", "o":
		m.mode = modeProfiles
		m.rebuildList()
	}

	return m, nil
}

func (m *Model) handleNaming(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeGrid
	case tea.KeyEnter:
		name := strings.TrimSpace(string(m.name))
		if name == "" {
			name = time.Now().Format("Jan 2 15:04")
		}
		rec, err := m.Manager.Save(name)
		if m.report(err) {
			m.status = "saved " + rec.Name
		}
		m.mode = modeGrid
	case tea.KeyBackspace:
		if len(m.name) > 0 {
			m.name = m.name[:len(m.name)-1]
		}
	case tea.KeySpace:
		m.name = append(m.name, ' ')
	case tea.KeyRunes:
		m.name = append(m.name, msg.Runes...)
	}
}

func (m *Model) handleProfiles(key string) {
	m.status = ""
	switch key {
	case "esc", "tab":
		m.mode = modeGrid
	case "j", "down":
		m.list.Move(1)
	case "k", "up":
		m.list.Move(-1)

	case "enter", "l":
		if e, ok := m.selected(); ok && e.kind == entrySave {
			m.Manager.Load(e.record)
			m.status = "loaded " + e.record.Name
			m.mode = modeGrid
		}

	case "d":
		if e, ok := m.selected(); ok && e.kind == entrySave && e.local {
			if m.report(m.Manager.DeleteSave(e.record.ID)) {
				m.status = "deleted " + e.record.Name
			}
		}

	case "b":
		if e, ok := m.selected(); ok && !e.local && e.kind != entryBlocked {
			m.report(m.Manager.Block(e.profile))
		}

	case "u":
		if e, ok := m.selected(); ok && e.kind == entryBlocked {
			m.report(m.Manager.Unblock(e.profile))
		}
	}
	m.rebuildList()
}

func (m Model) selected() (entry, bool) {
	if m.list.Selected < 0 || m.list.Selected >= len(m.entries) {
		return entry{}, false
	}
	return m.entries[m.list.Selected], true
}

// rebuildList flattens profiles into rows: each profile, its saves, then
// the local block list
func (m *Model) rebuildList() {
	profiles := m.Manager.Profiles()
	local := m.Manager.LocalProfile()

	m.entries = m.entries[:0]
	m.list.Items = m.list.Items[:0]
	add := func(e entry, item widgets.ListItem) {
		m.entries = append(m.entries, e)
		m.list.Items = append(m.list.Items, item)
	}

	for _, p := range profiles {
		isLocal := p.ID == local.ID
		title := p.Name
		if title == "" {
			title = shortID(p.ID)
		}
		if isLocal {
			title += " (you)"
		}
		add(entry{kind: entryProfile, profile: p.ID, local: isLocal},
			widgets.ListItem{Title: title, Detail: fmt.Sprintf("%d saves", len(p.Saves))})

		for _, r := range p.Saves {
			add(entry{kind: entrySave, profile: p.ID, local: isLocal, record: r},
				widgets.ListItem{
					Title:  r.Name,
					Detail: fmt.Sprintf("%s %.0fbpm %d cells", r.Tuning, r.Tempo, len(r.ActiveGridItems)),
					Indent: 1,
				})
		}
	}

	for _, b := range local.Blocks {
		name := b.Name
		if name == "" {
			name = shortID(b.Address)
		}
		add(entry{kind: entryBlocked, profile: b.Address},
			widgets.ListItem{Title: name, Detail: "blocked"})
	}
	m.list.Clamp()
}

// report shows err in the status line; true when there was none
func (m *Model) report(err error) bool {
	if err != nil {
		m.status = err.Error()
		debug.Log("tui", "error: %v", err)
		return false
	}
	return true
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Manager.Stop()
	return m, tea.Quit
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (m Model) gridWidget() widgets.Grid {
	mgr := m.Manager
	g := mgr.Grid()
	board := mgr.Board()
	tu := mgr.Scheduler().Tuning()
	span := mgr.Propagator().Span()
	sym := m.Theme.Symbols

	playhead := -1
	if mgr.Scheduler().Running() {
		playhead = mgr.Scheduler().Column()
	}

	return widgets.Grid{
		Size: g.Size(),
		Cell: func(i, j int) (rune, lipgloss.Color) {
			idx := g.Index(i, j)
			enabled := g.Enabled(i, j)
			mark := board.Strongest(idx)
			age, _ := board.Age(idx, mark)

			r := sym.CellOff
			switch {
			case enabled:
				r = sym.CellOn
			case mark != 0:
				r = sym.CellRipple
			}
			return r, m.Theme.CellColor(tu, enabled, mark, age, span)
		},
		CursorI:     m.cursorI,
		CursorJ:     m.cursorJ,
		Cursor:      sym.Cursor,
		Playhead:    playhead,
		Marker:      sym.Playhead,
		CursorColor: m.Theme.Cursor(),
		MarkerColor: m.Theme.Accent(),
	}
}

// legend explains the cell colours for the current tuning
func (m Model) legend() string {
	tu := m.Manager.Scheduler().Tuning()
	span := m.Manager.Propagator().Span()
	lines := []string{
		widgets.RenderLegendItem(m.Theme.TuningColor(tu), "On", "plays in "+tu.Name),
		widgets.RenderLegendItem(m.Theme.CellColor(tu, false, anim.Triggered, 0, span), "Ripple", "fades after a hit"),
		widgets.RenderLegendItem(m.Theme.Cursor(), "Cursor", "selected cell"),
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sched := m.Manager.Scheduler()
	tu := sched.Tuning()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	tuningStyle := lipgloss.NewStyle().Foreground(m.Theme.TuningColor(tu))
	statusStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playState := "STOP"
	if sched.Running() {
		playState = "PLAY"
	}
	header := headerStyle.Render(fmt.Sprintf("go-ripple  %s  %3.0fbpm  col:%02d  ", playState, sched.Tempo(), sched.Column())) +
		tuningStyle.Render(tu.Name)

	var body, help string
	switch m.mode {
	case modeProfiles:
		m.list.SelectedColor = m.Theme.Cursor()
		m.list.DetailColor = m.Theme.Muted()
		body = m.list.View()
		help = widgets.RenderKeyHelp(profileKeys)
	case modeNaming:
		body = m.gridWidget().View() + "\n\nsave as: " + string(m.name) + "█"
		help = widgets.RenderKeyHelp(namingKeys)
	default:
		body = m.gridWidget().View() + "\n\n" + m.legend()
		help = widgets.RenderKeyHelp(gridKeys)
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(help))
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}
	return out.String()
}
