package sequencer

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"go-ripple/anim"
	"go-ripple/grid"
	"go-ripple/loop"
	"go-ripple/replica"
	"go-ripple/save"
	"go-ripple/tuning"
)

var (
	// ErrNoSave is returned when a save id isn't in the local profile
	ErrNoSave = errors.New("sequencer: no such save")
	// ErrSelfBlock is returned when blocking the local peer
	ErrSelfBlock = errors.New("sequencer: cannot block yourself")
)

// Options configures a Manager. Zero values take the defaults.
type Options struct {
	Size    int
	Unit    time.Duration
	Variant anim.Variant
	Tempo   float64
	Tuning  tuning.Key
	Name    string // display name on the local profile
	Seed    bool   // start with the diagonal pattern
}

// Manager wires grid, ripple, playback and the save gateway together.
// Every method must run on the loop goroutine.
type Manager struct {
	loop       *loop.Loop
	grid       *grid.Grid
	board      *anim.Board
	propagator *anim.Propagator
	scheduler  *Scheduler
	tap        *TapTempo
	gateway    replica.Gateway
	log        log.FieldLogger

	local    save.Profile
	profiles []save.Profile // validated, block-filtered, local first

	// Notify TUI of updates
	UpdateChan chan struct{}
}

// NewManager builds a session on l. Gateway changes are posted back onto
// the loop, so handlers never touch state from another goroutine.
func NewManager(l *loop.Loop, tone ToneGenerator, gw replica.Gateway, opts Options) *Manager {
	size := opts.Size
	if size <= 0 {
		size = grid.DefaultSize
	}

	g := grid.New(size)
	if opts.Seed {
		g.SeedDiagonal()
	}
	board := anim.NewBoard(size*size, l)

	m := &Manager{
		loop:       l,
		grid:       g,
		board:      board,
		propagator: anim.NewPropagator(l, g, board, opts.Unit, opts.Variant),
		tap:        NewTapTempo(l),
		gateway:    gw,
		log:        log.WithField("cat", "manager"),
		UpdateChan: make(chan struct{}, 1),
	}
	m.scheduler = NewScheduler(g, tone, m.propagator, l)
	m.scheduler.OnColumn = func(int) { m.notify() }

	if opts.Tempo > 0 {
		_ = m.scheduler.SetTempo(opts.Tempo)
	}
	if opts.Tuning != "" {
		if err := m.scheduler.SetTuning(opts.Tuning); err != nil {
			m.log.WithError(err).Warn("configured tuning ignored")
		}
	}

	m.local = save.Profile{ID: gw.PublicKey(), Name: opts.Name, Saves: []save.Record{}}
	m.refresh()
	if m.local.Name == "" && opts.Name != "" {
		m.local.Name = opts.Name
	}

	gw.OnChange(func(string) {
		l.Post(m.refresh)
	})
	return m
}

// Grid returns the session's grid
func (m *Manager) Grid() *grid.Grid { return m.grid }

// Board returns the ripple markers
func (m *Manager) Board() *anim.Board { return m.board }

// Propagator returns the ripple scheduler
func (m *Manager) Propagator() *anim.Propagator { return m.propagator }

// Scheduler returns the playback scheduler
func (m *Manager) Scheduler() *Scheduler { return m.scheduler }

// LocalProfile returns a copy of the local peer's profile
func (m *Manager) LocalProfile() save.Profile {
	p := m.local
	p.Saves = append([]save.Record(nil), m.local.Saves...)
	p.Blocks = append([]save.Block(nil), m.local.Blocks...)
	return p
}

// Profiles returns the listing: local profile first, then peers in id
// order, minus anything malformed or blocked
func (m *Manager) Profiles() []save.Profile {
	return append([]save.Profile(nil), m.profiles...)
}

// Toggle flips a cell
func (m *Manager) Toggle(i, j int) error {
	if err := m.grid.Toggle(i, j); err != nil {
		return err
	}
	m.notify()
	return nil
}

// Start begins playback
func (m *Manager) Start() error {
	err := m.scheduler.Start()
	m.notify()
	return err
}

// Stop halts playback and rewinds
func (m *Manager) Stop() {
	m.scheduler.Stop()
	m.notify()
}

// SetTempo changes the BPM
func (m *Manager) SetTempo(bpm float64) error {
	if err := m.scheduler.SetTempo(bpm); err != nil {
		return err
	}
	m.notify()
	return nil
}

// SetTuning switches tuning
func (m *Manager) SetTuning(key tuning.Key) error {
	if err := m.scheduler.SetTuning(key); err != nil {
		return err
	}
	m.notify()
	return nil
}

// CycleTuning moves to the next tuning
func (m *Manager) CycleTuning() tuning.Key {
	next := tuning.Next(m.scheduler.Tuning().Key)
	_ = m.SetTuning(next)
	return next
}

// Tap registers a tap-tempo tap, applying the tempo once there is one
func (m *Manager) Tap() (float64, bool) {
	bpm, ok := m.tap.Tap()
	if !ok {
		return 0, false
	}
	if err := m.SetTempo(bpm); err != nil {
		return 0, false
	}
	return bpm, true
}

// Save captures the session as a new record on the local profile
func (m *Manager) Save(name string) (save.Record, error) {
	rec := save.Serialize(m.grid, m.scheduler.Tuning().Key, m.scheduler.Tempo(), name)

	next := m.LocalProfile()
	next.Saves = append(next.Saves, rec)
	if err := m.publish(next); err != nil {
		return save.Record{}, err
	}
	m.log.WithField("save", rec.ID).Info("saved")
	return rec, nil
}

// Load applies a record to the session. Playback keeps running.
func (m *Manager) Load(r save.Record) {
	save.Deserialize(r, m)
	m.board.Clear()
	m.notify()
}

// DeleteSave removes a record from the local profile
func (m *Manager) DeleteSave(id string) error {
	next := m.LocalProfile()
	kept := next.Saves[:0]
	for _, r := range next.Saves {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(next.Saves) {
		return fmt.Errorf("delete %q: %w", id, ErrNoSave)
	}
	next.Saves = kept
	return m.publish(next)
}

// Block hides a peer's profile. Blocking twice is a no-op.
func (m *Manager) Block(peerID string) error {
	if peerID == m.local.ID {
		return ErrSelfBlock
	}
	if m.local.Blocked(peerID) {
		return nil
	}

	name := ""
	for _, p := range m.profiles {
		if p.ID == peerID {
			name = p.Name
			break
		}
	}

	next := m.LocalProfile()
	next.Blocks = append(next.Blocks, save.Block{Address: peerID, Name: name})
	return m.publish(next)
}

// Unblock shows a peer's profile again
func (m *Manager) Unblock(peerID string) error {
	if !m.local.Blocked(peerID) {
		return nil
	}
	next := m.LocalProfile()
	kept := next.Blocks[:0]
	for _, b := range next.Blocks {
		if b.Address != peerID {
			kept = append(kept, b)
		}
	}
	next.Blocks = kept
	return m.publish(next)
}

// publish writes the local profile through the gateway and only adopts it
// once the write succeeded
func (m *Manager) publish(p save.Profile) error {
	if err := m.gateway.Set(p); err != nil {
		return fmt.Errorf("publish profile: %w", err)
	}
	m.local = p
	m.refresh()
	return nil
}

// refresh reloads every profile from the gateway. The local profile is read
// by its own id only; a peer document carrying that id is never adopted.
func (m *Manager) refresh() {
	if raw, ok, err := m.gateway.Get(m.local.ID); err != nil {
		m.log.WithError(err).Warn("local profile read failed")
	} else if ok {
		p, err := save.Decode(raw)
		switch {
		case err != nil:
			m.log.WithError(err).Warn("local profile unreadable")
		case p.ID != m.local.ID:
			m.log.WithField("id", p.ID).Warn("local slot holds another profile")
		default:
			p.Sig = ""
			m.local = p
		}
	}

	raws, err := m.gateway.GetAll()
	if err != nil {
		m.log.WithError(err).Warn("profile refresh failed")
		return
	}

	var peers []save.Profile
	for _, raw := range raws {
		p, err := save.Verify(raw)
		if err != nil {
			m.log.WithError(err).Debug("dropping profile")
			continue
		}
		if p.ID == m.local.ID {
			continue
		}
		peers = append(peers, p)
	}
	m.rebuild(peers)
}

// rebuild assembles the listing from the local profile and peers, then
// drops blocked peers
func (m *Manager) rebuild(peers []save.Profile) {
	list := []save.Profile{m.LocalProfile()}
	for _, p := range peers {
		if m.local.Blocked(p.ID) {
			continue
		}
		list = append(list, p)
	}
	m.profiles = list
	m.notify()
}

// notify signals the TUI without blocking
func (m *Manager) notify() {
	select {
	case m.UpdateChan <- struct{}{}:
	default:
	}
}
