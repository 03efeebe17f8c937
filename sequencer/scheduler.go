package sequencer

import (
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"go-ripple/grid"
	"go-ripple/loop"
	"go-ripple/tuning"
)

// DefaultTempo is the BPM of a fresh session
const DefaultTempo = 150

// ErrInvalidTempo is returned for a tempo that isn't a positive number
var ErrInvalidTempo = errors.New("sequencer: tempo must be positive")

// ToneGenerator plays pitches. Init runs once before the first note.
type ToneGenerator interface {
	Init() error
	Trigger(p tuning.Pitch)
}

// Animator starts the visual ripple for a triggered cell
type Animator interface {
	Trigger(i, j int) error
}

// Timer is the part of loop.Loop the scheduler needs
type Timer interface {
	Every(interval time.Duration, fn func()) loop.Handle
	Cancel(h loop.Handle) bool
}

// Interval is the time between columns: 500 / (bpm/60) ms
func Interval(bpm float64) time.Duration {
	return time.Duration(500 / (bpm / 60) * float64(time.Millisecond))
}

// Scheduler plays the grid column by column. It owns at most one tick
// registration on its Timer. All methods run on the loop goroutine.
type Scheduler struct {
	grid  *grid.Grid
	tone  ToneGenerator
	anim  Animator
	timer Timer
	log   log.FieldLogger

	column    int
	tempo     float64
	tuning    tuning.Tuning
	running   bool
	tick      loop.Handle // 0 = no registration
	toneReady bool

	// OnColumn, if set, is called after each column is played
	OnColumn func(column int)
}

// NewScheduler creates a stopped scheduler at DefaultTempo and the default tuning
func NewScheduler(g *grid.Grid, tone ToneGenerator, anim Animator, timer Timer) *Scheduler {
	t, _ := tuning.Lookup(tuning.Default)
	return &Scheduler{
		grid:   g,
		tone:   tone,
		anim:   anim,
		timer:  timer,
		log:    log.WithField("cat", "scheduler"),
		tempo:  DefaultTempo,
		tuning: t,
	}
}

// SetLogger replaces the scheduler's logger
func (s *Scheduler) SetLogger(l log.FieldLogger) {
	s.log = l
}

// Column returns the current column
func (s *Scheduler) Column() int { return s.column }

// Tempo returns the BPM
func (s *Scheduler) Tempo() float64 { return s.tempo }

// Tuning returns the active tuning
func (s *Scheduler) Tuning() tuning.Tuning { return s.tuning }

// Running reports whether the loop is playing
func (s *Scheduler) Running() bool { return s.running }

// Interval returns the tick interval at the current tempo
func (s *Scheduler) Interval() time.Duration { return Interval(s.tempo) }

// Start begins playback. The tone generator is initialised on the first
// successful Start; an Init failure is returned and the next Start retries.
// The current column plays immediately. Starting while running only
// re-registers the tick, it never doubles it.
func (s *Scheduler) Start() error {
	if !s.toneReady {
		if err := s.tone.Init(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		s.toneReady = true
	}

	if s.running {
		s.register()
		return nil
	}

	s.running = true
	s.play(s.column)
	s.register()
	s.log.WithField("tempo", s.tempo).Debug("started")
	return nil
}

// Stop cancels the tick and rewinds to column 0. Pulses already on the
// loop are left to expire.
func (s *Scheduler) Stop() {
	s.cancel()
	s.running = false
	s.column = 0
	s.log.Debug("stopped")
}

// SetTempo changes the BPM. While running the tick is re-registered at the
// new interval without rewinding.
func (s *Scheduler) SetTempo(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("%v: %w", bpm, ErrInvalidTempo)
	}
	s.tempo = bpm
	if s.running {
		s.register()
	}
	return nil
}

// SetTuning switches tuning. Unknown keys leave the current tuning in place.
func (s *Scheduler) SetTuning(key tuning.Key) error {
	t, err := tuning.Get(key)
	if err != nil {
		return err
	}
	s.tuning = t
	if s.running {
		s.register()
	}
	return nil
}

// register replaces any live tick with one at the current interval
func (s *Scheduler) register() {
	s.cancel()
	s.tick = s.timer.Every(s.Interval(), s.advance)
}

func (s *Scheduler) cancel() {
	if s.tick != 0 {
		s.timer.Cancel(s.tick)
		s.tick = 0
	}
}

// advance is the tick: next column, then play it
func (s *Scheduler) advance() {
	s.column = (s.column + 1) % s.grid.Size()
	s.play(s.column)
}

// play triggers every enabled cell of a column. Failures are logged and
// never escape, so one bad cell can't stop the loop.
func (s *Scheduler) play(col int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("column", col).Errorf("tick panicked: %v", r)
		}
	}()

	for _, c := range s.grid.Column(col) {
		pitch, err := s.tuning.Note(c.I)
		if err != nil {
			s.log.WithError(err).WithField("row", c.I).Warn("no pitch for row")
		} else {
			s.tone.Trigger(pitch)
		}

		if err := s.anim.Trigger(c.I, c.J); err != nil {
			s.log.WithError(err).Warn("ripple failed")
		}
	}

	if s.OnColumn != nil {
		s.OnColumn(col)
	}
}
