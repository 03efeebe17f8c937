package midi

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-ripple/tuning"
)

// Synth plays pitches as fixed-length notes on a MIDI output port
type Synth struct {
	portName string
	channel  uint8 // 0-15
	velocity uint8
	length   time.Duration
	log      log.FieldLogger

	open func(name string) (func(gomidi.Message) error, error)

	mu   sync.Mutex
	send func(gomidi.Message) error
}

// NewSynth creates a synth for a port (substring match, empty = first port).
// channel is 1-16 as printed on hardware.
func NewSynth(portName string, channel int, length time.Duration) *Synth {
	if channel < 1 || channel > 16 {
		channel = 1
	}
	if length <= 0 {
		length = 150 * time.Millisecond
	}
	return &Synth{
		portName: portName,
		channel:  uint8(channel - 1),
		velocity: 100,
		length:   length,
		log:      log.WithField("cat", "synth"),
		open:     openPort,
	}
}

// Init opens the output port. Safe to call again after a failure.
func (s *Synth) Init() error {
	send, err := s.open(s.portName)
	if err != nil {
		return fmt.Errorf("open midi out %q: %w", s.portName, err)
	}

	s.mu.Lock()
	s.send = send
	s.mu.Unlock()

	s.log.WithField("port", s.portName).Info("midi output ready")
	return nil
}

// Trigger plays p for the synth's note length. Fire-and-forget: failures
// are logged, never returned.
func (s *Synth) Trigger(p tuning.Pitch) {
	note, err := p.MIDINote()
	if err != nil {
		s.log.WithError(err).Warn("unplayable pitch")
		return
	}

	if !s.write(gomidi.NoteOn(s.channel, note, s.velocity)) {
		return
	}
	time.AfterFunc(s.length, func() {
		s.write(gomidi.NoteOff(s.channel, note))
	})
}

func (s *Synth) write(msg gomidi.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.send == nil {
		return false
	}
	if err := s.send(msg); err != nil {
		s.log.WithError(err).Warn("midi send failed")
		return false
	}
	return true
}
