package tuning

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknown is returned when a tuning key isn't in the table
var ErrUnknown = errors.New("tuning: unknown key")

// Key identifies a tuning in saves and config
type Key string

const (
	MajorPentatonic    Key = "maj5"
	MinorPentatonic    Key = "min5"
	ChinesePentatonic  Key = "chin5"
	JapanesePentatonic Key = "jap5"
	WholeTone          Key = "wholetone"
)

// Default is the tuning of a fresh session
const Default = MajorPentatonic

// Pitch is a scientific pitch name such as "C4", "Eb5" or "F#3"
type Pitch string

// Tuning maps grid rows to pitches. Notes[0] is the highest pitch (row 0).
type Tuning struct {
	Key   Key
	Name  string
	Color string // CSS color name or #rrggbb
	Notes []Pitch
}

// Note returns the pitch for a grid row
func (t Tuning) Note(row int) (Pitch, error) {
	if row < 0 || row >= len(t.Notes) {
		return "", fmt.Errorf("tuning %s: row %d out of range", t.Key, row)
	}
	return t.Notes[row], nil
}

// all is ordered for display; every list has 16 notes written low to high
var all = []Tuning{
	{
		Key:   MajorPentatonic,
		Name:  "Major Pentatonic",
		Color: "yellow",
		Notes: highFirst("C4", "D4", "E4", "G4", "A4", "C5", "D5", "E5", "G5", "A5", "C6", "D6", "E6", "G6", "A6", "C7"),
	},
	{
		Key:   MinorPentatonic,
		Name:  "Minor Pentatonic",
		Color: "blue",
		Notes: highFirst("C4", "D4", "Eb4", "G4", "Bb4", "C5", "D5", "Eb5", "G5", "Bb5", "C6", "D6", "Eb6", "G6", "Bb6", "C7"),
	},
	{
		Key:   ChinesePentatonic,
		Name:  "Chinese Pentatonic",
		Color: "#00A86B",
		Notes: highFirst("C4", "D4", "F4", "G4", "A4", "C5", "D5", "F5", "G5", "A5", "C6", "D6", "F6", "G6", "A6", "C7"),
	},
	{
		Key:   JapanesePentatonic,
		Name:  "Japanese Pentatonic",
		Color: "red",
		Notes: highFirst("C4", "Db4", "F4", "G4", "Ab4", "C5", "Db5", "F5", "G5", "Ab5", "C6", "Db6", "F6", "G6", "Ab6", "C7"),
	},
	{
		Key:   WholeTone,
		Name:  "Whole Tone",
		Color: "purple",
		Notes: highFirst("C4", "D4", "E4", "Gb4", "Ab4", "Bb4", "C5", "D5", "E5", "Gb5", "Ab5", "Bb5", "C6", "D6", "E6", "Gb6"),
	},
}

func highFirst(names ...string) []Pitch {
	out := make([]Pitch, len(names))
	for i, n := range names {
		out[len(names)-1-i] = Pitch(n)
	}
	return out
}

// All returns every known tuning in display order
func All() []Tuning {
	out := make([]Tuning, len(all))
	copy(out, all)
	return out
}

// Keys returns the known keys in display order
func Keys() []Key {
	keys := make([]Key, len(all))
	for i, t := range all {
		keys[i] = t.Key
	}
	return keys
}

// Lookup finds a tuning by key
func Lookup(key Key) (Tuning, bool) {
	for _, t := range all {
		if t.Key == key {
			return t, true
		}
	}
	return Tuning{}, false
}

// Get is Lookup with an ErrUnknown error
func Get(key Key) (Tuning, error) {
	t, ok := Lookup(key)
	if !ok {
		return Tuning{}, fmt.Errorf("%q: %w", key, ErrUnknown)
	}
	return t, nil
}

// Next cycles to the tuning after key (wrapping). Unknown keys yield the first.
func Next(key Key) Key {
	for i, t := range all {
		if t.Key == key {
			return all[(i+1)%len(all)].Key
		}
	}
	return all[0].Key
}

// semitone offsets from C
var letters = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// MIDINote converts a pitch name to a MIDI note number (C4 = 60)
func (p Pitch) MIDINote() (uint8, error) {
	s := string(p)
	if len(s) < 2 {
		return 0, fmt.Errorf("pitch %q: too short", s)
	}

	base, ok := letters[s[0]]
	if !ok {
		return 0, fmt.Errorf("pitch %q: bad letter", s)
	}

	rest := s[1:]
	switch rest[0] {
	case 'b':
		base--
		rest = rest[1:]
	case '#':
		base++
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("pitch %q: bad octave: %w", s, err)
	}

	note := (octave+1)*12 + base
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("pitch %q: outside MIDI range", s)
	}
	return uint8(note), nil
}
