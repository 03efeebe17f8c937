package save

import (
	"encoding/json"

	"github.com/google/uuid"

	"go-ripple/grid"
	"go-ripple/tuning"
)

// Record is one saved pattern. Field names are the shared wire format.
type Record struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Tuning          tuning.Key   `json:"tuning"` // may name a retired tuning
	Tempo           float64      `json:"tempo"`
	ActiveGridItems []grid.Coord `json:"activeGridItems"`
}

// UnmarshalJSON takes any id or tuning value. A tuning that isn't a string
// can't name a known tuning, so it loads as unknown and the current one
// stays.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var aux struct {
		plain
		ID     json.RawMessage `json:"id"`
		Tuning json.RawMessage `json:"tuning"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)

	if s, ok := rawString(aux.ID); ok {
		r.ID = s
	} else {
		r.ID = string(aux.ID)
	}
	if s, ok := rawString(aux.Tuning); ok {
		r.Tuning = tuning.Key(s)
	} else {
		r.Tuning = ""
	}
	return nil
}

func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return "", false
	}
	return s, true
}

// Block hides a peer's profile from the local listing
type Block struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Profile is a peer's published container of saves
type Profile struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Saves  []Record `json:"saves"`
	Blocks []Block  `json:"blocks,omitempty"`
	Sig    string   `json:"sig,omitempty"` // owner's signature, see Sign
}

// Find returns the save with the given id
func (p *Profile) Find(id string) (Record, bool) {
	for _, r := range p.Saves {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Blocked reports whether a peer address is on the block list
func (p *Profile) Blocked(address string) bool {
	for _, b := range p.Blocks {
		if b.Address == address {
			return true
		}
	}
	return false
}

// Serialize captures the grid and playback settings as a new record
func Serialize(g *grid.Grid, key tuning.Key, tempo float64, name string) Record {
	return Record{
		ID:              uuid.NewString(),
		Name:            name,
		Tuning:          key,
		Tempo:           tempo,
		ActiveGridItems: g.SerializeActive(),
	}
}

// Target is what a record is loaded into
type Target interface {
	SetTempo(bpm float64) error
	SetTuning(key tuning.Key) error
	Grid() *grid.Grid
}

// Deserialize applies a record: tempo, then tuning if it is still known
// (otherwise the current one stays), then the cells. Out-of-range cells are
// dropped by the grid. Nothing here fails on stale data.
func Deserialize(r Record, t Target) {
	if r.Tempo > 0 {
		// Cannot fail for positive tempo
		_ = t.SetTempo(r.Tempo)
	}
	if _, ok := tuning.Lookup(r.Tuning); ok {
		_ = t.SetTuning(r.Tuning)
	}
	t.Grid().LoadCells(r.ActiveGridItems)
}
