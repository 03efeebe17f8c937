package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"go-ripple/grid"
)

// ErrInvalidProfile is returned for peer data that fails validation
var ErrInvalidProfile = errors.New("save: invalid profile")

// Validate reports whether raw profile JSON has the shape this app relies
// on. Anything from another peer goes through here before it is shown or
// loaded; a profile that fails any check is rejected whole. A document that
// passes always decodes.
func Validate(raw []byte) bool {
	if !gjson.ValidBytes(raw) {
		return false
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() || !uniqueKeys(doc) {
		return false
	}

	id := doc.Get("id")
	if id.Type != gjson.String || id.Str == "" {
		return false
	}
	if doc.Get("name").Type != gjson.String {
		return false
	}
	if sig := doc.Get("sig"); sig.Exists() && sig.Type != gjson.String {
		return false
	}

	saves := doc.Get("saves")
	if !saves.IsArray() {
		return false
	}
	for _, s := range saves.Array() {
		if !validSave(s) {
			return false
		}
	}

	if blocks := doc.Get("blocks"); blocks.Exists() {
		if !blocks.IsArray() {
			return false
		}
		for _, b := range blocks.Array() {
			if !b.IsObject() || b.Get("address").Type != gjson.String {
				return false
			}
			if name := b.Get("name"); name.Exists() && name.Type != gjson.String {
				return false
			}
		}
	}

	return true
}

func validSave(s gjson.Result) bool {
	if !s.IsObject() {
		return false
	}
	if !s.Get("id").Exists() {
		return false
	}
	if s.Get("name").Type != gjson.String {
		return false
	}
	// Any value: it may name a tuning that has since been retired
	if !s.Get("tuning").Exists() {
		return false
	}
	if tempo := s.Get("tempo"); tempo.Type != gjson.Number || math.IsInf(tempo.Num, 0) {
		return false
	}

	items := s.Get("activeGridItems")
	if !items.IsArray() {
		return false
	}
	for _, it := range items.Array() {
		if !it.IsObject() || !isInt(it.Get("i")) || !isInt(it.Get("j")) {
			return false
		}
	}
	return true
}

// isInt accepts integer literals only: 1.0 and 1e0 don't decode into int
func isInt(r gjson.Result) bool {
	if r.Type != gjson.Number {
		return false
	}
	_, err := strconv.Atoi(r.Raw)
	return err == nil
}

// uniqueKeys reports whether no object under r repeats a key. Keys are
// folded the way encoding/json matches field names.
func uniqueKeys(r gjson.Result) bool {
	ok := true
	switch {
	case r.IsObject():
		seen := make(map[string]bool)
		r.ForEach(func(k, v gjson.Result) bool {
			key := strings.ToLower(strings.ToUpper(k.Str))
			if seen[key] || !uniqueKeys(v) {
				ok = false
				return false
			}
			seen[key] = true
			return true
		})
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			ok = uniqueKeys(v)
			return ok
		})
	}
	return ok
}

// Decode validates raw profile JSON and unmarshals it. The signature is
// not checked here; see Verify.
func Decode(raw []byte) (Profile, error) {
	if !Validate(raw) {
		return Profile{}, ErrInvalidProfile
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if id := gjson.GetBytes(raw, "id").Str; p.ID != id {
		return Profile{}, fmt.Errorf("%w: id decodes as %q, reads as %q", ErrInvalidProfile, p.ID, id)
	}
	if p.Saves == nil {
		p.Saves = []Record{}
	}
	return p, nil
}

// Encode marshals a profile in the wire format. Nil lists are written as
// [] so the result always passes Validate.
func Encode(p Profile) ([]byte, error) {
	saves := make([]Record, len(p.Saves))
	copy(saves, p.Saves)
	for i := range saves {
		if saves[i].ActiveGridItems == nil {
			saves[i].ActiveGridItems = []grid.Coord{}
		}
	}
	p.Saves = saves
	return json.Marshal(p)
}
