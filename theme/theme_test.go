package theme

import (
	"math"
	"strings"
	"testing"
	"time"

	"go-ripple/anim"
	"go-ripple/tuning"
)

func TestTuningColorsResolve(t *testing.T) {
	th := New(nil)
	accent := th.Palette.Lookup(RoleAccent)

	for _, tu := range tuning.All() {
		if got := th.TuningRGB(tu); got == accent {
			t.Errorf("expected %s colour %q to resolve, got the accent fallback", tu.Key, tu.Color)
		}
	}

	chin, _ := tuning.Lookup(tuning.ChinesePentatonic)
	if got := th.TuningRGB(chin); got != (RGB{0x00, 0xa8, 0x6b}) {
		t.Errorf("expected #00a86b, got %s", got.Hex())
	}

	odd := tuning.Tuning{Color: "chartreuse-ish"}
	if got := th.TuningRGB(odd); got != accent {
		t.Errorf("expected accent fallback, got %s", got.Hex())
	}
}

func TestPulseWeightEasesOut(t *testing.T) {
	span := 300 * time.Millisecond

	if w := PulseWeight(anim.Triggered, 0, span); math.Abs(w-1) > 1e-6 {
		t.Errorf("expected full weight at start, got %v", w)
	}
	if w := PulseWeight(anim.Neighbor, 0, span); math.Abs(w-0.6) > 1e-6 {
		t.Errorf("expected neighbor strength 0.6, got %v", w)
	}
	if w := PulseWeight(anim.Triggered, span, span); w > 1e-6 {
		t.Errorf("expected faded out at span, got %v", w)
	}
	if w := PulseWeight(0, 0, span); w != 0 {
		t.Errorf("expected no weight without a marker, got %v", w)
	}

	prev := 2.0
	for age := time.Duration(0); age <= span; age += 25 * time.Millisecond {
		w := PulseWeight(anim.SecondNeighbor, age, span)
		if w > prev {
			t.Errorf("expected weight to fall, got %v after %v at %v", w, prev, age)
		}
		prev = w
	}
}

func TestCellRGB(t *testing.T) {
	th := New(nil)
	tu, _ := tuning.Lookup(tuning.MajorPentatonic)
	span := 250 * time.Millisecond

	if got := th.CellRGB(tu, true, 0, 0, span); got != th.TuningRGB(tu) {
		t.Errorf("expected plain tuning colour, got %s", got.Hex())
	}
	if got := th.CellRGB(tu, false, 0, 0, span); got != th.Palette.Lookup(RoleSurface) {
		t.Errorf("expected surface colour, got %s", got.Hex())
	}
	fresh := th.CellRGB(tu, false, anim.Triggered, 0, span)
	faded := th.CellRGB(tu, false, anim.Triggered, span, span)
	if fresh == th.Palette.Lookup(RoleSurface) {
		t.Error("expected a fresh trigger to lift the cell colour")
	}
	if faded != th.Palette.Lookup(RoleSurface) {
		t.Errorf("expected a spent pulse to show the surface, got %s", faded.Hex())
	}
}

func TestParseGPL(t *testing.T) {
	src := `GIMP Palette
Name: test
Columns: 2
# comment
0 0 0	black
255 128 0	orange
999 0 0	bad
`
	p, err := ParseGPL(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "test" {
		t.Errorf("expected name test, got %q", p.Name)
	}
	if len(p.Colors) != 2 {
		t.Fatalf("expected 2 colours, got %d", len(p.Colors))
	}
	if p.Lookup(0) != (RGB{0, 0, 0}) || p.Lookup(1) != (RGB{255, 128, 0}) {
		t.Errorf("expected endpoints, got %v %v", p.Lookup(0), p.Lookup(1))
	}

	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Error("expected error for empty palette")
	}
}
