package theme

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"go-ripple/anim"
	"go-ripple/tuning"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	CellOff    rune // · disabled
	CellOn     rune // ● enabled
	CellRipple rune // ○ disabled but rippling
	Cursor     rune // ◉ cursor overlay
	Playhead   rune // ▼ column marker
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			CellOff:    '·',
			CellOn:     '●',
			CellRipple: '○',
			Cursor:     '◉',
			Playhead:   '▼',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

// Pulse strength per marker, before fading
const (
	strengthTriggered = 1.0
	strengthNeighbor  = 0.6
	strengthSecond    = 0.35
)

// Style helpers

func (t *Theme) BG() lipgloss.Color      { return toLipgloss(t.Palette.Lookup(RoleBG)) }
func (t *Theme) FG() lipgloss.Color      { return toLipgloss(t.Palette.Lookup(RoleFG)) }
func (t *Theme) Accent() lipgloss.Color  { return toLipgloss(t.Palette.Lookup(RoleAccent)) }
func (t *Theme) Muted() lipgloss.Color   { return toLipgloss(t.Palette.Lookup(RoleMuted)) }
func (t *Theme) Active() lipgloss.Color  { return toLipgloss(t.Palette.Lookup(RoleActive)) }
func (t *Theme) Cursor() lipgloss.Color  { return toLipgloss(t.Palette.Lookup(RoleCursor)) }
func (t *Theme) Warning() lipgloss.Color { return toLipgloss(t.Palette.Lookup(RoleWarning)) }
func (t *Theme) Success() lipgloss.Color { return toLipgloss(t.Palette.Lookup(RoleSuccess)) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return toLipgloss(t.Palette.Lookup(norm))
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// Named colours tunings may use besides #hex
var named = map[string]string{
	"yellow": "#ffd700",
	"blue":   "#1e90ff",
	"red":    "#ff4040",
	"purple": "#9b30ff",
	"green":  "#32cd32",
	"orange": "#ffa500",
	"white":  "#ffffff",
}

// TuningRGB resolves a tuning's colour. Unknown names fall back to the
// palette's accent.
func (t *Theme) TuningRGB(tu tuning.Tuning) RGB {
	hex := strings.ToLower(tu.Color)
	if h, ok := named[hex]; ok {
		hex = h
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return t.Palette.Lookup(RoleAccent)
	}
	return fromColorful(c)
}

// TuningColor is TuningRGB for lipgloss
func (t *Theme) TuningColor(tu tuning.Tuning) lipgloss.Color {
	return toLipgloss(t.TuningRGB(tu))
}

// PulseWeight is how strongly a marker shows age into a pulse lasting
// span. It eases out from the marker's strength to zero.
func PulseWeight(m anim.Marker, age, span time.Duration) float64 {
	var strength float32
	switch m {
	case anim.Triggered:
		strength = strengthTriggered
	case anim.Neighbor:
		strength = strengthNeighbor
	case anim.SecondNeighbor:
		strength = strengthSecond
	default:
		return 0
	}
	if span <= 0 {
		return float64(strength)
	}
	if age < 0 {
		age = 0
	}

	tw := gween.New(strength, 0, float32(span.Seconds()), ease.OutQuad)
	w, _ := tw.Update(float32(age.Seconds()))
	if w < 0 {
		w = 0
	}
	return float64(w)
}

// CellRGB colours one cell: tuning colour when enabled, surface when not,
// lifted toward the highlight by any live ripple marker
func (t *Theme) CellRGB(tu tuning.Tuning, enabled bool, m anim.Marker, age, span time.Duration) RGB {
	base := t.Palette.Lookup(RoleSurface)
	if enabled {
		base = t.TuningRGB(tu)
	}
	w := PulseWeight(m, age, span)
	if w == 0 {
		return base
	}
	return Blend(base, t.Palette.Lookup(RoleSuccess), w)
}

// CellColor is CellRGB for lipgloss
func (t *Theme) CellColor(tu tuning.Tuning, enabled bool, m anim.Marker, age, span time.Duration) lipgloss.Color {
	return toLipgloss(t.CellRGB(tu, enabled, m, age, span))
}

func toLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(c.Hex())
}
