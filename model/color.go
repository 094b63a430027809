package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RGB is an 8-bit per channel color.
type RGB struct {
	R, G, B uint8
}

// Hex builds an RGB from a 0xRRGGBB literal.
func Hex(v uint32) RGB {
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// ParseRGB parses "#rrggbb" or "rrggbb".
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Hex(uint32(v)), nil
}

// String renders the color as #rrggbb.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Scale multiplies every channel by f, saturating at 255.
func (c RGB) Scale(f float64) RGB {
	return RGB{R: scaleChannel(c.R, f), G: scaleChannel(c.G, f), B: scaleChannel(c.B, f)}
}

// Blend composites c over dst with the given alpha in [0, 1].
func (c RGB) Blend(dst RGB, alpha float64) RGB {
	if alpha <= 0 {
		return dst
	}
	if alpha >= 1 {
		return c
	}
	mix := func(a, b uint8) uint8 {
		return uint8(float64(a)*alpha + float64(b)*(1-alpha) + 0.5)
	}
	return RGB{R: mix(c.R, dst.R), G: mix(c.G, dst.G), B: mix(c.B, dst.B)}
}

func scaleChannel(v uint8, f float64) uint8 {
	x := float64(v) * f
	switch {
	case x <= 0:
		return 0
	case x >= 255:
		return 255
	default:
		return uint8(x + 0.5)
	}
}

// Palette maps each category to its marker color.
type Palette map[Category]RGB

// NeutralColor is used for categories missing from a palette.
var NeutralColor = Hex(0xaaaaaa)

// DefaultPalette returns the three provider colors.
func DefaultPalette() Palette {
	return Palette{
		CategoryAWS:   Hex(0xff9900),
		CategoryGCP:   Hex(0x4285f4),
		CategoryAzure: Hex(0x0072c6),
	}
}

// Color returns the category color, or NeutralColor when unknown.
func (p Palette) Color(c Category) RGB {
	if col, ok := p[c]; ok {
		return col
	}
	return NeutralColor
}

// Categories lists the palette keys in a stable order.
func (p Palette) Categories() []Category {
	out := make([]Category, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Filters returns FilterAll followed by one filter per category.
func (p Palette) Filters() []Filter {
	cats := p.Categories()
	out := make([]Filter, 0, len(cats)+1)
	out = append(out, FilterAll)
	for _, c := range cats {
		out = append(out, Filter(c))
	}
	return out
}
