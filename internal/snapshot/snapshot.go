// Package snapshot is an offscreen surface that rasterises frames into an
// RGBA image. It backs the globe-snapshot tool and headless tests.
package snapshot

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/model"
)

const (
	arcWidth    = 1.5
	markerSize  = 5.0
	lineSpacing = 15
	textMargin  = 8
)

var (
	ErrClosed  = errors.New("snapshot: surface closed")
	ErrNoFrame = errors.New("snapshot: nothing drawn yet")
)

// Surface renders into memory. It is not safe for concurrent use.
type Surface struct {
	width, height int
	footer        string

	img      *image.RGBA
	handler  core.InputHandler
	cursor   core.Cursor
	released int
	closed   bool
}

// New returns a w×h surface. Footer, if set, is printed under the status.
func New(w, h int, footer string) *Surface {
	return &Surface{width: w, height: h, footer: footer}
}

// Size implements view.Surface.
func (s *Surface) Size() (int, int) { return s.width, s.height }

// Bind implements view.Surface.
func (s *Surface) Bind(h core.InputHandler) func() {
	s.handler = h
	return func() {
		if s.handler == h {
			s.handler = nil
		}
	}
}

// Inject runs fn against the bound input handler. It reports false when
// nothing is bound.
func (s *Surface) Inject(fn func(h core.InputHandler)) bool {
	if s.handler == nil {
		return false
	}
	fn(s.handler)
	return true
}

// SetCursor implements view.Surface.
func (s *Surface) SetCursor(c core.Cursor) { s.cursor = c }

// Cursor returns the last cursor hint.
func (s *Surface) Cursor() core.Cursor { return s.cursor }

// ReleaseScene implements view.Surface.
func (s *Surface) ReleaseScene(*core.Scene) { s.released++ }

// Released returns how many scenes have been handed back.
func (s *Surface) Released() int { return s.released }

// Close implements view.Surface. The last image stays readable.
func (s *Surface) Close() error {
	s.closed = true
	s.handler = nil
	return nil
}

// Image returns the last rendered frame.
func (s *Surface) Image() *image.RGBA { return s.img }

// Draw implements view.Surface.
func (s *Surface) Draw(f *core.Frame) error {
	if s.closed {
		return ErrClosed
	}
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 {
		return fmt.Errorf("snapshot: bad frame size %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c, _ := f.ShadeGlobe(float64(x)+0.5, float64(y)+0.5)
			img.SetRGBA(x, y, rgba(c, 1))
		}
	}

	for _, a := range f.Arcs {
		drawArc(img, a)
	}
	for _, m := range f.Markers {
		if m.Visible {
			drawMarker(img, m)
		}
	}
	s.drawText(img, f)
	s.img = img
	return nil
}

// WritePNG encodes the last frame.
func (s *Surface) WritePNG(w io.Writer) error {
	if s.img == nil {
		return ErrNoFrame
	}
	return png.Encode(w, s.img)
}

// SavePNG writes the last frame to path.
func (s *Surface) SavePNG(path string) (err error) {
	if s.img == nil {
		return ErrNoFrame
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return s.WritePNG(f)
}

func drawArc(img *image.RGBA, a core.ScreenArc) {
	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	segments := 0
	for i := 1; i < len(a.Points); i++ {
		p0, p1 := a.Points[i-1], a.Points[i]
		if !p0.Visible || !p1.Visible {
			continue
		}
		if segmentQuad(z, p0.X, p0.Y, p1.X, p1.Y, arcWidth/2) {
			segments++
		}
	}
	if segments == 0 {
		return
	}
	src := image.NewUniform(rgba(a.Arc.Color, a.Arc.Opacity))
	z.Draw(img, b, src, image.Point{})
}

// segmentQuad adds a thin rectangle around the segment to z.
func segmentQuad(z *vector.Rasterizer, x0, y0, x1, y1, half float64) bool {
	dx, dy := x1-x0, y1-y0
	n := math.Hypot(dx, dy)
	if n == 0 {
		return false
	}
	nx, ny := -dy/n*half, dx/n*half
	z.MoveTo(float32(x0+nx), float32(y0+ny))
	z.LineTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.LineTo(float32(x0-nx), float32(y0-ny))
	z.ClosePath()
	return true
}

func drawMarker(img *image.RGBA, m core.ScreenMarker) {
	b := img.Bounds()
	size := markerSize
	if m.Hovered || m.Selected {
		size *= 1.5
	}
	x, y := m.X, m.Y
	if x < -size || y < -size || x > float64(b.Dx())+size || y > float64(b.Dy())+size {
		return
	}
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(float32(x), float32(y-size))
	z.LineTo(float32(x+size), float32(y+size))
	z.LineTo(float32(x-size), float32(y+size))
	z.ClosePath()
	z.Draw(img, b, image.NewUniform(rgba(m.Marker.Color, 1)), image.Point{})

	if m.Selected {
		ring := vector.NewRasterizer(b.Dx(), b.Dy())
		r := size + 3
		const steps = 24
		for i := 0; i < steps; i++ {
			a0 := 2 * math.Pi * float64(i) / steps
			a1 := 2 * math.Pi * float64(i+1) / steps
			segmentQuad(ring, x+r*math.Cos(a0), y+r*math.Sin(a0), x+r*math.Cos(a1), y+r*math.Sin(a1), 0.75)
		}
		ring.Draw(img, b, image.White, image.Point{})
	}
}

func (s *Surface) drawText(img *image.RGBA, f *core.Frame) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.White, Face: face}
	at := func(x, line int) {
		d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(textMargin + face.Metrics().Ascent.Ceil() + line*lineSpacing)}
	}

	for i, l := range f.TooltipLines() {
		at(textMargin, i)
		d.DrawString(l)
	}

	lines := []string{}
	if sel := f.SelectionLine(); sel != "" {
		lines = append(lines, sel)
	}
	lines = append(lines, f.StatusLine())
	if s.footer != "" {
		lines = append(lines, s.footer)
	}
	bottom := (f.Height-textMargin)/lineSpacing - 1
	first := bottom - len(lines) + 1

	// Legend sits on the line above the status block.
	legend := first - 1
	x := textMargin
	for _, e := range model.Legend() {
		x = swatch(img, d, x, legend, e.Color, e.Label, at)
	}
	for _, c := range f.Palette.Categories() {
		x = swatch(img, d, x, legend, f.Palette.Color(c), string(c), at)
	}

	for i, l := range lines {
		at(textMargin, first+i)
		d.DrawString(l)
	}
}

func swatch(img *image.RGBA, d *font.Drawer, x, line int, c model.RGB, label string, at func(x, line int)) int {
	at(x, line)
	top := d.Dot.Y.Ceil() - 9
	box := image.Rect(x, top, x+9, top+9)
	draw.Draw(img, box, image.NewUniform(rgba(c, 1)), image.Point{}, draw.Src)
	at(x+13, line)
	d.DrawString(label)
	return d.Dot.X.Ceil() + 12
}

func rgba(c model.RGB, alpha float64) color.RGBA {
	a := uint8(math.Round(clamp01(alpha) * 255))
	// color.RGBA is alpha-premultiplied.
	pm := func(v uint8) uint8 { return uint8(math.Round(float64(v) * float64(a) / 255)) }
	return color.RGBA{R: pm(c.R), G: pm(c.G), B: pm(c.B), A: a}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
