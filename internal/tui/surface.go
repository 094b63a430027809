// Package tui renders the globe into a terminal with tcell. Each cell is one
// surface pixel; mouse and key events are handed to the view's goroutine
// through a dispatch func.
package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/internal/logging"
	"github.com/signalsfoundry/latency-globe/model"
)

// cellAspect is the width of a terminal cell over its height.
const cellAspect = 0.5

// wheelStep is the wheel delta reported per notch.
const wheelStep = 100

const (
	markerGlyph   = '▲'
	selectedGlyph = '◆'
	arcGlyph      = '·'
)

var ErrNoScreen = errors.New("tui: no screen")

// Options configure a Surface.
type Options struct {
	// Dispatch runs input handling on the view's goroutine. When nil,
	// events are handled on the polling goroutine.
	Dispatch func(func()) bool
	// Keys receives every key event, on the dispatch goroutine.
	Keys func(ev *tcell.EventKey)
	// Footer is printed on the last line under the status.
	Footer string
	Logger logging.Logger
}

// Surface is a view.Surface backed by a tcell screen.
type Surface struct {
	screen   tcell.Screen
	dispatch func(func()) bool
	keys     func(*tcell.EventKey)
	footer   string
	log      logging.Logger

	mu      sync.Mutex
	handler core.InputHandler
	buttons tcell.ButtonMask
	cursor  core.Cursor
	shade   []model.RGB

	done      chan struct{}
	closeOnce sync.Once
}

// New initialises screen and starts polling it for events.
func New(screen tcell.Screen, opts Options) (*Surface, error) {
	if screen == nil {
		return nil, ErrNoScreen
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.HideCursor()
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	s := &Surface{
		screen:   screen,
		dispatch: opts.Dispatch,
		keys:     opts.Keys,
		footer:   opts.Footer,
		log:      log,
		done:     make(chan struct{}),
	}
	go s.poll()
	return s, nil
}

// Size implements view.Surface.
func (s *Surface) Size() (int, int) { return s.screen.Size() }

// PixelAspect reports the cell shape so the camera does not stretch the
// globe into an ellipse.
func (s *Surface) PixelAspect() float64 { return cellAspect }

// Bind implements view.Surface.
func (s *Surface) Bind(h core.InputHandler) func() {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.handler == h {
			s.handler = nil
		}
		s.mu.Unlock()
	}
}

// SetCursor implements view.Surface. Terminals have no pointer shape, so the
// hint only changes how the hovered marker is drawn.
func (s *Surface) SetCursor(c core.Cursor) {
	s.mu.Lock()
	s.cursor = c
	s.mu.Unlock()
}

// Cursor returns the last cursor hint.
func (s *Surface) Cursor() core.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// ReleaseScene drops the shading buffer, which is sized for the scene's
// last frame.
func (s *Surface) ReleaseScene(*core.Scene) {
	s.mu.Lock()
	s.shade = nil
	s.mu.Unlock()
}

// Close tears the screen down and waits for the event poller to exit.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		s.screen.Fini()
		<-s.done
	})
	return nil
}

// Draw renders one frame and shows it.
func (s *Surface) Draw(f *core.Frame) error {
	w, h := f.Width, f.Height
	if w <= 0 || h <= 0 {
		return nil
	}

	s.mu.Lock()
	if len(s.shade) != w*h {
		s.shade = make([]model.RGB, w*h)
	}
	shade := s.shade
	pointer := s.cursor == core.CursorPointer
	s.mu.Unlock()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c, _ := f.ShadeGlobe(float64(x)+0.5, float64(y)+0.5)
			shade[y*w+x] = c
			s.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault.Background(color(c)))
		}
	}

	for _, a := range f.Arcs {
		fg := a.Arc.Color
		for i := 1; i < len(a.Points); i++ {
			p0, p1 := a.Points[i-1], a.Points[i]
			if !p0.Visible || !p1.Visible {
				continue
			}
			line(int(p0.X), int(p0.Y), int(p1.X), int(p1.Y), func(x, y int) {
				if x < 0 || y < 0 || x >= w || y >= h {
					return
				}
				bg := shade[y*w+x]
				st := tcell.StyleDefault.Background(color(bg)).Foreground(color(fg.Blend(bg, a.Arc.Opacity)))
				s.screen.SetContent(x, y, arcGlyph, nil, st)
			})
		}
	}

	for _, m := range f.Markers {
		if !m.Visible {
			continue
		}
		x, y := int(m.X), int(m.Y)
		if x < 0 || y < 0 || x >= w || y >= h {
			continue
		}
		glyph := markerGlyph
		st := tcell.StyleDefault.Background(color(shade[y*w+x])).Foreground(color(m.Marker.Color))
		if m.Selected {
			glyph = selectedGlyph
		}
		if m.Hovered && pointer {
			st = st.Bold(true).Reverse(true)
		}
		s.screen.SetContent(x, y, glyph, nil, st)
	}

	s.drawText(f)
	s.screen.Show()
	return nil
}

func (s *Surface) drawText(f *core.Frame) {
	w, h := f.Width, f.Height
	text := tcell.StyleDefault.Background(color(f.Background)).Foreground(tcell.ColorWhite)

	for i, l := range f.TooltipLines() {
		s.print(0, i, l, text, w)
	}

	row := h - 1
	if s.footer != "" {
		s.print(0, row, s.footer, text.Dim(true), w)
		row--
	}
	s.print(0, row, f.StatusLine(), text, w)
	row--

	x := 0
	for _, e := range model.Legend() {
		s.screen.SetContent(x, row, '■', nil, text.Foreground(color(e.Color)))
		x = s.print(x+2, row, e.Label, text, w) + 2
	}
	for _, c := range f.Palette.Categories() {
		s.screen.SetContent(x, row, markerGlyph, nil, text.Foreground(color(f.Palette.Color(c))))
		x = s.print(x+2, row, string(c), text, w) + 2
	}
	row--

	if sel := f.SelectionLine(); sel != "" {
		s.print(0, row, sel, text, w)
	}
}

// print writes str from (x, y), clipped at maxX, and returns the column after
// the last rune written.
func (s *Surface) print(x, y int, str string, st tcell.Style, maxX int) int {
	if y < 0 {
		return x
	}
	for _, r := range str {
		if x >= maxX {
			break
		}
		s.screen.SetContent(x, y, r, nil, st)
		x++
	}
	return x
}

func (s *Surface) poll() {
	defer close(s.done)
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		switch ev := ev.(type) {
		case *tcell.EventMouse:
			s.post(func() { s.handleMouse(ev) })
		case *tcell.EventKey:
			if s.keys != nil {
				s.post(func() { s.keys(ev) })
			}
		case *tcell.EventResize:
			s.screen.Sync()
		}
	}
}

func (s *Surface) post(fn func()) {
	if s.dispatch == nil {
		fn()
		return
	}
	if !s.dispatch(fn) {
		s.log.Debug(context.Background(), "dispatcher closed; dropping terminal event")
	}
}

// handleMouse turns tcell's button-mask snapshots into pointer transitions.
func (s *Surface) handleMouse(ev *tcell.EventMouse) {
	s.mu.Lock()
	h := s.handler
	prev := s.buttons
	s.buttons = ev.Buttons()
	s.mu.Unlock()
	if h == nil {
		return
	}

	cx, cy := ev.Position()
	pe := core.PointerEvent{X: float64(cx) + 0.5, Y: float64(cy) + 0.5, Kind: core.PointerMouse}
	now := ev.Buttons()

	switch {
	case now&tcell.WheelUp != 0:
		h.Wheel(core.WheelEvent{DeltaY: -wheelStep})
		return
	case now&tcell.WheelDown != 0:
		h.Wheel(core.WheelEvent{DeltaY: wheelStep})
		return
	}

	was, is := prev&tcell.Button1 != 0, now&tcell.Button1 != 0
	switch {
	case !was && is:
		h.PointerDown(pe)
	case was && !is:
		h.PointerUp(pe)
	default:
		h.PointerMove(pe)
	}
}

func color(c model.RGB) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// line walks the cells between two points with Bresenham's algorithm.
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
