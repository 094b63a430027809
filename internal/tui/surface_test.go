package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/model"
)

type inputLog struct {
	events []string
}

func (l *inputLog) PointerDown(core.PointerEvent) { l.events = append(l.events, "down") }
func (l *inputLog) PointerMove(core.PointerEvent) { l.events = append(l.events, "move") }
func (l *inputLog) PointerUp(core.PointerEvent)   { l.events = append(l.events, "up") }
func (l *inputLog) PointerCancel()                { l.events = append(l.events, "cancel") }

func (l *inputLog) Wheel(ev core.WheelEvent) bool {
	if ev.DeltaY < 0 {
		l.events = append(l.events, "wheel-in")
	} else {
		l.events = append(l.events, "wheel-out")
	}
	return true
}

func newSimSurface(t *testing.T, opts Options) (*Surface, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("")
	s, err := New(screen, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	screen.SetSize(80, 24)
	t.Cleanup(func() { _ = s.Close() })
	return s, screen
}

func sampleFrame(w, h int) *core.Frame {
	palette := model.DefaultPalette()
	b := core.NewSceneBuilder(core.DefaultSceneConfig(), palette)
	scene := b.Build(model.SamplePoints(), model.FilterAll, true, model.LatencyMap{"Binance": 30, "Coinbase": 40})
	cam := core.NewCamera(core.DefaultCameraConfig(), core.DeviceDesktop)
	cam.SetAspect(float64(w) * cellAspect / float64(h))
	f := core.ComposeFrame(scene, cam, &core.InteractionState{}, w, h)
	f.Palette = palette
	f.Filter = model.FilterAll
	f.ShowConnections = true
	f.ActivePoints = len(scene.Markers)
	return f
}

func rowText(cells []tcell.SimCell, w, row int) string {
	var b strings.Builder
	for x := 0; x < w; x++ {
		runes := cells[row*w+x].Runes
		if len(runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(runes[0])
	}
	return b.String()
}

func TestDrawShadesGlobeAndPrintsStatus(t *testing.T) {
	s, screen := newSimSurface(t, Options{Footer: "Refreshes every 5s"})
	w, h := s.Size()
	if w != 80 || h != 24 {
		t.Fatalf("Size() = %dx%d, want 80x24", w, h)
	}

	f := sampleFrame(w, h)
	if err := s.Draw(f); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	cells, cw, _ := screen.GetContents()

	_, centre, _ := cells[(h/2)*cw+w/2].Style.Decompose()
	_, corner, _ := cells[0].Style.Decompose()
	if corner != color(f.Background) {
		t.Fatalf("corner background = %v, want scene background", corner)
	}
	if centre == corner {
		t.Fatalf("centre cell not shaded as globe")
	}

	if got := rowText(cells, cw, h-1); !strings.HasPrefix(got, "Refreshes every 5s") {
		t.Fatalf("footer row = %q", got)
	}
	if got := rowText(cells, cw, h-2); !strings.HasPrefix(got, "Filter: all | Connections: on | Active points: 10") {
		t.Fatalf("status row = %q", got)
	}
	if got := rowText(cells, cw, h-3); !strings.Contains(got, "<50ms") || !strings.Contains(got, "AWS") {
		t.Fatalf("legend row = %q", got)
	}
}

func TestDrawShowsTooltipAndSelection(t *testing.T) {
	s, screen := newSimSurface(t, Options{})
	w, h := s.Size()
	f := sampleFrame(w, h)
	p := model.SamplePoints()[0]
	f.Hovered = &p
	f.Selected = &p
	f.Latency = model.LatencyMap{p.ID: 42}
	if err := s.Draw(f); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	cells, cw, _ := screen.GetContents()
	if got := rowText(cells, cw, 0); !strings.HasPrefix(got, "Binance") {
		t.Fatalf("tooltip row 0 = %q", got)
	}
	if got := rowText(cells, cw, 3); !strings.HasPrefix(got, "Latency: 42 ms") {
		t.Fatalf("tooltip row 3 = %q", got)
	}
	if got := rowText(cells, cw, h-3); !strings.HasPrefix(got, "Selected: Binance (AWS, ap-northeast-1) 42 ms") {
		t.Fatalf("selection row = %q", got)
	}
}

func TestMouseEventsBecomePointerTransitions(t *testing.T) {
	queue := make(chan func(), 16)
	s, screen := newSimSurface(t, Options{Dispatch: func(fn func()) bool {
		queue <- fn
		return true
	}})
	rec := &inputLog{}
	unbind := s.Bind(rec)

	screen.InjectMouse(10, 5, tcell.ButtonNone, tcell.ModNone)
	screen.InjectMouse(10, 5, tcell.Button1, tcell.ModNone)
	screen.InjectMouse(14, 6, tcell.Button1, tcell.ModNone)
	screen.InjectMouse(14, 6, tcell.ButtonNone, tcell.ModNone)
	screen.InjectMouse(14, 6, tcell.WheelUp, tcell.ModNone)
	screen.InjectMouse(14, 6, tcell.WheelDown, tcell.ModNone)

	want := []string{"move", "down", "move", "up", "wheel-in", "wheel-out"}
	for range want {
		select {
		case fn := <-queue:
			fn()
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events; got %v", rec.events)
		}
	}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}

	unbind()
	screen.InjectMouse(1, 1, tcell.Button1, tcell.ModNone)
	select {
	case fn := <-queue:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	if len(rec.events) != len(want) {
		t.Fatalf("unbound handler still received input: %v", rec.events)
	}
}

func TestKeysAreDispatched(t *testing.T) {
	queue := make(chan func(), 4)
	var keys []rune
	_, screen := newSimSurface(t, Options{
		Dispatch: func(fn func()) bool { queue <- fn; return true },
		Keys:     func(ev *tcell.EventKey) { keys = append(keys, ev.Rune()) },
	})
	screen.InjectKey(tcell.KeyRune, 'f', tcell.ModNone)
	select {
	case fn := <-queue:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for key")
	}
	if len(keys) != 1 || keys[0] != 'f' {
		t.Fatalf("keys = %q", keys)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := New(tcell.NewSimulationScreen(""), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := New(nil, Options{}); !errors.Is(err, ErrNoScreen) {
		t.Fatalf("New(nil) = %v", err)
	}
}

func TestLineCoversEndpoints(t *testing.T) {
	var got [][2]int
	line(0, 0, 3, 1, func(x, y int) { got = append(got, [2]int{x, y}) })
	if len(got) != 4 || got[0] != [2]int{0, 0} || got[3] != [2]int{3, 1} {
		t.Fatalf("line = %v", got)
	}
	got = nil
	line(2, 2, 2, 2, func(x, y int) { got = append(got, [2]int{x, y}) })
	if len(got) != 1 {
		t.Fatalf("degenerate line = %v", got)
	}
}
