package tui

import (
	"errors"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/model"
)

type fakeTarget struct {
	filter  model.Filter
	conn    bool
	device  core.DeviceClass
	zoom    float64
	cleared int
	err     error
}

func (f *fakeTarget) Filter() model.Filter { return f.filter }

func (f *fakeTarget) SetFilter(v model.Filter) error {
	if f.err != nil {
		return f.err
	}
	f.filter = v
	return nil
}

func (f *fakeTarget) ShowConnections() bool              { return f.conn }
func (f *fakeTarget) SetShowConnections(v bool) error    { f.conn = v; return nil }
func (f *fakeTarget) Device() core.DeviceClass           { return f.device }
func (f *fakeTarget) SetDevice(d core.DeviceClass) error { f.device = d; return nil }
func (f *fakeTarget) Zoom(d float64)                     { f.zoom += d }
func (f *fakeTarget) ClearSelection()                    { f.cleared++ }

func key(r rune) *tcell.EventKey { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

func TestControlsCommands(t *testing.T) {
	target := &fakeTarget{filter: model.FilterAll, conn: true}
	quits := 0
	c := &Controls{
		Target:  target,
		Filters: model.DefaultPalette().Filters(),
		Quit:    func() { quits++ },
	}

	c.HandleKey(key('f'))
	if target.filter != model.Filter(model.CategoryAWS) {
		t.Fatalf("filter after f = %q, want AWS", target.filter)
	}
	c.HandleKey(key('f'))
	c.HandleKey(key('f'))
	c.HandleKey(key('f'))
	if target.filter != model.FilterAll {
		t.Fatalf("filter did not wrap around: %q", target.filter)
	}

	c.HandleKey(key('c'))
	if target.conn {
		t.Fatalf("connections still on after c")
	}
	c.HandleKey(key('t'))
	if target.device != core.DeviceTouch {
		t.Fatalf("device after t = %v", target.device)
	}
	c.HandleKey(key('t'))
	if target.device != core.DeviceDesktop {
		t.Fatalf("device after second t = %v", target.device)
	}

	c.HandleKey(key('+'))
	c.HandleKey(key('+'))
	c.HandleKey(key('-'))
	if target.zoom != -zoomStep {
		t.Fatalf("zoom = %v, want %v", target.zoom, -zoomStep)
	}

	c.HandleKey(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	if target.cleared != 1 {
		t.Fatalf("selection cleared %d times", target.cleared)
	}

	c.HandleKey(key('q'))
	c.HandleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	if quits != 2 {
		t.Fatalf("quit called %d times, want 2", quits)
	}
}

func TestControlsReportErrors(t *testing.T) {
	boom := errors.New("unmounted")
	var got error
	c := &Controls{
		Target:  &fakeTarget{err: boom},
		Filters: []model.Filter{model.FilterAll},
		OnError: func(err error) { got = err },
	}
	c.HandleKey(key('f'))
	if !errors.Is(got, boom) {
		t.Fatalf("OnError got %v", got)
	}

	// No target yet: only quit works.
	quit := false
	empty := &Controls{Quit: func() { quit = true }}
	empty.HandleKey(key('f'))
	empty.HandleKey(key('q'))
	if !quit {
		t.Fatalf("quit not handled without a target")
	}
}
