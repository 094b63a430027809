package tui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/latency-globe/core"
	"github.com/signalsfoundry/latency-globe/model"
)

// zoomStep is the camera distance change per +/- key press.
const zoomStep = 10

// Target is the part of a mounted view the keyboard drives. view.View
// implements it.
type Target interface {
	Filter() model.Filter
	SetFilter(f model.Filter) error
	ShowConnections() bool
	SetShowConnections(show bool) error
	Device() core.DeviceClass
	SetDevice(d core.DeviceClass) error
	Zoom(delta float64)
	ClearSelection()
}

// Controls maps keys to view commands:
//
//	q, Esc, Ctrl-C  quit
//	f               cycle the category filter
//	c               toggle connections
//	t               toggle touch mode
//	+, -            zoom in and out
//	Enter           clear the selection
type Controls struct {
	Target  Target
	Filters []model.Filter
	Quit    func()
	// OnError is called when a command is rejected.
	OnError func(err error)
}

// HandleKey runs the command bound to ev. It is meant to be passed as
// Options.Keys and must run on the view's goroutine.
func (c *Controls) HandleKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		c.quit()
		return
	case tcell.KeyEnter:
		if c.Target != nil {
			c.Target.ClearSelection()
		}
		return
	case tcell.KeyRune:
	default:
		return
	}

	if ev.Rune() == 'q' || ev.Rune() == 'Q' {
		c.quit()
		return
	}
	if c.Target == nil {
		return
	}
	var err error
	switch ev.Rune() {
	case 'f', 'F':
		err = c.Target.SetFilter(c.nextFilter())
	case 'c', 'C':
		err = c.Target.SetShowConnections(!c.Target.ShowConnections())
	case 't', 'T':
		next := core.DeviceTouch
		if c.Target.Device() == core.DeviceTouch {
			next = core.DeviceDesktop
		}
		err = c.Target.SetDevice(next)
	case '+', '=':
		c.Target.Zoom(-zoomStep)
	case '-', '_':
		c.Target.Zoom(zoomStep)
	}
	if err != nil && c.OnError != nil {
		c.OnError(err)
	}
}

func (c *Controls) quit() {
	if c.Quit != nil {
		c.Quit()
	}
}

func (c *Controls) nextFilter() model.Filter {
	if len(c.Filters) == 0 {
		return model.FilterAll
	}
	cur := c.Target.Filter()
	for i, f := range c.Filters {
		if f == cur {
			return c.Filters[(i+1)%len(c.Filters)]
		}
	}
	return c.Filters[0]
}
