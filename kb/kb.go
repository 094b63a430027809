package kb

import (
	"fmt"
	"sync"

	"github.com/signalsfoundry/latency-globe/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventPointsReplaced EventType = iota
)

// Event is emitted to subscribers when the data set changes. Points is a
// copy owned by the receiver.
type Event struct {
	Type   EventType
	Points []model.Point
}

// Catalog is an in-memory, thread-safe store for the active point data set.
// Order is preserved; it defines both marker order and connection order.
type Catalog struct {
	mu sync.RWMutex

	palette model.Palette
	points  []model.Point
	index   map[string]int

	nextSub int
	subs    map[int]func(Event)
}

// NewCatalog constructs an empty catalog. Categories are validated against
// palette when it is non-nil.
func NewCatalog(palette model.Palette) *Catalog {
	return &Catalog{
		palette: palette,
		index:   make(map[string]int),
		subs:    make(map[int]func(Event)),
	}
}

// Replace swaps the whole data set. It returns an error and leaves the
// catalog untouched if the points are invalid.
func (c *Catalog) Replace(points []model.Point) error {
	if err := model.ValidatePoints(points, c.palette); err != nil {
		return fmt.Errorf("replace points: %w", err)
	}

	next := append([]model.Point(nil), points...)
	index := make(map[string]int, len(next))
	for i, p := range next {
		index[p.ID] = i
	}

	c.mu.Lock()
	c.points = next
	c.index = index
	event := Event{
		Type:   EventPointsReplaced,
		Points: append([]model.Point(nil), next...),
	}
	subs := make([]func(Event), 0, len(c.subs))
	for id := 0; id < c.nextSub; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// Points returns a snapshot of the data set in order.
func (c *Catalog) Points() []model.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Point(nil), c.points...)
}

// Get returns the point with the given ID.
func (c *Catalog) Get(id string) (model.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return model.Point{}, false
	}
	return c.points[i], true
}

// Len returns the number of points.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// Filtered returns the points matching f, in order.
func (c *Catalog) Filtered(f model.Filter) []model.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.FilterPoints(c.points, f)
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function that is safe to call more than once.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
