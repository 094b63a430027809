package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPointID     = errors.New("empty point ID")
	ErrDuplicatePointID = errors.New("duplicate point ID")
	ErrUnknownCategory  = errors.New("unknown category")
)

// Category identifies the provider a point is hosted on.
type Category string

const (
	CategoryAWS   Category = "AWS"
	CategoryGCP   Category = "GCP"
	CategoryAzure Category = "Azure"
)

// Point is a single monitored location. Points are immutable once handed to
// the scene; identity is ID, which must be unique within the active set.
type Point struct {
	ID        string
	Latitude  float64 // degrees, [-90, 90]
	Longitude float64 // degrees, [-180, 180]
	Category  Category
	Region    string
}

// Filter selects the points that get a marker: FilterAll or one category.
type Filter string

// FilterAll passes every point through.
const FilterAll Filter = "all"

// Matches reports whether p is visible under f. The empty filter behaves like
// FilterAll.
func (f Filter) Matches(p Point) bool {
	if f == FilterAll || f == "" {
		return true
	}
	return Category(f) == p.Category
}

// FilterPoints returns the points matching f in their original relative
// order. The result never aliases the input slice.
func FilterPoints(points []Point, f Filter) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// ValidatePoints checks the invariants of an active data set: non-empty,
// unique IDs and, when a palette is given, known categories.
func ValidatePoints(points []Point, palette Palette) error {
	seen := make(map[string]struct{}, len(points))
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point %d: %w", i, ErrEmptyPointID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicatePointID, p.ID)
		}
		seen[p.ID] = struct{}{}
		if palette != nil {
			if _, ok := palette[p.Category]; !ok {
				return fmt.Errorf("point %q: %w %q", p.ID, ErrUnknownCategory, p.Category)
			}
		}
	}
	return nil
}

// InRange reports whether the coordinates lie inside the documented ranges.
// Out-of-range points are still projected; callers use this to warn.
func (p Point) InRange() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}
