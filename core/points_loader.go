package core

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/latency-globe/model"
)

var (
	ErrNoPoints        = errors.New("no point features")
	ErrNotPointFeature = errors.New("feature geometry is not a point")
	ErrMissingPointID  = errors.New("feature has no id or name")
)

// PointSet is the result of loading a data set.
type PointSet struct {
	Points []model.Point
	// OutOfRange lists IDs whose coordinates fall outside the documented
	// ranges. They are kept; projection of such points is unspecified.
	OutOfRange []string
}

// LoadPoints reads a GeoJSON FeatureCollection of Point features. Each
// feature needs an id (feature id, or "id"/"name" property), a "category"
// and optionally a "region" property. Order of features is preserved.
func LoadPoints(r io.Reader) (*PointSet, error) {
	if r == nil {
		return nil, fmt.Errorf("nil reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode points: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, ErrNoPoints
	}

	set := &PointSet{Points: make([]model.Point, 0, len(fc.Features))}
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: %w", i, ErrNotPointFeature)
		}
		id := featureID(f)
		if id == "" {
			return nil, fmt.Errorf("feature %d: %w", i, ErrMissingPointID)
		}
		p := model.Point{
			ID:        id,
			Latitude:  pt.Lat(),
			Longitude: pt.Lon(),
			Category:  model.Category(f.Properties.MustString("category", "")),
			Region:    f.Properties.MustString("region", ""),
		}
		if !p.InRange() {
			set.OutOfRange = append(set.OutOfRange, p.ID)
		}
		set.Points = append(set.Points, p)
	}
	return set, nil
}

// LoadPointsFile reads a data set from path. An empty path yields the sample
// data set.
func LoadPointsFile(path string) (*PointSet, error) {
	if path == "" {
		return &PointSet{Points: model.SamplePoints()}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open points: %w", err)
	}
	defer f.Close()
	return LoadPoints(f)
}

func featureID(f *geojson.Feature) string {
	if s, ok := f.ID.(string); ok && s != "" {
		return s
	}
	if s := f.Properties.MustString("id", ""); s != "" {
		return s
	}
	return f.Properties.MustString("name", "")
}
