package core

import "github.com/signalsfoundry/latency-globe/model"

// EarthTexture is a procedural equirectangular texture: an ocean fill with a
// single elliptical land mass, addressed in texture pixels.
type EarthTexture struct {
	Width, Height int
	Ocean, Land   model.RGB

	LandCenterX, LandCenterY float64
	LandRadiusX, LandRadiusY float64
}

// DefaultEarthTexture matches the 2048×1024 canvas texture of the original
// viewer.
func DefaultEarthTexture() *EarthTexture {
	return &EarthTexture{
		Width:       2048,
		Height:      1024,
		Ocean:       model.Hex(0x1a3a52),
		Land:        model.Hex(0x2d5a3d),
		LandCenterX: 1000,
		LandCenterY: 500,
		LandRadiusX: 800,
		LandRadiusY: 300,
	}
}

// At samples the texture at a geographic coordinate. The mapping follows
// Project: u grows with longitude from -180, v grows southwards from +90.
func (t *EarthTexture) At(lat, lon float64) model.RGB {
	if t == nil || t.Width <= 0 || t.Height <= 0 {
		return model.RGB{}
	}
	u := (lon + 180) / 360 * float64(t.Width)
	v := (90 - lat) / 180 * float64(t.Height)
	if t.LandRadiusX > 0 && t.LandRadiusY > 0 {
		dx := (u - t.LandCenterX) / t.LandRadiusX
		dy := (v - t.LandCenterY) / t.LandRadiusY
		if dx*dx+dy*dy <= 1 {
			return t.Land
		}
	}
	return t.Ocean
}
