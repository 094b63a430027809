package core

import "time"

// LoopConfig tunes inertia and idle rotation.
type LoopConfig struct {
	Damping     float64 // per-frame velocity multiplier, in (0, 1)
	IdleEpsilon float64 // velocity magnitude below which idle rotation starts
	AutoRotate  float64 // idle yaw increment per frame, radians
}

// DefaultLoopConfig mirrors the original viewer.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Damping:     0.95,
		IdleEpsilon: 0.001,
		AutoRotate:  0.001,
	}
}

// DrawFunc renders the current state. Errors are reported, never fatal.
type DrawFunc func(now time.Time) error

// RenderLoop advances the globe orientation once per frame and draws.
type RenderLoop struct {
	cfg    LoopConfig
	state  *InteractionState
	draw   DrawFunc
	onErr  func(error)
	frames uint64
}

// NewRenderLoop builds a loop over the shared interaction state.
func NewRenderLoop(cfg LoopConfig, state *InteractionState, draw DrawFunc, onErr func(error)) *RenderLoop {
	return &RenderLoop{cfg: cfg, state: state, draw: draw, onErr: onErr}
}

// Step applies velocity, clamps pitch, damps velocity and applies idle
// rotation once velocity has decayed out.
func (l *RenderLoop) Step() {
	s := l.state
	s.Orientation.Yaw += s.Velocity.Yaw
	s.Orientation.Pitch = ClampPitch(s.Orientation.Pitch + s.Velocity.Pitch)

	s.Velocity.Pitch *= l.cfg.Damping
	s.Velocity.Yaw *= l.cfg.Damping

	if !s.Dragging() && s.Velocity.Magnitude() < l.cfg.IdleEpsilon {
		s.Orientation.Yaw += l.cfg.AutoRotate
	}
}

// Tick is the scheduler callback: one Step followed by a draw.
func (l *RenderLoop) Tick(now time.Time) {
	l.Step()
	l.frames++
	if l.draw == nil {
		return
	}
	if err := l.draw(now); err != nil && l.onErr != nil {
		l.onErr(err)
	}
}

// Frames returns the number of ticks processed.
func (l *RenderLoop) Frames() uint64 { return l.frames }
