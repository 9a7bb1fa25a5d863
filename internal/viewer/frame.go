package viewer

import (
	"match-replay/internal/camera"
	"match-replay/internal/scene"
)

// Scene is a copy of everything the rasterizer draws for one display frame.
// It shares nothing with the live registry.
type Scene struct {
	Loaded bool // initial positions applied
	Left   []scene.Entity
	Right  []scene.Entity
	Ball   scene.Entity
	View   camera.View
	State  State
}

func (v *Context) sceneLocked() Scene {
	s := Scene{
		View:  v.camera.View(),
		State: v.stateLocked(),
	}
	reg := v.registry
	if reg == nil {
		return s
	}
	s.Loaded = reg.InitialPositionsSet()
	s.Left = copyRoster(reg.Roster(scene.TeamLeft))
	s.Right = copyRoster(reg.Roster(scene.TeamRight))
	if reg.BallLoaded() {
		s.Ball = *reg.Ball
	}
	return s
}

func copyRoster(in []*scene.Entity) []scene.Entity {
	out := make([]scene.Entity, len(in))
	for i, e := range in {
		out[i] = *e
	}
	return out
}
