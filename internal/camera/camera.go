// Package camera keeps the user-adjustable viewpoint: fixed presets, a
// damped orbit around a target, and a mode that tracks the ball.
package camera

import (
	"fmt"
	"math"
	"sort"

	"match-replay/internal/scene"
)

// Mode selects how the camera is driven each render tick.
type Mode int

const (
	ModeFree Mode = iota
	ModeBallFollow
)

func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModeBallFollow:
		return "ball"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// FollowOffset is added to the ball position in ModeBallFollow.
var FollowOffset = scene.V(0, 20, 30)

// Presets are the fixed viewpoints, all aimed at the origin.
var Presets = map[string]scene.Vec3{
	"overhead": scene.V(0, 70, 0),
	"left":     scene.V(70, 15, 0),
	"right":    scene.V(-70, 15, 0),
}

// PresetNames returns the preset names in stable order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// polarEpsilon keeps the orbit off the exact pole.
const polarEpsilon = 1e-6

// Config bounds the free orbit.
type Config struct {
	FOV           float64 // vertical field of view, degrees
	DampingFactor float64
	MinDistance   float64
	MaxDistance   float64
	MaxPolarAngle float64 // radians from straight up; π/2 keeps the camera above ground
	Initial       scene.Vec3
}

// DefaultConfig returns the standard orbit limits.
func DefaultConfig() Config {
	return Config{
		FOV:           75,
		DampingFactor: 0.05,
		MinDistance:   10,
		MaxDistance:   200,
		MaxPolarAngle: math.Pi / 2,
		Initial:       Presets["overhead"],
	}
}

// View is what the rasterizer needs to project the scene.
type View struct {
	Position scene.Vec3
	Target   scene.Vec3
	Up       scene.Vec3
	FOV      float64
}

// Controller owns the camera state. It is not safe for concurrent use; the
// viewer serializes access.
type Controller struct {
	cfg  Config
	mode Mode

	position scene.Vec3
	target   scene.Vec3

	// Pending orbit input, consumed gradually by Update when damping is on.
	thetaDelta float64
	phiDelta   float64
	panOffset  scene.Vec3
	scale      float64
}

// New creates a controller at cfg.Initial aimed at the origin.
func New(cfg Config) *Controller {
	c := &Controller{cfg: cfg, scale: 1}
	c.SetFixed(cfg.Initial)
	return c
}

// SetFixed teleports the camera and re-aims it at the world origin.
func (c *Controller) SetFixed(pos scene.Vec3) {
	c.position = pos
	c.target = scene.Vec3{}
	c.clearInput()
}

// SetPreset applies a named preset.
func (c *Controller) SetPreset(name string) error {
	pos, ok := Presets[name]
	if !ok {
		return fmt.Errorf("unknown camera preset %q", name)
	}
	c.SetFixed(pos)
	return nil
}

// ToggleBallFollow flips between free orbit and ball tracking.
func (c *Controller) ToggleBallFollow() Mode {
	if c.mode == ModeBallFollow {
		c.mode = ModeFree
	} else {
		c.mode = ModeBallFollow
	}
	c.clearInput()
	return c.mode
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode { return c.mode }

// Rotate queues an orbit rotation: left turns around the vertical axis, up
// tilts towards the pole.
func (c *Controller) Rotate(left, up float64) {
	if c.mode != ModeFree {
		return
	}
	c.thetaDelta -= left
	c.phiDelta -= up
}

// Pan queues a target translation in the camera's screen plane, in world
// units.
func (c *Controller) Pan(dx, dy float64) {
	if c.mode != ModeFree {
		return
	}
	forward := c.target.Sub(c.position).Normalize()
	right := forward.Cross(scene.V(0, 1, 0)).Normalize()
	if right.Len() == 0 {
		right = scene.V(1, 0, 0)
	}
	up := right.Cross(forward).Normalize()
	c.panOffset = c.panOffset.Add(right.Scale(dx)).Add(up.Scale(dy))
}

// Zoom multiplies the orbit distance. Values above 1 move away.
func (c *Controller) Zoom(factor float64) {
	if c.mode != ModeFree || factor <= 0 {
		return
	}
	c.scale *= factor
}

// Update advances the camera by one render tick. ball is the live ball
// position; ok is false while the ball is not loaded.
func (c *Controller) Update(ball scene.Vec3, ok bool) {
	if c.mode == ModeBallFollow {
		if ok {
			c.position = ball.Add(FollowOffset)
			c.target = ball
		}
		return
	}
	c.updateOrbit()
}

func (c *Controller) updateOrbit() {
	offset := c.position.Sub(c.target)
	radius := offset.Len()
	theta := math.Atan2(offset.X, offset.Z)
	phi := 0.0
	if radius > 0 {
		phi = math.Acos(clamp(offset.Y/radius, -1, 1))
	}

	damping := c.cfg.DampingFactor
	if damping <= 0 || damping > 1 {
		damping = 1
	}

	theta += c.thetaDelta * damping
	phi += c.phiDelta * damping
	phi = clamp(phi, polarEpsilon, math.Min(c.cfg.MaxPolarAngle, math.Pi-polarEpsilon))

	radius = clamp(radius*c.scale, c.cfg.MinDistance, c.cfg.MaxDistance)

	c.target = c.target.Add(c.panOffset.Scale(damping))

	sinPhi := math.Sin(phi)
	offset = scene.V(
		radius*sinPhi*math.Sin(theta),
		radius*math.Cos(phi),
		radius*sinPhi*math.Cos(theta),
	)
	c.position = c.target.Add(offset)

	if damping < 1 {
		c.thetaDelta *= 1 - damping
		c.phiDelta *= 1 - damping
		c.panOffset = c.panOffset.Scale(1 - damping)
	} else {
		c.thetaDelta, c.phiDelta = 0, 0
		c.panOffset = scene.Vec3{}
	}
	c.scale = 1
}

func (c *Controller) clearInput() {
	c.thetaDelta, c.phiDelta = 0, 0
	c.panOffset = scene.Vec3{}
	c.scale = 1
}

// Position returns the camera position.
func (c *Controller) Position() scene.Vec3 { return c.position }

// Target returns the point the camera looks at.
func (c *Controller) Target() scene.Vec3 { return c.target }

// View returns the projection inputs.
func (c *Controller) View() View {
	return View{
		Position: c.position,
		Target:   c.target,
		Up:       scene.V(0, 1, 0),
		FOV:      c.cfg.FOV,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
