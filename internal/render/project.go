package render

import (
	"math"

	"match-replay/internal/camera"
	"match-replay/internal/scene"
)

// NearPlane is the closest camera-space depth that is drawn.
const NearPlane = 0.1

// Projector maps world points to screen pixels for one camera view.
type Projector struct {
	eye                   scene.Vec3
	right, up, forward    scene.Vec3
	focal                 float64 // pixels per unit at depth 1
	halfWidth, halfHeight float64
}

// NewProjector builds a perspective projection for a width×height viewport.
func NewProjector(v camera.View, width, height int) Projector {
	forward := v.Target.Sub(v.Position).Normalize()
	if forward.Len() == 0 {
		forward = scene.V(0, 0, -1)
	}
	worldUp := v.Up
	if worldUp.Len() == 0 {
		worldUp = scene.V(0, 1, 0)
	}
	right := forward.Cross(worldUp)
	if right.Len() < 1e-12 {
		// Looking straight along the up axis.
		right = forward.Cross(scene.V(0, 0, -1))
	}
	right = right.Normalize()
	up := right.Cross(forward).Normalize()

	fov := v.FOV
	if fov <= 0 || fov >= 180 {
		fov = camera.DefaultConfig().FOV
	}
	halfH := float64(height) / 2
	return Projector{
		eye:        v.Position,
		right:      right,
		up:         up,
		forward:    forward,
		focal:      halfH / math.Tan(fov*math.Pi/360),
		halfWidth:  float64(width) / 2,
		halfHeight: halfH,
	}
}

// ToCamera returns p in camera space: x right, y up, z depth.
func (p Projector) ToCamera(w scene.Vec3) scene.Vec3 {
	d := w.Sub(p.eye)
	return scene.V(d.Dot(p.right), d.Dot(p.up), d.Dot(p.forward))
}

// ScreenFromCamera projects a camera-space point in front of the near plane.
func (p Projector) ScreenFromCamera(c scene.Vec3) (x, y float64) {
	return p.halfWidth + c.X/c.Z*p.focal, p.halfHeight - c.Y/c.Z*p.focal
}

// Project maps a world point to pixels. ok is false behind the near plane.
func (p Projector) Project(w scene.Vec3) (x, y, depth float64, ok bool) {
	c := p.ToCamera(w)
	if c.Z < NearPlane {
		return 0, 0, c.Z, false
	}
	x, y = p.ScreenFromCamera(c)
	return x, y, c.Z, true
}

// PixelsPerUnit is the screen size of one world unit at depth.
func (p Projector) PixelsPerUnit(depth float64) float64 {
	if depth < NearPlane {
		depth = NearPlane
	}
	return p.focal / depth
}

// ClipSegment trims a camera-space segment to the near plane.
func ClipSegment(a, b scene.Vec3) (scene.Vec3, scene.Vec3, bool) {
	switch {
	case a.Z < NearPlane && b.Z < NearPlane:
		return a, b, false
	case a.Z < NearPlane:
		a = nearIntersect(a, b)
	case b.Z < NearPlane:
		b = nearIntersect(b, a)
	}
	return a, b, true
}

// ClipPolygon clips a camera-space polygon to the near plane.
func ClipPolygon(poly []scene.Vec3) []scene.Vec3 {
	if len(poly) == 0 {
		return nil
	}
	out := make([]scene.Vec3, 0, len(poly)+2)
	prev := poly[len(poly)-1]
	for _, cur := range poly {
		curIn := cur.Z >= NearPlane
		prevIn := prev.Z >= NearPlane
		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, nearIntersect(prev, cur), cur)
		case !curIn && prevIn:
			out = append(out, nearIntersect(cur, prev))
		}
		prev = cur
	}
	return out
}

// nearIntersect moves the behind point along the segment to the near plane.
func nearIntersect(behind, front scene.Vec3) scene.Vec3 {
	t := (NearPlane - behind.Z) / (front.Z - behind.Z)
	return behind.Add(front.Sub(behind).Scale(t))
}
