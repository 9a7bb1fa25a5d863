// Package render draws the replay scene with a software perspective
// projection and runs the display-rate render loop.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"match-replay/internal/scene"
	"match-replay/internal/viewer"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Pitch dimensions in world units, centered on the origin with the
// length along X.
const (
	PitchLength = 105.0
	PitchWidth  = 68.0

	grassMargin   = 8.0
	centerCircleR = 9.15
	penaltyDepth  = 16.5
	penaltyWidth  = 40.32
	goalAreaDepth = 5.5
	goalAreaWidth = 18.32

	playerHeight = 1.8
	playerRadius = 0.45
	headRadius   = 0.3

	SeekBarHeight = 36.0
)

var (
	skyColor      = color.RGBA{18, 22, 34, 255}
	grassColor    = color.RGBA{46, 125, 50, 255}
	surroundColor = color.RGBA{33, 94, 38, 255}
	lineColor     = color.RGBA{240, 240, 240, 255}
	ballColor     = color.RGBA{250, 250, 250, 255}
	ballMarkColor = color.RGBA{20, 20, 20, 255}
	hudColor      = color.RGBA{255, 255, 255, 230}

	// TeamColors follow the player_blue / player_red models.
	TeamColors = map[scene.Team]color.RGBA{
		scene.TeamLeft:  {30, 100, 230, 255},
		scene.TeamRight: {220, 40, 40, 255},
	}
)

// Rasterizer draws viewer scenes into a reused gg context. It is not safe
// for concurrent use.
type Rasterizer struct {
	width, height int
	dc            *gg.Context
}

// NewRasterizer allocates the canvas.
func NewRasterizer(width, height int) *Rasterizer {
	dc := gg.NewContext(width, height)
	dc.SetFontFace(basicfont.Face7x13)
	return &Rasterizer{width: width, height: height, dc: dc}
}

// Size returns the canvas size.
func (r *Rasterizer) Size() (int, int) { return r.width, r.height }

// Draw renders s and returns the canvas. The image is overwritten by the
// next Draw.
func (r *Rasterizer) Draw(s viewer.Scene) image.Image {
	dc := r.dc
	dc.SetColor(skyColor)
	dc.Clear()

	proj := NewProjector(s.View, r.width, r.height)

	if s.Loaded {
		r.drawPitch(proj)
		r.drawEntities(proj, s)
	}
	r.drawHUD(s.State)
	if s.State.ControlsVisible {
		r.drawSeekBar(s.State)
	}
	return dc.Image()
}

func (r *Rasterizer) drawPitch(p Projector) {
	hl, hw := PitchLength/2, PitchWidth/2
	r.fillQuad(p, hl+grassMargin, hw+grassMargin, surroundColor)
	r.fillQuad(p, hl, hw, grassColor)

	r.dc.SetColor(lineColor)
	r.dc.SetLineWidth(2)
	r.strokeRect(p, -hl, -hw, hl, hw)
	r.strokeLine(p, scene.V(0, 0, -hw), scene.V(0, 0, hw))
	r.strokeCircle(p, scene.Vec3{}, centerCircleR, 48)

	for _, side := range []float64{-1, 1} {
		goal := side * hl
		r.strokeRect(p, goal-side*penaltyDepth, -penaltyWidth/2, goal, penaltyWidth/2)
		r.strokeRect(p, goal-side*goalAreaDepth, -goalAreaWidth/2, goal, goalAreaWidth/2)
	}
}

func (r *Rasterizer) fillQuad(p Projector, hx, hz float64, c color.Color) {
	corners := []scene.Vec3{
		p.ToCamera(scene.V(-hx, 0, -hz)),
		p.ToCamera(scene.V(hx, 0, -hz)),
		p.ToCamera(scene.V(hx, 0, hz)),
		p.ToCamera(scene.V(-hx, 0, hz)),
	}
	poly := ClipPolygon(corners)
	if len(poly) < 3 {
		return
	}
	r.dc.NewSubPath()
	for i, v := range poly {
		x, y := p.ScreenFromCamera(v)
		if i == 0 {
			r.dc.MoveTo(x, y)
		} else {
			r.dc.LineTo(x, y)
		}
	}
	r.dc.ClosePath()
	r.dc.SetColor(c)
	r.dc.Fill()
}

func (r *Rasterizer) strokeLine(p Projector, a, b scene.Vec3) {
	ca, cb, ok := ClipSegment(p.ToCamera(a), p.ToCamera(b))
	if !ok {
		return
	}
	x0, y0 := p.ScreenFromCamera(ca)
	x1, y1 := p.ScreenFromCamera(cb)
	r.dc.DrawLine(x0, y0, x1, y1)
	r.dc.Stroke()
}

func (r *Rasterizer) strokeRect(p Projector, x0, z0, x1, z1 float64) {
	r.strokeLine(p, scene.V(x0, 0, z0), scene.V(x1, 0, z0))
	r.strokeLine(p, scene.V(x1, 0, z0), scene.V(x1, 0, z1))
	r.strokeLine(p, scene.V(x1, 0, z1), scene.V(x0, 0, z1))
	r.strokeLine(p, scene.V(x0, 0, z1), scene.V(x0, 0, z0))
}

func (r *Rasterizer) strokeCircle(p Projector, center scene.Vec3, radius float64, segments int) {
	prev := center.Add(scene.V(radius, 0, 0))
	for i := 1; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		cur := center.Add(scene.V(radius*math.Cos(a), 0, radius*math.Sin(a)))
		r.strokeLine(p, prev, cur)
		prev = cur
	}
}

type drawable struct {
	depth float64
	draw  func()
}

// drawEntities paints players and the ball back to front.
func (r *Rasterizer) drawEntities(p Projector, s viewer.Scene) {
	items := make([]drawable, 0, len(s.Left)+len(s.Right)+1)
	add := func(e scene.Entity, team scene.Team) {
		_, _, depth, ok := p.Project(e.Position)
		if !ok {
			return
		}
		items = append(items, drawable{depth: depth, draw: func() { r.drawPlayer(p, e, TeamColors[team]) }})
	}
	for _, e := range s.Left {
		add(e, scene.TeamLeft)
	}
	for _, e := range s.Right {
		add(e, scene.TeamRight)
	}
	if s.Ball.Model != nil {
		ball := s.Ball
		if _, _, depth, ok := p.Project(ball.Position); ok {
			items = append(items, drawable{depth: depth, draw: func() { r.drawBall(p, ball) }})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].depth > items[j].depth })
	for _, it := range items {
		it.draw()
	}
}

func (r *Rasterizer) drawPlayer(p Projector, e scene.Entity, c color.RGBA) {
	foot := e.Position
	head := foot.Add(scene.V(0, playerHeight*e.Scale.Y, 0))

	fx, fy, fd, ok := p.Project(foot)
	if !ok {
		return
	}
	ppu := p.PixelsPerUnit(fd)

	// Shadow
	r.dc.SetColor(color.RGBA{0, 0, 0, 90})
	r.dc.DrawEllipse(fx, fy, math.Max(2, playerRadius*ppu), math.Max(1, playerRadius*ppu*0.5))
	r.dc.Fill()

	hx, hy, hd, ok := p.Project(head)
	if !ok {
		return
	}
	r.dc.SetColor(c)
	r.dc.SetLineWidth(math.Max(2, 2*playerRadius*ppu))
	r.dc.SetLineCapRound()
	r.dc.DrawLine(fx, fy, hx, hy)
	r.dc.Stroke()

	r.dc.DrawCircle(hx, hy, math.Max(2, headRadius*p.PixelsPerUnit(hd)))
	r.dc.Fill()
}

func (r *Rasterizer) drawBall(p Projector, b scene.Entity) {
	x, y, depth, ok := p.Project(b.Position)
	if !ok {
		return
	}
	radius := math.Max(3, b.Scale.X*p.PixelsPerUnit(depth))

	r.dc.SetColor(ballColor)
	r.dc.DrawCircle(x, y, radius)
	r.dc.Fill()

	// Spin marker: rotates with roll around the heading.
	angle := b.Rotation.Z + b.Rotation.Y
	r.dc.SetColor(ballMarkColor)
	r.dc.SetLineWidth(math.Max(1, radius/3))
	r.dc.DrawLine(x, y, x+radius*math.Cos(angle), y+radius*math.Sin(angle))
	r.dc.Stroke()
}

func (r *Rasterizer) drawHUD(st viewer.State) {
	dc := r.dc
	dc.SetColor(hudColor)

	status := "PAUSED"
	if st.Playing {
		status = "PLAYING"
	}
	dc.DrawString(fmt.Sprintf("Frame %d / %d", st.Frame+1, st.Total), 12, 20)
	dc.DrawString(fmt.Sprintf("%s  camera: %s", status, st.CameraMode), 12, 36)

	if !st.Ready {
		msg := fmt.Sprintf("Loading assets %d / %d", st.AssetsLoaded, st.AssetsTotal)
		if st.AssetsFailed > 0 {
			msg = fmt.Sprintf("Asset loading failed (%d)", st.AssetsFailed)
		}
		dc.DrawStringAnchored(msg, float64(r.width)/2, float64(r.height)/2, 0.5, 0.5)
	}
}

func (r *Rasterizer) drawSeekBar(st viewer.State) {
	dc := r.dc
	w, h := float64(r.width), float64(r.height)
	top := h - SeekBarHeight

	dc.SetColor(color.RGBA{0, 0, 0, 160})
	dc.DrawRectangle(0, top, w, SeekBarHeight)
	dc.Fill()

	// Play or pause glyph
	cy := top + SeekBarHeight/2
	dc.SetColor(hudColor)
	if st.Playing {
		dc.DrawRectangle(14, cy-8, 4, 16)
		dc.DrawRectangle(22, cy-8, 4, 16)
	} else {
		dc.MoveTo(14, cy-8)
		dc.LineTo(28, cy)
		dc.LineTo(14, cy+8)
		dc.ClosePath()
	}
	dc.Fill()

	trackX, trackW := seekTrack(w)
	dc.SetColor(color.RGBA{90, 90, 90, 255})
	dc.DrawRoundedRectangle(trackX, cy-3, trackW, 6, 3)
	dc.Fill()

	if progress := SeekProgress(st); progress > 0 {
		dc.SetColor(color.RGBA{255, 62, 62, 255})
		dc.DrawRoundedRectangle(trackX, cy-3, trackW*progress, 6, 3)
		dc.Fill()
		dc.DrawCircle(trackX+trackW*progress, cy, 7)
		dc.Fill()
	}
}

// SeekProgress maps the displayed frame onto a slider spanning 0..N-1.
func SeekProgress(st viewer.State) float64 {
	if st.Total <= 1 || st.Frame <= 0 {
		return 0
	}
	return math.Min(1, float64(st.Frame)/float64(st.Total-1))
}

func seekTrack(width float64) (x, w float64) {
	return 44, width - 60
}

// SeekHit maps a click inside the seek bar to a frame index. It reports
// playToggle for the play glyph and ok=false outside the bar.
func SeekHit(x, y float64, width, height, total int) (frame int, playToggle, ok bool) {
	if y < float64(height)-SeekBarHeight || y > float64(height) || total <= 0 {
		return 0, false, false
	}
	trackX, trackW := seekTrack(float64(width))
	if x < trackX-8 {
		return 0, true, true
	}
	if trackW <= 0 {
		return 0, false, false
	}
	frac := math.Max(0, math.Min(1, (x-trackX)/trackW))
	return int(math.Round(frac * float64(total-1))), false, true
}
