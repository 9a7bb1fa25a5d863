// Package desktop shows the replay in a native window and feeds keyboard
// and mouse input back into the session.
package desktop

import (
	"image"
	"math"

	"match-replay/internal/render"
	"match-replay/internal/viewer"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/rs/zerolog"
)

// Controls is the part of viewer.Context the window drives.
type Controls interface {
	Snapshot() viewer.State
	TogglePlay() (bool, error)
	Seek(frame int) bool
	HandleKey(key string) bool
	Orbit(left, up float64)
	Zoom(factor float64)
	Pan(dx, dy float64)
	Pointer(y, height float64)
	HoverControls(over bool)
}

// Frames steps the renderer and hands back the last published frame.
// render.Loop implements it.
type Frames interface {
	Step()
	Latest() *render.Frame
}

// keyNames maps window keys to viewer shortcut names.
var keyNames = map[ebiten.Key]string{
	ebiten.KeySpace:      viewer.KeySpace,
	ebiten.KeyC:          viewer.KeyOverhead,
	ebiten.KeyL:          viewer.KeyLeft,
	ebiten.KeyR:          viewer.KeyRight,
	ebiten.KeyB:          viewer.KeyBallFollow,
	ebiten.KeyArrowLeft:  viewer.KeyArrowLeft,
	ebiten.KeyArrowRight: viewer.KeyArrowRight,
}

const (
	zoomStep   = 0.95 // per wheel notch
	panPerPx   = 0.1  // world units per dragged pixel
	orbitSpeed = 2 * math.Pi
)

// Game implements ebiten.Game.
type Game struct {
	controls Controls
	frames   Frames
	width    int
	height   int
	log      zerolog.Logger

	screen  *ebiten.Image
	lastSeq uint64

	lastX, lastY int
	hovering     bool
	dragging     bool

	done <-chan struct{}
}

// NewGame creates the window driver. The render loop is stepped from
// Update, so no separate render goroutine is needed.
func NewGame(c Controls, f Frames, width, height int, log zerolog.Logger) *Game {
	return &Game{
		controls: c,
		frames:   f,
		width:    width,
		height:   height,
		log:      log,
		lastX:    -1,
		lastY:    -1,
	}
}

// CloseOn ends the window loop once done is closed.
func (g *Game) CloseOn(done <-chan struct{}) {
	g.done = done
}

// Update handles input and advances rendering by one tick.
func (g *Game) Update() error {
	select {
	case <-g.done:
		return ebiten.Termination
	default:
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}

	for key, name := range keyNames {
		if inpututil.IsKeyJustPressed(key) {
			g.controls.HandleKey(name)
		}
	}

	g.handleMouse()
	g.frames.Step()
	return nil
}

func (g *Game) handleMouse() {
	x, y := ebiten.CursorPosition()
	moved := x != g.lastX || y != g.lastY
	dx, dy := x-g.lastX, y-g.lastY
	g.lastX, g.lastY = x, y

	if moved {
		g.controls.Pointer(float64(y), float64(g.height))
	}

	over := y >= g.height-int(render.SeekBarHeight) && y <= g.height
	if over != g.hovering {
		g.hovering = over
		g.controls.HoverControls(over)
	}

	if _, wy := ebiten.Wheel(); wy != 0 {
		g.controls.Zoom(math.Pow(zoomStep, wy))
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if st := g.controls.Snapshot(); st.ControlsVisible {
			if frame, toggle, ok := render.SeekHit(float64(x), float64(y), g.width, g.height, st.Total); ok {
				if toggle {
					if _, err := g.controls.TogglePlay(); err != nil {
						g.log.Debug().Err(err).Msg("toggle ignored")
					}
				} else {
					g.controls.Seek(frame)
				}
				return
			}
		}
		g.dragging = true
		return
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = false
	}

	switch {
	case g.dragging && moved:
		h := float64(g.height)
		g.controls.Orbit(orbitSpeed*float64(dx)/h, orbitSpeed*float64(dy)/h)
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) && moved:
		g.controls.Pan(-float64(dx)*panPerPx, float64(dy)*panPerPx)
	}
}

// Draw blits the latest rendered frame.
func (g *Game) Draw(screen *ebiten.Image) {
	f := g.frames.Latest()
	if f == nil || f.Image == nil {
		return
	}
	if g.screen == nil || g.screen.Bounds() != f.Image.Bounds() {
		b := f.Image.Bounds()
		g.screen = ebiten.NewImageWithOptions(image.Rect(0, 0, b.Dx(), b.Dy()), nil)
		g.lastSeq = 0
	}
	if f.Seq != g.lastSeq {
		g.screen.WritePixels(f.Image.Pix)
		g.lastSeq = f.Seq
	}
	screen.DrawImage(g.screen, nil)
}

// Layout keeps the logical screen at the render size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

// Run opens the window and blocks until it closes.
func Run(g *Game, title string) error {
	ebiten.SetWindowSize(g.width, g.height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil && err != ebiten.Termination {
		return err
	}
	return nil
}
