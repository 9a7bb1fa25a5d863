package render

import (
	"context"
	"image/color"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"match-replay/internal/camera"
	"match-replay/internal/scene"
	"match-replay/internal/viewer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectorBasics(t *testing.T) {
	p := NewProjector(camera.View{
		Position: scene.V(0, 0, 10),
		Up:       scene.V(0, 1, 0),
		FOV:      90,
	}, 200, 100)

	x, y, depth, ok := p.Project(scene.Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 100, x, 1e-9)
	assert.InDelta(t, 50, y, 1e-9)
	assert.InDelta(t, 10, depth, 1e-9)

	x, _, _, _ = p.Project(scene.V(1, 0, 0))
	assert.InDelta(t, 105, x, 1e-9)

	_, y, _, _ = p.Project(scene.V(0, 1, 0))
	assert.InDelta(t, 45, y, 1e-9, "world up is screen up")

	_, _, _, ok = p.Project(scene.V(0, 0, 20))
	assert.False(t, ok, "behind the camera")

	assert.InDelta(t, 5, p.PixelsPerUnit(10), 1e-9)
}

func TestProjectorStraightDown(t *testing.T) {
	p := NewProjector(camera.View{
		Position: scene.V(0, 50, 0),
		Up:       scene.V(0, 1, 0),
		FOV:      75,
	}, 640, 480)

	x, y, _, ok := p.Project(scene.Vec3{})
	require.True(t, ok)
	assert.InDelta(t, 320, x, 1e-9)
	assert.InDelta(t, 240, y, 1e-9)

	x, y, _, ok = p.Project(scene.V(10, 0, 10))
	require.True(t, ok)
	assert.False(t, math.IsNaN(x) || math.IsNaN(y))
	assert.Greater(t, x, 320.0)
}

func TestClipPolygon(t *testing.T) {
	quad := []scene.Vec3{
		scene.V(-1, 0, -5),
		scene.V(1, 0, -5),
		scene.V(1, 0, 5),
		scene.V(-1, 0, 5),
	}
	out := ClipPolygon(quad)
	require.Len(t, out, 4)
	for _, v := range out {
		assert.GreaterOrEqual(t, v.Z, NearPlane-1e-12)
	}

	assert.Empty(t, ClipPolygon([]scene.Vec3{scene.V(0, 0, -1), scene.V(1, 0, -1), scene.V(0, 1, -2)}))
	assert.Nil(t, ClipPolygon(nil))
}

func TestClipSegment(t *testing.T) {
	a, b, ok := ClipSegment(scene.V(0, 0, -1), scene.V(0, 0, 1))
	require.True(t, ok)
	assert.InDelta(t, NearPlane, a.Z, 1e-12)
	assert.Equal(t, 1.0, b.Z)

	_, _, ok = ClipSegment(scene.V(0, 0, -1), scene.V(0, 0, -2))
	assert.False(t, ok)
}

func overheadScene() viewer.Scene {
	one := scene.V(1, 1, 1)
	model := &scene.Model{Name: "builtin"}
	return viewer.Scene{
		Loaded: true,
		Left:   []scene.Entity{{Name: "left-1", Model: model, Position: scene.V(-20, 0, 0), Scale: one}},
		Right:  []scene.Entity{{Name: "right-1", Model: model, Position: scene.V(30, 0, -10), Scale: one}},
		Ball: scene.Entity{
			Name:     "ball",
			Model:    model,
			Position: scene.V(0, 0.5, 20),
			Scale:    scene.V(scene.BallScale, scene.BallScale, scene.BallScale),
		},
		View: camera.View{Position: scene.V(0, 70, 0), Up: scene.V(0, 1, 0), FOV: 75},
		State: viewer.State{
			Frame: 4, Total: 10, Ready: true, CameraMode: "free", ControlsVisible: true,
		},
	}
}

func pixelAt(t *testing.T, r *Rasterizer, s viewer.Scene, world scene.Vec3) color.RGBA {
	t.Helper()
	img := r.Draw(s)
	w, h := r.Size()
	x, y, _, ok := NewProjector(s.View, w, h).Project(world)
	require.True(t, ok)
	return color.RGBAModel.Convert(img.At(int(x), int(y))).(color.RGBA)
}

func TestRasterizerDrawsPitchAndPlayers(t *testing.T) {
	r := NewRasterizer(640, 480)
	s := overheadScene()

	assert.Equal(t, grassColor, pixelAt(t, r, s, scene.V(20, 0, 10)))
	assert.Equal(t, TeamColors[scene.TeamLeft], pixelAt(t, r, s, scene.V(-20, 0, 0)))
	assert.Equal(t, TeamColors[scene.TeamRight], pixelAt(t, r, s, scene.V(30, 0, -10)))
	assert.Equal(t, surroundColor, pixelAt(t, r, s, scene.V(-56, 0, 0)))
}

func TestRasterizerBeforeLoadDrawsNoPitch(t *testing.T) {
	r := NewRasterizer(320, 240)
	s := overheadScene()
	s.Loaded = false
	s.State.Ready = false

	img := r.Draw(s)
	c := color.RGBAModel.Convert(img.At(250, 60)).(color.RGBA)
	assert.Equal(t, skyColor, c)
}

func TestSeekHit(t *testing.T) {
	// 1280x720 frame; track spans x in [44, 1264]
	_, _, ok := SeekHit(600, 300, 1280, 720, 101)
	assert.False(t, ok, "above the bar")

	_, toggle, ok := SeekHit(20, 700, 1280, 720, 101)
	assert.True(t, ok)
	assert.True(t, toggle)

	frame, toggle, ok := SeekHit(44+610, 700, 1280, 720, 101)
	assert.True(t, ok)
	assert.False(t, toggle)
	assert.Equal(t, 50, frame)

	frame, _, _ = SeekHit(1279, 700, 1280, 720, 101)
	assert.Equal(t, 100, frame)

	_, _, ok = SeekHit(600, 700, 1280, 720, 0)
	assert.False(t, ok, "empty log")
}

func TestSeekProgress(t *testing.T) {
	assert.Equal(t, 0.0, SeekProgress(viewer.State{Frame: 0, Total: 10}))
	assert.Equal(t, 0.0, SeekProgress(viewer.State{Frame: -1, Total: 0}))
	assert.InDelta(t, 0.5, SeekProgress(viewer.State{Frame: 5, Total: 11}), 1e-12)
	assert.Equal(t, 1.0, SeekProgress(viewer.State{Frame: 9, Total: 10}))
}

type countingSource struct {
	scene viewer.Scene
	ticks atomic.Int64
}

func (c *countingSource) Tick() viewer.Scene {
	c.ticks.Add(1)
	return c.scene
}

func TestLoopPublishesOnDemand(t *testing.T) {
	src := &countingSource{scene: overheadScene()}
	l := NewLoop(src, NewRasterizer(160, 120), 60)

	l.Step()
	l.Step()
	assert.Equal(t, int64(2), src.ticks.Load())

	f := l.Latest()
	require.NotNil(t, f)
	assert.Equal(t, uint64(1), f.Seq, "first frame is always published")
	assert.Equal(t, 4, f.State.Frame)
	assert.Equal(t, 160, f.Image.Bounds().Dx())

	l.Step()
	f2 := l.Latest()
	assert.Equal(t, uint64(3), f2.Seq)
	assert.NotSame(t, f.Image, f2.Image, "published images are never reused")
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	src := &countingSource{scene: overheadScene()}
	l := NewLoop(src, NewRasterizer(64, 48), 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool { return l.Seq() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
