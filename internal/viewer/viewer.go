// Package viewer owns one replay session: the position store, the scene,
// the playback clock, the camera and the control bar. Every mutation goes
// through Context, which serializes clock callbacks, render ticks and user
// input on one mutex.
package viewer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"match-replay/internal/camera"
	"match-replay/internal/matchlog"
	"match-replay/internal/playback"
	"match-replay/internal/scene"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options configures a Context.
type Options struct {
	Duration time.Duration // whole log plays over this
	Camera   camera.Config
	Loader   scene.ModelLoader
	Manifest scene.Manifest
	Now      func() time.Time
}

// DefaultOptions uses the built-in models and a 60 second replay.
func DefaultOptions() Options {
	return Options{
		Duration: 60 * time.Second,
		Camera:   camera.DefaultConfig(),
		Loader:   scene.BuiltinLoader{},
		Manifest: scene.DefaultManifest(),
		Now:      time.Now,
	}
}

// State is the externally visible playback state.
type State struct {
	SessionID       string  `json:"sessionId"`
	Frame           int     `json:"frame"`
	Total           int     `json:"total"`
	Playing         bool    `json:"playing"`
	Ready           bool    `json:"ready"`
	CameraMode      string  `json:"cameraMode"`
	IntervalMs      float64 `json:"intervalMs"`
	PositionMs      float64 `json:"positionMs"`
	ControlsVisible bool    `json:"controlsVisible"`
	AssetsLoaded    int     `json:"assetsLoaded"`
	AssetsFailed    int     `json:"assetsFailed"`
	AssetsTotal     int     `json:"assetsTotal"`
}

// Context is the replay session.
type Context struct {
	id   uuid.UUID
	opts Options

	mu       sync.Mutex
	store    *matchlog.MatchLog
	clock    *playback.Clock
	applier  *playback.Applier
	camera   *camera.Controller
	controls *ControlBar
	assets   *scene.LoadingManager
	registry *scene.Registry

	lastApplied int

	subMu     sync.Mutex
	listeners map[int]func(State)
	nextSub   int
}

// New builds a session over ml. Assets are not loaded until LoadAssets.
func New(ml *matchlog.MatchLog, opts Options) *Context {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Loader == nil {
		opts.Loader = scene.BuiltinLoader{}
	}
	if opts.Manifest == (scene.Manifest{}) {
		opts.Manifest = scene.DefaultManifest()
	}

	clock := playback.NewClock(ml.Len(), opts.Duration)
	v := &Context{
		id:          uuid.New(),
		opts:        opts,
		store:       ml,
		clock:       clock,
		applier:     playback.NewApplier(ml, clock.Interval()),
		camera:      camera.New(opts.Camera),
		controls:    NewControlBar(),
		assets:      scene.NewLoadingManager(opts.Loader),
		lastApplied: -1,
		listeners:   make(map[int]func(State)),
	}
	clock.OnAdvance(func(int) { v.notify() })
	return v
}

// ID identifies the session in logs and API responses.
func (v *Context) ID() string { return v.id.String() }

// Clock exposes the playback clock, mainly for tests that inject tickers.
func (v *Context) Clock() *playback.Clock { return v.clock }

// LoadAssets resolves every model and, on success, places the scene at
// frame 0. Failures leave the session permanently not ready.
func (v *Context) LoadAssets(ctx context.Context) error {
	reg, err := scene.Build(ctx, v.assets, v.opts.Manifest, matchlog.RosterSize)
	if err != nil {
		log.Error().Err(err).Str("session", v.ID()).Msg("❌ Scene not ready, playback disabled")
		v.notify()
		return err
	}

	v.mu.Lock()
	v.registry = reg
	v.applier.Attach(reg)
	if v.applier.ApplyInitial() {
		v.lastApplied = 0
	}
	v.mu.Unlock()

	v.notify()
	return nil
}

// Ready reports whether assets are loaded and playback may start.
func (v *Context) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.readyLocked()
}

func (v *Context) readyLocked() bool {
	return v.registry != nil && v.assets.Ready()
}

// Play starts the clock. It refuses while assets are still loading.
func (v *Context) Play() error {
	v.mu.Lock()
	if !v.readyLocked() {
		v.mu.Unlock()
		return scene.ErrAssetsNotReady
	}
	started := v.clock.Start()
	v.mu.Unlock()

	if started {
		log.Info().Int("frame", v.clock.Current()).Msg("▶️ Playing")
		v.notify()
	}
	return nil
}

// Pause stops the clock, keeping the current frame.
func (v *Context) Pause() {
	v.mu.Lock()
	wasRunning := v.clock.Running()
	v.clock.Stop()
	v.mu.Unlock()

	if wasRunning {
		log.Info().Int("frame", v.clock.Current()).Msg("⏸️ Paused")
		v.notify()
	}
}

// TogglePlay flips between playing and paused and returns the new state.
func (v *Context) TogglePlay() (bool, error) {
	if v.clock.Running() {
		v.Pause()
		return false, nil
	}
	if err := v.Play(); err != nil {
		return false, err
	}
	return v.clock.Running(), nil
}

// Seek jumps to frame and shows it immediately, whether playing or not.
// Out-of-range frames are ignored and return false.
func (v *Context) Seek(frame int) bool {
	v.mu.Lock()
	ok := v.clock.Seek(frame)
	if ok {
		v.applyLocked(frame)
	}
	v.mu.Unlock()

	if ok {
		v.notify()
	}
	return ok
}

// SeekBy moves the playhead by delta, clamped to the log.
func (v *Context) SeekBy(delta time.Duration) bool {
	n := v.store.Len()
	interval := v.clock.Interval()
	if n == 0 || interval <= 0 {
		return false
	}
	frame := v.clock.DisplayFrame() + int(delta/interval)
	return v.Seek(max(0, min(frame, n-1)))
}

// SetCameraPreset switches to a named fixed viewpoint.
func (v *Context) SetCameraPreset(name string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera.SetPreset(name)
}

// ToggleBallFollow flips the camera mode.
func (v *Context) ToggleBallFollow() camera.Mode {
	v.mu.Lock()
	mode := v.camera.ToggleBallFollow()
	v.mu.Unlock()
	v.notify()
	return mode
}

// Orbit queues a free-camera rotation in radians.
func (v *Context) Orbit(left, up float64) {
	v.mu.Lock()
	v.camera.Rotate(left, up)
	v.mu.Unlock()
}

// Zoom scales the free-camera distance.
func (v *Context) Zoom(factor float64) {
	v.mu.Lock()
	v.camera.Zoom(factor)
	v.mu.Unlock()
}

// Pan moves the free-camera target.
func (v *Context) Pan(dx, dy float64) {
	v.mu.Lock()
	v.camera.Pan(dx, dy)
	v.mu.Unlock()
}

// Key names accepted by HandleKey.
const (
	KeySpace      = "space"
	KeyOverhead   = "c"
	KeyLeft       = "l"
	KeyRight      = "r"
	KeyBallFollow = "b"
	KeyArrowLeft  = "arrowleft"
	KeyArrowRight = "arrowright"
)

// SeekStep is how far the arrow keys move the playhead.
const SeekStep = time.Second

// HandleKey applies a keyboard shortcut. Unknown keys return false.
func (v *Context) HandleKey(key string) bool {
	k := strings.ToLower(key)
	if k == " " {
		k = KeySpace
	}
	switch k {
	case KeySpace:
		if _, err := v.TogglePlay(); err != nil {
			log.Debug().Err(err).Msg("play ignored")
		}
	case KeyOverhead:
		v.mustPreset("overhead")
	case KeyLeft:
		v.mustPreset("left")
	case KeyRight:
		v.mustPreset("right")
	case KeyBallFollow:
		v.ToggleBallFollow()
	case KeyArrowLeft:
		v.SeekBy(-SeekStep)
	case KeyArrowRight:
		v.SeekBy(SeekStep)
	default:
		return false
	}
	return true
}

func (v *Context) mustPreset(name string) {
	if err := v.SetCameraPreset(name); err != nil {
		panic(fmt.Sprintf("built-in preset %q missing: %v", name, err))
	}
}

// Pointer feeds a pointer or touch move to the control bar.
func (v *Context) Pointer(y, height float64) {
	v.mu.Lock()
	v.controls.Pointer(y, height, v.opts.Now())
	v.mu.Unlock()
}

// HoverControls reports the pointer entering or leaving the control bar.
func (v *Context) HoverControls(over bool) {
	v.mu.Lock()
	if over {
		v.controls.Enter()
	} else {
		v.controls.Leave(v.opts.Now())
	}
	v.mu.Unlock()
}

// Snapshot returns the current state.
func (v *Context) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Context) stateLocked() State {
	loaded, failed, total := v.assets.Progress()
	interval := v.clock.Interval()
	frame := v.clock.DisplayFrame()
	pos := 0.0
	if frame > 0 {
		pos = float64(frame) * float64(interval) / float64(time.Millisecond)
	}
	return State{
		SessionID:       v.ID(),
		Frame:           frame,
		Total:           v.store.Len(),
		Playing:         v.clock.Running(),
		Ready:           v.readyLocked(),
		CameraMode:      v.camera.Mode().String(),
		IntervalMs:      float64(interval) / float64(time.Millisecond),
		PositionMs:      pos,
		ControlsVisible: v.controls.Visible(),
		AssetsLoaded:    loaded,
		AssetsFailed:    failed,
		AssetsTotal:     total,
	}
}

// Tick is one render-loop iteration of state work: apply the current frame
// while playing, move the camera, expire the control bar timer. It returns
// what should be drawn.
func (v *Context) Tick() Scene {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.registry != nil {
		current := v.clock.Current()
		n := v.store.Len()
		switch {
		case v.clock.Running() && current < n:
			v.applyLocked(current)
		case n > 0 && v.clock.DisplayFrame() != v.lastApplied:
			// The clock may finish between render ticks; show the last frame.
			v.applyLocked(v.clock.DisplayFrame())
		}
	}

	ball, ok := v.ballPositionLocked()
	v.camera.Update(ball, ok)
	v.controls.Update(v.opts.Now())

	return v.sceneLocked()
}

func (v *Context) applyLocked(frame int) {
	if v.registry == nil {
		return
	}
	if v.applier.Apply(frame) {
		v.lastApplied = frame
	}
}

func (v *Context) ballPositionLocked() (scene.Vec3, bool) {
	if !v.registry.BallLoaded() {
		return scene.Vec3{}, false
	}
	return v.registry.Ball.Position, true
}

// Subscribe registers fn for state changes: clock advances, play/pause,
// seeks, camera mode changes and asset readiness. The returned func
// removes it.
func (v *Context) Subscribe(fn func(State)) func() {
	v.subMu.Lock()
	id := v.nextSub
	v.nextSub++
	v.listeners[id] = fn
	v.subMu.Unlock()

	return func() {
		v.subMu.Lock()
		delete(v.listeners, id)
		v.subMu.Unlock()
	}
}

func (v *Context) notify() {
	v.subMu.Lock()
	if len(v.listeners) == 0 {
		v.subMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.subMu.Unlock()

	st := v.Snapshot()
	for _, fn := range fns {
		fn(st)
	}
}

// Close stops the clock.
func (v *Context) Close() {
	v.clock.Stop()
}
