package playback

import (
	"math"
	"time"

	"match-replay/internal/matchlog"
	"match-replay/internal/scene"
)

const (
	// BallHeight is the fixed rendered height of the ball above the pitch.
	BallHeight = 0.5

	// SpinScale converts ball speed into visual roll. Not physically derived.
	SpinScale = 50.0
)

// Forward is the ball direction used before any movement is known.
var Forward = scene.V(0, 0, 1)

// Applier writes a frame's samples onto the registry entities.
type Applier struct {
	log      *matchlog.MatchLog
	interval time.Duration
	registry *scene.Registry

	prevBall    matchlog.BallSample
	hasPrevBall bool
}

// NewApplier binds the applier to the position store.
func NewApplier(ml *matchlog.MatchLog, interval time.Duration) *Applier {
	return &Applier{log: ml, interval: interval}
}

// Attach sets the registry once assets are loaded.
func (a *Applier) Attach(reg *scene.Registry) {
	a.registry = reg
}

// Apply syncs every entity to the frame at frameIndex. Returns false when
// the index is out of range.
func (a *Applier) Apply(frameIndex int) bool {
	frame, ok := a.log.Frame(frameIndex)
	if !ok {
		return false
	}
	a.applyPlayers(frame)
	a.applyBall(frame.Ball)
	return true
}

// ApplyInitial positions the scene at frame 0. Empty logs are a no-op.
func (a *Applier) ApplyInitial() bool {
	if a.log.Len() == 0 || a.registry == nil {
		return false
	}
	a.Apply(0)
	a.registry.MarkInitialPositionsSet()
	return true
}

// PreviousBall returns the last applied ball sample.
func (a *Applier) PreviousBall() (matchlog.BallSample, bool) {
	return a.prevBall, a.hasPrevBall
}

// ResetBallHistory forgets the previous ball sample, so the next apply is
// treated as the first one.
func (a *Applier) ResetBallHistory() {
	a.hasPrevBall = false
	a.prevBall = matchlog.BallSample{}
}

func (a *Applier) applyPlayers(frame matchlog.Frame) {
	if a.registry == nil {
		return
	}
	setRoster(a.registry.Roster(scene.TeamLeft), frame.Left)
	setRoster(a.registry.Roster(scene.TeamRight), frame.Right)
}

// setRoster aligns samples to entities by ordinal. The sample ID is unused.
func setRoster(roster []*scene.Entity, samples []matchlog.PlayerSample) {
	for i, s := range samples {
		if i >= len(roster) {
			return
		}
		roster[i].Position = scene.V(s.X, 0, s.Z)
	}
}

func (a *Applier) applyBall(b matchlog.BallSample) {
	if !a.registry.BallLoaded() {
		return
	}
	ball := a.registry.Ball
	ball.Position = scene.V(b.X, BallHeight, b.Z)

	if a.hasPrevBall {
		speed := BallSpeed(b, a.prevBall)
		if speed > 0 {
			dir := BallDirection(b, a.prevBall)
			ball.Rotation.Y = math.Atan2(dir.Z, dir.X)
		}
		ball.Rotation.Z += speed * SpinScale * a.interval.Seconds()
	}

	a.prevBall = b
	a.hasPrevBall = true
}

// BallSpeed is the ground-plane distance between two samples, in field
// units per frame.
func BallSpeed(cur, prev matchlog.BallSample) float64 {
	return math.Hypot(cur.X-prev.X, cur.Z-prev.Z)
}

// BallDirection is the normalized ground-plane displacement from prev to
// cur, or Forward when there is none.
func BallDirection(cur, prev matchlog.BallSample) scene.Vec3 {
	d := scene.V(cur.X-prev.X, 0, cur.Z-prev.Z)
	if d.Len() == 0 {
		return Forward
	}
	return d.Normalize()
}
